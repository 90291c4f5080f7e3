// Package doctor diagnoses han's view of a project and optionally repairs
// its state.
//
// The doctor package detects issues including:
//
//   - Plugin issues: plugins that could not be resolved, and resolved
//     plugins without a hook manifest.
//
//   - Hook issues: invalid hook declarations, unknown dependencies and
//     dependency cycles (which would fail every event they are bound to).
//
//   - State issues: checkpoints past their max age and cache entries that
//     can no longer be decoded.
//
// # Usage
//
//	issues, err := doctor.Run(ctx, project, false) // check only
//	issues, err := doctor.Run(ctx, project, true)  // check and fix
//
// Only state issues can be fixed; plugin and hook issues need changes to
// configuration or manifests.
package doctor
