// Package cmd provides helpers for executing external commands with proper
// error handling and verbose logging.
//
// Every command is logged through the context logger's Command method, so
// --verbose shows what han runs (git ls-files, dirTest predicates) and how
// long it took. Failures carry stderr in the error message.
//
// # Usage
//
//	out, err := cmd.OutputContext(ctx, root, "git", "ls-files", "-z")
//	if err != nil {
//	    // err contains stderr output if available
//	}
//
//	// Shell predicates: only the exit status matters
//	applies := cmd.ShellContext(ctx, dir, "test -f package.json", nil) == nil
//
// Hook commands themselves are not run through this package; the executor
// manages their process groups, timeouts and output capture.
package cmd
