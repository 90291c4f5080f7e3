// Package event reads the JSON payload the host writes to a hook's stdin.
package event

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/mattn/go-isatty"
	"github.com/tidwall/gjson"
)

// maxPayload bounds how much of stdin is read.
const maxPayload = 8 << 20

// Payload is the subset of the host event payload han uses.
type Payload struct {
	EventName      string
	SessionID      string
	AgentID        string
	TranscriptPath string
	Cwd            string
	ToolName       string
	// ToolPaths are the files named in tool_input (file_path, notebook_path,
	// edits[].file_path), in payload order without duplicates.
	ToolPaths []string
	// TouchedPaths is an explicit touched-file list supplied by the caller.
	TouchedPaths []string
}

// Parse decodes a payload. Empty input yields an empty payload.
func Parse(data []byte) (*Payload, error) {
	p := &Payload{}
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("event payload is not valid JSON")
	}

	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return nil, fmt.Errorf("event payload must be a JSON object")
	}

	p.EventName = r.Get("hook_event_name").String()
	p.SessionID = r.Get("session_id").String()
	p.AgentID = r.Get("agent_id").String()
	p.TranscriptPath = r.Get("transcript_path").String()
	p.Cwd = r.Get("cwd").String()
	p.ToolName = r.Get("tool_name").String()

	add := func(dst []string, v string) []string {
		if v == "" || slices.Contains(dst, v) {
			return dst
		}
		return append(dst, v)
	}
	in := r.Get("tool_input")
	p.ToolPaths = add(p.ToolPaths, in.Get("file_path").String())
	p.ToolPaths = add(p.ToolPaths, in.Get("notebook_path").String())
	for _, e := range in.Get("edits.#.file_path").Array() {
		p.ToolPaths = add(p.ToolPaths, e.String())
	}
	for _, e := range r.Get("touched_paths").Array() {
		p.TouchedPaths = add(p.TouchedPaths, e.String())
	}
	return p, nil
}

// Read parses a payload from r.
func Read(r io.Reader) (*Payload, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("read event payload: %w", err)
	}
	return Parse(data)
}

// FromStdin reads the payload from stdin unless stdin is a terminal, in
// which case han was started by hand and the payload is empty.
func FromStdin(f *os.File) (*Payload, error) {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return &Payload{}, nil
	}
	return Read(f)
}
