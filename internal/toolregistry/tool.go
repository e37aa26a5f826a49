package toolregistry

import (
	"context"
	"encoding/json"
)

// Tool is the capability a registrable handler implements: it can describe
// its own schema and invoke itself, independent of whether it is a built-in
// Go type or a wrapper around a user-supplied callback (e.g. an MCP
// bridge).
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, arguments json.RawMessage) (text string, isError bool)

	// FileParam names the argument identifying a file to lock for the
	// call's duration, or "" if the tool needs no locking.
	FileParam() string
}

// RegisterTool adapts a Tool to Register, wiring its method value directly
// as the Handler (the signatures already match).
func (r *Registry) RegisterTool(t Tool) error {
	return r.Register(t.Name(), t.Description(), t.Schema(), t.Execute, t.FileParam())
}
