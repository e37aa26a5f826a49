package files

import (
	"github.com/cordialrun/agentrt/internal/sandbox"
)

// Resolver validates tool-supplied paths against the runtime's sandbox
// root. It is a thin adapter over sandbox.ValidatePath so every
// file-facing tool (read/write/edit/patch, exec cwd, memory keys) shares
// the one escape rule instead of each carrying its own.
type Resolver struct {
	sb *sandbox.Sandbox
}

// NewResolver roots a resolver at dir. An empty dir falls back to the
// process working directory, matching sandbox.New.
func NewResolver(dir string) Resolver {
	sb, err := sandbox.New(dir)
	if err != nil {
		sb, _ = sandbox.New(".")
	}
	return Resolver{sb: sb}
}

// Resolve returns an absolute, cleaned path within the sandbox root, or an
// error if path is empty or escapes it.
func (r Resolver) Resolve(path string) (string, error) {
	sb := r.sb
	if sb == nil {
		var err error
		sb, err = sandbox.New(".")
		if err != nil {
			return "", err
		}
	}
	return sb.ValidatePath(path)
}
