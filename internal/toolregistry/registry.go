// Package toolregistry holds the set of tools an Agent can call, dispatches
// tool_use blocks concurrently, and pages oversized results through a
// result_id-keyed cache that survives compaction.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cordialrun/agentrt/pkg/models"
)

// Default pagination thresholds. A result at or under the inline limit is
// returned whole; anything larger is stored and replaced with a pointer to
// page 1, with the remainder fetched through read_more. Both are
// per-registry overridable via SetPageLimits (the max_inline_bytes and
// page_bytes configuration options).
const (
	MaxInlineBytes = 30 * 1024
	PageBytes      = 8 * 1024
)

// Handler executes one tool call and returns its textual result plus an
// error flag the provider surfaces to the model as is_error.
type Handler func(ctx context.Context, arguments json.RawMessage) (text string, isError bool)

// LockProvider grants exclusive, ref-counted access to a file path for the
// duration of a tool call whose FileParam names the argument holding it.
// Acquire blocks until the lock is held; the returned func releases it.
type LockProvider interface {
	Acquire(ctx context.Context, path string) (release func(), err error)
}

type registration struct {
	def       models.ToolDefinition
	schema    *jsonschema.Schema
	handler   Handler
	fileParam string
}

// Registry is a thread-safe collection of tools plus the paged-result cache
// their oversized outputs are stored in.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]*registration
	locks LockProvider
	cache *pageCache

	maxInlineBytes int
	pageBytes      int
}

// New creates an empty Registry. locks may be nil, in which case file-param
// tools run without mutual exclusion.
func New(locks LockProvider) *Registry {
	return &Registry{
		tools:          make(map[string]*registration),
		locks:          locks,
		cache:          newPageCache(),
		maxInlineBytes: MaxInlineBytes,
		pageBytes:      PageBytes,
	}
}

// SetPageLimits overrides the oversized-result thresholds. Non-positive
// values leave the corresponding limit unchanged. Call before the first
// Execute; limits are not synchronised against in-flight calls.
func (r *Registry) SetPageLimits(maxInlineBytes, pageBytes int) {
	if maxInlineBytes > 0 {
		r.maxInlineBytes = maxInlineBytes
	}
	if pageBytes > 0 {
		r.pageBytes = pageBytes
	}
}

// Register adds a tool under name, validating arguments against schema (a
// JSON Schema document) before every Execute. fileParam, if non-empty, names
// the string argument whose value is locked for the call's duration.
func (r *Registry) Register(name, description string, schema json.RawMessage, handler Handler, fileParam string) error {
	compiled, err := compileSchema(name, schema)
	if err != nil {
		return fmt.Errorf("toolregistry: compiling schema for %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = &registration{
		def: models.ToolDefinition{
			Name:        name,
			Description: description,
			Schema:      schema,
			FileParam:   fileParam,
		},
		schema:    compiled,
		handler:   handler,
		fileParam: fileParam,
	}
	return nil
}

func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	resource := "tool://" + name
	if err := c.AddResource(resource, strings.NewReader(string(schema))); err != nil {
		return nil, err
	}
	return c.Compile(resource)
}

// ListDefinitions returns every registered tool's definition in the order
// tools were first registered, for passing to a provider.
func (r *Registry) ListDefinitions() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]models.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		if reg, ok := r.tools[name]; ok {
			defs = append(defs, reg.def)
		}
	}
	return defs
}

// Execute validates arguments and runs the named tool, recovering from a
// handler panic as an error result rather than crashing the loop. Results
// larger than MaxInlineBytes are paginated: the returned text carries only
// the first page plus a pointer to read_more.
func (r *Registry) Execute(ctx context.Context, toolUseID, name string, arguments json.RawMessage) (text string, isError bool) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "tool not found: " + name, true
	}

	if reg.schema != nil {
		var v interface{}
		if err := json.Unmarshal(arguments, &v); err != nil {
			return fmt.Sprintf("invalid arguments for %s: %v", name, err), true
		}
		if err := reg.schema.Validate(v); err != nil {
			return fmt.Sprintf("arguments for %s failed validation: %v", name, err), true
		}
	}

	release, err := r.acquireFileLock(ctx, reg, arguments)
	if err != nil {
		return fmt.Sprintf("failed to lock file for %s: %v", name, err), true
	}
	if release != nil {
		defer release()
	}

	text, isError = r.runHandler(ctx, reg.handler, arguments)
	if isError {
		return text, true
	}

	return r.cache.store(text, r.maxInlineBytes, r.pageBytes), false
}

func (r *Registry) runHandler(ctx context.Context, handler Handler, arguments json.RawMessage) (text string, isError bool) {
	defer func() {
		if p := recover(); p != nil {
			text = fmt.Sprintf("tool panicked: %v", p)
			isError = true
		}
	}()
	return handler(ctx, arguments)
}

func (r *Registry) acquireFileLock(ctx context.Context, reg *registration, arguments json.RawMessage) (func(), error) {
	if reg.fileParam == "" || r.locks == nil {
		return nil, nil
	}
	var args map[string]json.RawMessage
	if err := json.Unmarshal(arguments, &args); err != nil {
		return nil, nil
	}
	raw, ok := args[reg.fileParam]
	if !ok {
		return nil, nil
	}
	var path string
	if err := json.Unmarshal(raw, &path); err != nil || path == "" {
		return nil, nil
	}
	return r.locks.Acquire(ctx, path)
}

// ReadMore returns the requested 1-indexed page of a previously paginated
// result, alongside whether another page follows it.
func (r *Registry) ReadMore(resultID string, page int) (text string, hasMore bool, err error) {
	return r.cache.read(resultID, page)
}

// Clone returns a new Registry sharing this one's lock provider and cache,
// containing every tool except those named in exclude. Used to scope a
// subagent's tool surface without mutating the parent registry.
func (r *Registry) Clone(exclude map[string]bool) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := &Registry{
		tools:          make(map[string]*registration, len(r.tools)),
		locks:          r.locks,
		cache:          r.cache,
		maxInlineBytes: r.maxInlineBytes,
		pageBytes:      r.pageBytes,
	}
	for _, name := range r.order {
		if exclude[name] {
			continue
		}
		clone.order = append(clone.order, name)
		clone.tools[name] = r.tools[name]
	}
	return clone
}

// Names returns every registered tool name in sorted order, for
// diagnostics and tests that don't care about registration order (use
// ListDefinitions when registration order matters).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out) // deterministic for callers that don't care about order
	return out
}
