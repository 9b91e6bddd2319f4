// internal/engine/tool.go
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/keshav-github-123/GraphMind/pkg/llm"
)

// Tool defines the interface for an executable tool.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds registered tools and provides lookup and invocation.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry. It returns an error if the tool's
// name is empty or already taken, or if its parameter schema is not valid
// JSON. Registration happens at startup, so callers treat errors as fatal.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("register tool: duplicate name %q", name)
	}
	if !json.Valid(t.Parameters()) {
		return fmt.Errorf("register tool %q: invalid parameter schema", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Invoke executes the named tool with the given arguments. Argument
// validation failures and execution failures are folded into the result
// as an error payload, so the model can see what went wrong. The only
// error returned is UnknownToolError, which the engine treats as fatal.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", &UnknownToolError{Name: name}
	}
	if err := validateArgs(t.Parameters(), args); err != nil {
		return errPayload(err), nil
	}
	result, err := t.Execute(ctx, args)
	if err != nil {
		return errPayload(err), nil
	}
	return result, nil
}

func errPayload(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

// AsLLMTools converts registered tools to the LLM provider format, in
// registration order.
func (r *Registry) AsLLMTools() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

type paramSchema struct {
	Properties map[string]struct {
		Type string `json:"type"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// validateArgs checks model-supplied arguments against the tool's schema:
// required keys must be present and declared scalar types must match.
// Nested schemas are not walked; tools validate their own payloads beyond
// this first pass.
func validateArgs(schema, args json.RawMessage) error {
	var ps paramSchema
	if err := json.Unmarshal(schema, &ps); err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	var supplied map[string]json.RawMessage
	if err := json.Unmarshal(args, &supplied); err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	for _, key := range ps.Required {
		if _, ok := supplied[key]; !ok {
			return fmt.Errorf("missing required argument %q", key)
		}
	}
	for key, raw := range supplied {
		prop, ok := ps.Properties[key]
		if !ok || prop.Type == "" {
			continue
		}
		if !typeMatches(prop.Type, raw) {
			return fmt.Errorf("argument %q is not a %s", key, prop.Type)
		}
	}
	return nil
}

func typeMatches(typ string, raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "integer":
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}
