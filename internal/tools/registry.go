package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrUnknownTool is returned when a model calls a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArguments is returned when call arguments do not fit the tool's parameters.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Registry holds the tools offered to a model.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register registers a tool
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already exists", name)
	}

	r.tools[name] = tool
	return nil
}

// Get gets a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// List lists all tools sorted by name
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	slices.SortFunc(tools, func(a, b Tool) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return tools
}

// Execute checks args against the tool's parameters and runs it. Both
// failure kinds are meant to go back to the model so it can correct the call.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, exists := r.Get(name)
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err := checkArgs(tool.Parameters(), args); err != nil {
		return "", fmt.Errorf("%w for %s: %v", ErrInvalidArguments, name, err)
	}
	return tool.Execute(ctx, args)
}

// checkArgs verifies required parameters are present and every declared
// parameter has the declared JSON type. Range checks are left to the tool.
func checkArgs(params []ParameterDef, args map[string]any) error {
	for _, p := range params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Required {
				return fmt.Errorf("missing required parameter: %s", p.Name)
			}
			continue
		}
		if !hasType(v, p.Type) {
			return fmt.Errorf("parameter %s: expected %s, got %T", p.Name, p.Type, v)
		}
	}
	return nil
}

func hasType(v any, typ string) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number", "integer":
		switch n := v.(type) {
		case float64:
			return typ == "number" || n == float64(int64(n))
		case int, int64:
			return true
		case json.Number:
			if typ == "integer" {
				_, err := n.Int64()
				return err == nil
			}
			return true
		}
		return false
	default:
		return true
	}
}

// ToolSchema tool schema (for Function Calling)
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema function schema
type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GetSchemas gets all tool schemas for Function Calling
func (r *Registry) GetSchemas() []ToolSchema {
	tools := r.List()
	schemas := make([]ToolSchema, 0, len(tools))
	for _, tool := range tools {
		schemas = append(schemas, ToolSchema{
			Type: "function",
			Function: FunctionSchema{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  BuildParameterSchema(tool.Parameters()),
			},
		})
	}
	return schemas
}

// BuildParameterSchema builds the JSON schema object for params.
func BuildParameterSchema(params []ParameterDef) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0)

	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
