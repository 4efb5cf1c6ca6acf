// Package tools exposes song identification to function-calling models.
package tools

import "context"

// Tool is a function a model can call.
type Tool interface {
	Name() string
	Description() string // shown to the model
	Parameters() []ParameterDef
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ParameterDef describes one argument. Type is a JSON schema type:
// "string", "number", "integer" or "boolean".
type ParameterDef struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Minimum     *int   `json:"minimum,omitempty"`
	Maximum     *int   `json:"maximum,omitempty"`
}

func bound(n int) *int { return &n }
