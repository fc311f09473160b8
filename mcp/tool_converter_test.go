package mcp

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

func weatherDecl() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "get_weather",
		Description: "Get current weather",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City name",
				},
				"unit": map[string]any{
					"type": "string",
					"enum": []any{"celsius", "fahrenheit"},
				},
			},
			Required: []string{"location"},
		},
	}
}

func TestConvertMCPToolsToOllama(t *testing.T) {
	tests := []struct {
		name     string
		input    []mcptypes.Tool
		expected int
		validate func(t *testing.T, result []api.Tool)
	}{
		{
			name:     "no tools",
			input:    nil,
			expected: 0,
		},
		{
			name:     "declared properties",
			input:    []mcptypes.Tool{weatherDecl()},
			expected: 1,
			validate: func(t *testing.T, result []api.Tool) {
				fn := result[0].Function
				if result[0].Type != "function" {
					t.Errorf("expected type 'function', got %q", result[0].Type)
				}
				if fn.Name != "get_weather" || fn.Description != "Get current weather" {
					t.Errorf("unexpected function %q / %q", fn.Name, fn.Description)
				}
				if fn.Parameters.Type != "object" {
					t.Errorf("expected parameters type 'object', got %q", fn.Parameters.Type)
				}
				if len(fn.Parameters.Required) != 1 || fn.Parameters.Required[0] != "location" {
					t.Errorf("unexpected required %v", fn.Parameters.Required)
				}
				unit, ok := fn.Parameters.Properties["unit"]
				if !ok {
					t.Fatal("unit property not found")
				}
				if len(unit.Enum) != 2 {
					t.Errorf("expected 2 enum values, got %d", len(unit.Enum))
				}
			},
		},
		{
			name: "missing schema type defaults to object",
			input: []mcptypes.Tool{{
				Name:        "get_date_and_time",
				InputSchema: mcptypes.ToolInputSchema{},
			}},
			expected: 1,
			validate: func(t *testing.T, result []api.Tool) {
				if result[0].Function.Parameters.Type != "object" {
					t.Errorf("expected 'object', got %q", result[0].Function.Parameters.Type)
				}
			},
		},
		{
			name:     "order preserved",
			input:    []mcptypes.Tool{{Name: "first"}, {Name: "second"}},
			expected: 2,
			validate: func(t *testing.T, result []api.Tool) {
				if result[0].Function.Name != "first" || result[1].Function.Name != "second" {
					t.Errorf("order not preserved: %q, %q", result[0].Function.Name, result[1].Function.Name)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertMCPToolsToOllama(tt.input)
			if len(result) != tt.expected {
				t.Fatalf("expected %d tools, got %d", tt.expected, len(result))
			}
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestOllamaProperty(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		validate func(t *testing.T, result api.ToolProperty)
	}{
		{
			name:  "single type",
			input: map[string]any{"type": "string", "description": "A string"},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Type) != 1 || result.Type[0] != "string" {
					t.Errorf("expected [string], got %v", result.Type)
				}
				if result.Description != "A string" {
					t.Errorf("description mismatch: %q", result.Description)
				}
			},
		},
		{
			name:  "union type",
			input: map[string]any{"type": []any{"string", "null"}},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Type) != 2 {
					t.Errorf("expected 2 types, got %v", result.Type)
				}
			},
		},
		{
			name:  "array items",
			input: map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
			validate: func(t *testing.T, result api.ToolProperty) {
				if result.Items == nil {
					t.Error("expected items to be set")
				}
			},
		},
		{
			name: "anyOf",
			input: map[string]any{"anyOf": []any{
				map[string]any{"type": "string"},
				map[string]any{"type": "integer"},
			}},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.AnyOf) != 2 || result.AnyOf[1].Type[0] != "integer" {
					t.Errorf("unexpected anyOf %+v", result.AnyOf)
				}
			},
		},
		{
			name: "struct value is round-tripped",
			input: struct {
				Type string `json:"type"`
			}{Type: "boolean"},
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Type) != 1 || result.Type[0] != "boolean" {
					t.Errorf("expected [boolean], got %v", result.Type)
				}
			},
		},
		{
			name:  "scalar yields empty property",
			input: 42,
			validate: func(t *testing.T, result api.ToolProperty) {
				if len(result.Type) != 0 {
					t.Errorf("expected no type, got %v", result.Type)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, ollamaProperty(tt.input))
		})
	}
}

func TestConvertMCPToolsToOpenAIFormat(t *testing.T) {
	if got := ConvertMCPToolsToOpenAIFormat(nil); got != nil {
		t.Errorf("expected nil for no tools, got %v", got)
	}

	result := ConvertMCPToolsToOpenAIFormat([]mcptypes.Tool{weatherDecl()})
	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}

	fn := result[0].OfFunction
	if fn == nil {
		t.Fatal("expected a function tool")
	}
	if fn.Function.Name != "get_weather" {
		t.Errorf("name mismatch: %q", fn.Function.Name)
	}
	if fn.Function.Parameters["type"] != "object" {
		t.Errorf("expected object schema, got %v", fn.Function.Parameters["type"])
	}
	req, ok := fn.Function.Parameters["required"].([]string)
	if !ok || len(req) != 1 {
		t.Errorf("unexpected required %v", fn.Function.Parameters["required"])
	}
}

func TestSchemaMapDefaults(t *testing.T) {
	m := schemaMap(mcptypes.ToolInputSchema{})
	if m["type"] != "object" {
		t.Errorf("expected object, got %v", m["type"])
	}
	if props, ok := m["properties"].(map[string]any); !ok || len(props) != 0 {
		t.Errorf("expected empty properties, got %v", m["properties"])
	}
	if _, ok := m["required"]; ok {
		t.Error("required should be omitted when empty")
	}
}

func TestConvertMCPToolsToAnthropicFormat(t *testing.T) {
	result := ConvertMCPToolsToAnthropicFormat([]mcptypes.Tool{weatherDecl(), {Name: "bare"}})
	if len(result) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(result))
	}

	first := result[0].OfTool
	if first == nil || first.Name != "get_weather" {
		t.Fatalf("unexpected first tool %+v", first)
	}
	if first.Description.Value != "Get current weather" {
		t.Errorf("description mismatch: %q", first.Description.Value)
	}
	if len(first.InputSchema.Required) != 1 {
		t.Errorf("unexpected required %v", first.InputSchema.Required)
	}

	if result[1].OfTool.Description.Valid() {
		t.Error("description should be unset for a tool without one")
	}
}
