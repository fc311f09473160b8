package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
)

// Tool declarations are written once as mcp-go tools (JSON schema input) and
// converted to each backend's format here.

// schemaMap flattens an input schema into a plain JSON schema object.
func schemaMap(schema mcptypes.ToolInputSchema) map[string]any {
	typ := schema.Type
	if typ == "" {
		typ = "object"
	}
	props := schema.Properties
	if props == nil {
		props = map[string]any{}
	}

	m := map[string]any{
		"type":       typ,
		"properties": props,
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	if schema.Defs != nil {
		m["$defs"] = schema.Defs
	}
	return m
}

// ConvertMCPToolsToOpenAIFormat converts declarations to OpenAI function
// tools. OpenRouter uses the same format.
func ConvertMCPToolsToOpenAIFormat(mcpTools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		fn := openai.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: openai.FunctionParameters(schemaMap(tool.InputSchema)),
		}
		if tool.Description != "" {
			fn.Description = openai.String(tool.Description)
		}
		result[i] = openai.ChatCompletionFunctionTool(fn)
	}
	return result
}

// ConvertMCPToolsToAnthropicFormat converts declarations to Anthropic tools.
func ConvertMCPToolsToAnthropicFormat(mcpTools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(mcpTools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(mcpTools))
	for i, tool := range mcpTools {
		// Type defaults to "object" when omitted.
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.InputSchema.Properties,
			Required:   tool.InputSchema.Required,
		}
		if tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{"$defs": tool.InputSchema.Defs}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}
	return result
}

// ConvertMCPToolsToOllama converts declarations to Ollama tools.
func ConvertMCPToolsToOllama(mcpTools []mcptypes.Tool) []api.Tool {
	ollamaTools := make([]api.Tool, 0, len(mcpTools))

	for _, tool := range mcpTools {
		params := api.ToolFunctionParameters{
			Type:       tool.InputSchema.Type,
			Required:   tool.InputSchema.Required,
			Properties: make(map[string]api.ToolProperty, len(tool.InputSchema.Properties)),
		}
		if params.Type == "" {
			params.Type = "object"
		}
		if tool.InputSchema.Defs != nil {
			params.Defs = tool.InputSchema.Defs
		}
		for name, prop := range tool.InputSchema.Properties {
			params.Properties[name] = ollamaProperty(prop)
		}

		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}

	return ollamaTools
}

// ollamaProperty converts one JSON schema property. Values that are not
// objects are round-tripped through JSON first.
func ollamaProperty(value any) api.ToolProperty {
	prop := api.ToolProperty{}

	m, ok := value.(map[string]any)
	if !ok {
		data, err := json.Marshal(value)
		if err != nil || json.Unmarshal(data, &m) != nil {
			return prop
		}
	}

	switch t := m["type"].(type) {
	case string:
		prop.Type = api.PropertyType{t}
	case []string:
		prop.Type = api.PropertyType(t)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				prop.Type = append(prop.Type, s)
			}
		}
	}

	if desc, ok := m["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := m["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := m["items"]; ok {
		prop.Items = items
	}
	if anyOf, ok := m["anyOf"].([]any); ok {
		prop.AnyOf = make([]api.ToolProperty, 0, len(anyOf))
		for _, item := range anyOf {
			prop.AnyOf = append(prop.AnyOf, ollamaProperty(item))
		}
	}

	return prop
}
