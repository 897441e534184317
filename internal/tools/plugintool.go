package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

// ToolRouter executes a named tool of a named source. The source registry
// satisfies this.
type ToolRouter interface {
	ExecuteTool(ctx context.Context, sourceName, toolName string, params map[string]any, originalQuery string) (string, error)
}

// PluginTool adapts one source plugin tool declaration to the Eino tool
// contract. The agent sees a flat tool list; this adapter carries the owning
// source name so invocations route back through the registry.
type PluginTool struct {
	router     ToolRouter
	sourceName string
	def        source.ToolDefinition
	state      *TurnState
}

// NewPluginTool wraps def, owned by sourceName, for the given turn.
func NewPluginTool(router ToolRouter, sourceName string, def source.ToolDefinition, state *TurnState) *PluginTool {
	return &PluginTool{router: router, sourceName: sourceName, def: def, state: state}
}

// Name returns the tool name registered with the agent.
func (t *PluginTool) Name() string { return t.def.Name }

// Description returns the LLM-facing description of this tool.
func (t *PluginTool) Description() string { return t.def.Description }

// Info returns the Eino tool metadata built from the plugin's declared
// parameters.
func (t *PluginTool) Info(context.Context) (*schema.ToolInfo, error) {
	params := make(map[string]*schema.ParameterInfo, len(t.def.Parameters))
	for _, p := range t.def.Parameters {
		params[p.Name] = &schema.ParameterInfo{
			Type:     parameterType(p.Type),
			Desc:     p.Description,
			Required: p.Required,
		}
	}
	return &schema.ToolInfo{
		Name:        t.def.Name,
		Desc:        t.def.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun decodes the model's arguments and routes the call through the
// registry. Execution failures are returned to the model as text so it can
// recover, rather than aborting the agent run.
func (t *PluginTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	params := make(map[string]any)
	if argumentsInJSON != "" {
		if err := json.Unmarshal([]byte(argumentsInJSON), &params); err != nil {
			return "", fmt.Errorf("%s: invalid input: %w", t.def.Name, err)
		}
	}

	originalQuery := ""
	if t.state != nil {
		originalQuery = t.state.Query
	}

	out, err := t.router.ExecuteTool(ctx, t.sourceName, t.def.Name, params, originalQuery)
	if err != nil {
		return fmt.Sprintf("Tool %s failed: %v", t.def.Name, err), nil
	}
	return out, nil
}

// parameterType maps a plugin parameter type to the Eino schema type.
func parameterType(t string) schema.DataType {
	switch t {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	default:
		return schema.String
	}
}
