package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/mysticfalconvt/rob-rag-sub000/internal/budget"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/retrieval"
	"github.com/mysticfalconvt/rob-rag-sub000/internal/source"
)

// fakeRouter records the routed call.
type fakeRouter struct {
	out        string
	err        error
	lastSource string
	lastTool   string
	lastParams map[string]any
	lastQuery  string
}

func (f *fakeRouter) ExecuteTool(_ context.Context, sourceName, toolName string, params map[string]any, originalQuery string) (string, error) {
	f.lastSource = sourceName
	f.lastTool = toolName
	f.lastParams = params
	f.lastQuery = originalQuery
	return f.out, f.err
}

func sampleDef() source.ToolDefinition {
	return source.ToolDefinition{
		Name:        "query_documents",
		Description: "Search the archive.",
		Parameters: []source.ToolParameter{
			{Name: "tags", Type: "string", Description: "Tags to match", Required: true},
			{Name: "limit", Type: "integer", Description: "Max results"},
		},
	}
}

func Test_PluginTool_InfoFromDeclaration(t *testing.T) {
	t.Parallel()
	tool := NewPluginTool(&fakeRouter{}, "docvault", sampleDef(), nil)

	info, err := tool.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Name != "query_documents" || info.Desc != "Search the archive." {
		t.Errorf("info = %+v", info)
	}
	params, err := info.ParamsOneOf.ToJSONSchema()
	if err != nil {
		t.Fatalf("ToJSONSchema: %v", err)
	}
	if _, ok := params.Properties.Get("tags"); !ok {
		t.Error("tags parameter missing from schema")
	}
	if len(params.Required) != 1 || params.Required[0] != "tags" {
		t.Errorf("required = %v, want [tags]", params.Required)
	}
	if prop, ok := params.Properties.Get("limit"); ok {
		if prop.Type != string(schema.Integer) {
			t.Errorf("limit type = %v, want integer", prop.Type)
		}
	} else {
		t.Error("limit parameter missing from schema")
	}
}

func Test_PluginTool_RoutesThroughRegistry(t *testing.T) {
	t.Parallel()
	router := &fakeRouter{out: "2 documents"}
	state := NewTurnState("what did the tax office send", retrieval.AllSources(), budget.New(20))
	tool := NewPluginTool(router, "docvault", sampleDef(), state)

	out, err := tool.InvokableRun(context.Background(), `{"tags":"tax"}`)
	if err != nil {
		t.Fatalf("InvokableRun: %v", err)
	}
	if out != "2 documents" {
		t.Errorf("out = %q", out)
	}
	if router.lastSource != "docvault" || router.lastTool != "query_documents" {
		t.Errorf("routed to %s.%s", router.lastSource, router.lastTool)
	}
	if router.lastParams["tags"] != "tax" {
		t.Errorf("params = %v", router.lastParams)
	}
	if router.lastQuery != "what did the tax office send" {
		t.Errorf("original query = %q", router.lastQuery)
	}
}

func Test_PluginTool_ExecutionFailureReturnedAsText(t *testing.T) {
	t.Parallel()
	router := &fakeRouter{err: errors.New("service unreachable")}
	tool := NewPluginTool(router, "docvault", sampleDef(), nil)

	out, err := tool.InvokableRun(context.Background(), `{}`)
	if err != nil {
		t.Fatalf("execution failures must not abort the agent run: %v", err)
	}
	if !strings.Contains(out, "service unreachable") {
		t.Errorf("failure text should reach the model: %q", out)
	}
}

func Test_PluginTool_InvalidJSON(t *testing.T) {
	t.Parallel()
	tool := NewPluginTool(&fakeRouter{}, "docvault", sampleDef(), nil)
	if _, err := tool.InvokableRun(context.Background(), `{broken`); err == nil {
		t.Error("malformed arguments must error")
	}
}
