package tools

import (
	"context"
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

type fakeTool struct {
	name   string
	result string
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Definition() openai.Tool {
	return openai.Tool{
		Type:     openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{Name: f.name},
	}
}

func (f *fakeTool) Execute(context.Context, string) (string, error) {
	return f.result, nil
}

func TestRegistryExecute(t *testing.T) {
	registry := NewRegistry(
		&fakeTool{name: "alpha", result: `{"ok":true}`},
		&fakeTool{name: "beta", result: `{"ok":false}`},
	)

	result, err := registry.Execute(context.Background(), "alpha", "{}")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != `{"ok":true}` {
		t.Errorf("result = %q", result)
	}

	_, err = registry.Execute(context.Background(), "ghost", "{}")
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRegistryDefinitionsOrder(t *testing.T) {
	registry := NewRegistry(
		&fakeTool{name: "alpha"},
		&fakeTool{name: "beta"},
		&fakeTool{name: "gamma"},
	)

	defs := registry.Definitions()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if defs[i].Function.Name != want {
			t.Errorf("defs[%d] = %q, want %q", i, defs[i].Function.Name, want)
		}
	}
}

func TestProductSearchTool(t *testing.T) {
	tool := NewProductSearchTool([]Product{
		{ID: "p1", Name: "Trail Running Shoes", Category: "footwear", Price: 129.99},
		{ID: "p2", Name: "Road Running Shoes", Category: "footwear", Price: 99.99},
		{ID: "p3", Name: "Water Bottle", Category: "accessories", Price: 14.99},
	})

	run := func(t *testing.T, args string) []Product {
		t.Helper()
		raw, err := tool.Execute(context.Background(), args)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		var parsed struct {
			Products []Product `json:"products"`
		}
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		return parsed.Products
	}

	if got := run(t, `{"query":"running"}`); len(got) != 2 {
		t.Errorf("running query matched %d products, want 2", len(got))
	}
	if got := run(t, `{"query":"accessories"}`); len(got) != 1 || got[0].ID != "p3" {
		t.Errorf("category query = %v", got)
	}
	if got := run(t, `{"query":"running","limit":1}`); len(got) != 1 {
		t.Errorf("limit not applied: %v", got)
	}
	if got := run(t, `{"query":"submarine"}`); len(got) != 0 {
		t.Errorf("unexpected matches: %v", got)
	}

	if _, err := tool.Execute(context.Background(), "not json"); err == nil {
		t.Error("expected error for malformed arguments")
	}
}
