package inference

import (
	"context"
	"testing"

	"github.com/convohq/chat-api/internal/domain/model"
)

func testRegistry() (*Registry, *Client, *Client) {
	defaultClient := NewClient(nil, "default", "http://localhost:8001/v1", "")
	named := NewClient(nil, "special", "http://localhost:8002/v1", "")

	registry := NewRegistry(defaultClient, map[string]string{
		model.BaseChatModel:      "llama-3.1-8b",
		model.BaseReasoningModel: "deepseek-r1-distill",
	})
	registry.RegisterClient("special", named)
	return registry, defaultClient, named
}

func TestRegistryResolveBase(t *testing.T) {
	registry, defaultClient, _ := testRegistry()
	ctx := context.Background()

	sel, _ := model.ParseSelector(model.BaseChatModel)
	client, upstream, err := registry.Resolve(ctx, sel, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if client != defaultClient {
		t.Error("base model should resolve to the default client")
	}
	if upstream != "llama-3.1-8b" {
		t.Errorf("upstream = %q", upstream)
	}

	sel, _ = model.ParseSelector(model.BaseReasoningModel)
	_, upstream, err = registry.Resolve(ctx, sel, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if upstream != "deepseek-r1-distill" {
		t.Errorf("upstream = %q", upstream)
	}
}

func TestRegistryResolveAssistant(t *testing.T) {
	registry, defaultClient, named := testRegistry()
	ctx := context.Background()
	sel, _ := model.ParseSelector("assistant-coach")

	// Assistant with its own provider and upstream model.
	client, upstream, err := registry.Resolve(ctx, sel, &model.Assistant{
		ID:           "coach",
		ProviderName: "special",
		UpstreamID:   "coach-tuned-v2",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if client != named {
		t.Error("assistant should resolve to its named provider")
	}
	if upstream != "coach-tuned-v2" {
		t.Errorf("upstream = %q", upstream)
	}

	// Assistant without provider settings falls back to defaults.
	client, upstream, err = registry.Resolve(ctx, sel, &model.Assistant{ID: "coach"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if client != defaultClient {
		t.Error("assistant without provider should use the default client")
	}
	if upstream != "llama-3.1-8b" {
		t.Errorf("upstream = %q", upstream)
	}

	// Missing assistant is a not-found error.
	if _, _, err := registry.Resolve(ctx, sel, nil); err == nil {
		t.Error("expected error for nil assistant")
	}

	// Unregistered provider name.
	_, _, err = registry.Resolve(ctx, sel, &model.Assistant{ID: "coach", ProviderName: "ghost"})
	if err == nil {
		t.Error("expected error for unregistered provider")
	}
}
