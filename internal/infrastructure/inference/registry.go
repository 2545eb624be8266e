package inference

import (
	"context"

	"github.com/convohq/chat-api/internal/domain/model"
	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

// Registry maps a decoded model selector to the provider client and the
// upstream model identifier to request from it.
type Registry struct {
	defaultClient *Client
	defaultModels map[string]string
	namedClients  map[string]*Client
}

// NewRegistry builds a registry around the default provider. defaultModels
// maps a base model id to the upstream model the provider actually serves.
func NewRegistry(defaultClient *Client, defaultModels map[string]string) *Registry {
	return &Registry{
		defaultClient: defaultClient,
		defaultModels: defaultModels,
		namedClients:  make(map[string]*Client),
	}
}

// RegisterClient adds a named provider client that assistants can select.
func (r *Registry) RegisterClient(name string, client *Client) {
	r.namedClients[name] = client
}

// Resolve returns the client and upstream model id for the selector. An
// assistant without explicit provider settings falls back to the default
// provider and base chat model.
func (r *Registry) Resolve(ctx context.Context, selector model.Selector, assistant *model.Assistant) (*Client, string, error) {
	if selector.Kind == model.SelectorAssistant {
		if assistant == nil {
			return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeNotFound, "assistant not found", nil, "")
		}

		client := r.defaultClient
		if assistant.ProviderName != "" {
			named, ok := r.namedClients[assistant.ProviderName]
			if !ok {
				return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "assistant provider not registered", nil, "")
			}
			client = named
		}

		upstream := assistant.UpstreamID
		if upstream == "" {
			upstream = r.defaultModels[model.BaseChatModel]
		}
		return client, upstream, nil
	}

	upstream, ok := r.defaultModels[selector.BaseID]
	if !ok {
		return nil, "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeInternal, "base model not mapped to an upstream model", nil, "")
	}
	return r.defaultClient, upstream, nil
}
