package model

import "context"

// Assistant is a configured persona served through an assistant-scoped model
// identifier. Its system guidance is prepended to the prompt and its provider
// settings override the defaults.
type Assistant struct {
	ID           string
	Name         string
	Guidance     string
	ProviderName string
	UpstreamID   string
	Temperature  *float32
}

// AssistantDirectory resolves assistant identifiers decoded from
// assistant-scoped model selectors.
type AssistantDirectory interface {
	FindByID(ctx context.Context, id string) (*Assistant, error)
}

// StaticAssistantDirectory serves a fixed in-memory assistant set. The
// catalog is loaded once at startup.
type StaticAssistantDirectory struct {
	byID map[string]*Assistant
}

func NewStaticAssistantDirectory(assistants []*Assistant) *StaticAssistantDirectory {
	byID := make(map[string]*Assistant, len(assistants))
	for _, a := range assistants {
		byID[a.ID] = a
	}
	return &StaticAssistantDirectory{byID: byID}
}

// FindByID returns the assistant or (nil, nil) when unknown.
func (d *StaticAssistantDirectory) FindByID(_ context.Context, id string) (*Assistant, error) {
	return d.byID[id], nil
}
