package model

// UserType partitions users into entitlement tiers.
type UserType string

const (
	UserTypeGuest   UserType = "guest"
	UserTypeRegular UserType = "regular"
)

// Entitlements is the quota and model allow-list for one request. Computed
// per request; never stored.
type Entitlements struct {
	MaxMessagesPerDay int64
	AllowedModelIDs   []string
}

var baseModelIDs = []string{BaseChatModel, BaseReasoningModel}

// EntitlementsFor derives the caller's entitlements from the user type and,
// when the request targets an assistant, that assistant's synthetic model id.
func EntitlementsFor(userType UserType, assistant *Assistant) Entitlements {
	var limit int64
	switch userType {
	case UserTypeGuest:
		limit = 20
	default:
		limit = 100
	}

	allowed := make([]string, 0, len(baseModelIDs)+1)
	if assistant != nil {
		allowed = append(allowed, AssistantModelPrefix+assistant.ID)
	}
	allowed = append(allowed, baseModelIDs...)

	return Entitlements{
		MaxMessagesPerDay: limit,
		AllowedModelIDs:   allowed,
	}
}

// Allows reports whether the entitlements permit the given model id.
func (e Entitlements) Allows(modelID string) bool {
	for _, id := range e.AllowedModelIDs {
		if id == modelID {
			return true
		}
	}
	return false
}
