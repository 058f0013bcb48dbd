package models

// Profile is the denormalized directory view of a user or business,
// fetched in batches and attached for display.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
