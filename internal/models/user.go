package models

// User is an identified account. Authentication happens upstream; this row
// only carries the identity attributes the board needs for display.
type User struct {
	BaseModel

	ExternalID string `gorm:"uniqueIndex" json:"external_id,omitempty"`
	Name       string `gorm:"not null" json:"name"`
	Email      string `gorm:"index" json:"email,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}
