package models

// Participant roles within a retrospective.
const (
	RoleFacilitator = "facilitator"
	RoleMember      = "member"
)

// Participant is a user's durable membership record within a retrospective,
// distinct from a live websocket connection. Active mirrors whether the user
// currently has at least one live connection, maintained best-effort by the
// presence synchronizer.
type Participant struct {
	BaseModel

	RetroID string `gorm:"type:uuid;not null;uniqueIndex:idx_participant_retro_user" json:"retro_id"`
	UserID  string `gorm:"type:uuid;not null;uniqueIndex:idx_participant_retro_user" json:"user_id"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role    string `gorm:"not null;default:member" json:"role"`
	Active  bool   `gorm:"not null;default:false;index" json:"active"`
}
