package models

// ActionItem is a committed action item. While a session is live, drafts are
// held in session state only; rows are written at bulk commit time.
type ActionItem struct {
	BaseModel

	RetroID      string `gorm:"type:uuid;not null;index" json:"retro_id"`
	Task         string `gorm:"not null" json:"task"`
	AssigneeID   string `gorm:"type:uuid;index" json:"assignee_id"`
	AssigneeName string `json:"assignee_name,omitempty"`
	CreatedBy    string `gorm:"type:uuid" json:"created_by"`
}
