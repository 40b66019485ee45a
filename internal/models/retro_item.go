package models

// RetroItem is a single feedback card on the board.
type RetroItem struct {
	BaseModel

	RetroID  string `gorm:"type:uuid;not null;index" json:"retro_id"`
	Category string `gorm:"not null" json:"category"` // went-well | needs-improvement | action-idea
	Text     string `gorm:"not null" json:"text"`
	AuthorID string `gorm:"type:uuid;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
