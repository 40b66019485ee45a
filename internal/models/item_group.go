package models

import "gorm.io/datatypes"

// ItemGroup is the durable record of a labelled group of items. Signature is
// the sorted, pipe-joined list of member item IDs computed on the grouping
// canvas.
type ItemGroup struct {
	BaseModel

	RetroID   string         `gorm:"type:uuid;not null;index" json:"retro_id"`
	Signature string         `gorm:"not null;index" json:"signature"`
	Label     string         `json:"label"`
	Color     string         `json:"color,omitempty"`
	Members   datatypes.JSON `json:"members,omitempty"`
	VoteCount int            `json:"vote_count"`
}
