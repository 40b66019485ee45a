package models

import "gorm.io/datatypes"

// VoteSubmission stores the finalized per-group vote tallies for a
// retrospective once the facilitator closes voting.
type VoteSubmission struct {
	BaseModel

	RetroID     string                          `gorm:"type:uuid;not null;uniqueIndex" json:"retro_id"`
	SubmittedBy string                          `gorm:"type:uuid" json:"submitted_by"`
	Tallies     datatypes.JSONType[map[int]int] `json:"tallies"`
}
