package models

// Retrospective phases, in board order.
const (
	PhaseLobby      = "lobby"
	PhaseBrainstorm = "brainstorm"
	PhaseGroup      = "group"
	PhaseVote       = "vote"
	PhaseDiscuss    = "discuss"
	PhaseDone       = "done"
)

// ValidPhase reports whether the supplied phase name is known.
func ValidPhase(phase string) bool {
	switch phase {
	case PhaseLobby, PhaseBrainstorm, PhaseGroup, PhaseVote, PhaseDiscuss, PhaseDone:
		return true
	}
	return false
}

// Retrospective is one durable retrospective board.
type Retrospective struct {
	BaseModel

	Name      string `gorm:"not null" json:"name"`
	TeamName  string `json:"team_name,omitempty"`
	Phase     string `gorm:"not null;default:lobby" json:"phase"`
	CreatedBy string `gorm:"type:uuid;index" json:"created_by"`

	Items        []RetroItem   `gorm:"foreignKey:RetroID" json:"items,omitempty"`
	Participants []Participant `gorm:"foreignKey:RetroID" json:"participants,omitempty"`
}
