package board

// Named outbound events published to session subscribers or returned to a
// single requester.
const (
	EventPresenceChanged      = "presence-changed"
	EventPhaseChanged         = "phase-changed"
	EventItemAdded            = "item-added"
	EventItemUpdated          = "item-updated"
	EventItemDeleted          = "item-deleted"
	EventItemsBulkUpdate      = "items-bulk-update"
	EventActionItemsUpdate    = "action-items-update"
	EventItemPositionUpdate   = "item-position-update"
	EventGroupingUpdate       = "grouping-update"
	EventLabelUpdate          = "label-update"
	EventVoteUpdate           = "vote-update"
	EventVoteSubmission       = "vote-submission"
	EventInitialItemPositions = "initial-item-positions"
	EventInitialVotingResult  = "initial-voting-result"
	EventInitialUserVotes     = "initial-user-votes"
	EventRetroState           = "retro-state"
	EventTyping               = "typing"
)

// Outcome reports what a mutator did with a submission. Rejections stay
// silent on the wire; the distinct variants exist for metrics and tests.
type Outcome int

const (
	// Applied means state was mutated and a broadcast went out.
	Applied Outcome = iota
	// Rejected means conflict resolution or validation dropped the update.
	Rejected
	// NoOp means there was nothing to do (unknown id, no state, empty delta).
	NoOp
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Rejected:
		return "rejected"
	case NoOp:
		return "noop"
	}
	return "unknown"
}
