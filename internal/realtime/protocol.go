package realtime

import "encoding/json"

// Envelope is the outbound message shape: a named event tagged with the
// session it belongs to, sent over the single logical channel each
// connection holds. Tagging replaces session-parameterised event names.
type Envelope struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId"`
	Data      any    `json:"data,omitempty"`
}

// Frame is the inbound message shape: a named action with a raw payload
// decoded by the dispatcher.
type Frame struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Named inbound actions accepted from clients.
const (
	ActionRequestItemPositions  = "request-item-positions"
	ActionRequestVotingResults  = "request-voting-results"
	ActionRequestUserVotes      = "request-user-votes"
	ActionRequestRetroState     = "request-retro-state"
	ActionUpdateItemPosition    = "update-item-position"
	ActionUpdateItemPositions   = "update-item-positions"
	ActionGroupingUpdate        = "grouping-update"
	ActionLabelUpdate           = "label-update"
	ActionVoteUpdate            = "vote-update"
	ActionSubmitVotes           = "submit-votes"
	ActionActionItemAdd         = "action-item-add"
	ActionActionItemUpdate      = "action-item-update"
	ActionActionItemDelete      = "action-item-delete"
	ActionTyping                = "typing"
	ActionPing                  = "ping"
)
