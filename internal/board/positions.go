package board

// SourceInitLayout tags a bulk position submission computed by a client's
// initial layout pass; stored positions always win over these.
const SourceInitLayout = "init-layout"

type positionPayload struct {
	ItemID    string   `json:"itemId"`
	Position  Position `json:"position"`
	UserID    string   `json:"userId"`
	Timestamp int64    `json:"timestamp"`
}

type bulkPositionPayload struct {
	Positions map[string]Position `json:"positions"`
	UserID    string              `json:"userId"`
	Timestamp int64               `json:"timestamp"`
}

// UpdatePosition applies a single item's drag position unconditionally and
// broadcasts the delta.
func (s *Service) UpdatePosition(sessionID, userID, itemID string, pos Position) {
	s.locks.RunExclusive(sessionID, func() {
		state := s.store.GetOrCreate(sessionID)
		state.SetPosition(itemID, pos)

		s.broadcast(sessionID, EventItemPositionUpdate, positionPayload{
			ItemID:    itemID,
			Position:  pos,
			UserID:    userID,
			Timestamp: s.nowMillis(),
		})
	})
}

// UpdatePositions applies a bulk position map. Submissions tagged
// SourceInitLayout only fill items that hold no position yet, so two clients
// racing to lay out the board cannot clobber each other. Positions identical
// to the stored value are suppressed from both state and broadcast. The
// returned map is the delta that was actually written.
func (s *Service) UpdatePositions(sessionID, userID string, positions map[string]Position, source string) (map[string]Position, Outcome) {
	var (
		changed map[string]Position
		outcome Outcome
	)

	s.locks.RunExclusive(sessionID, func() {
		state := s.store.GetOrCreate(sessionID)
		changed = state.MergePositions(positions, source == SourceInitLayout)
		if len(changed) == 0 {
			outcome = NoOp
			return
		}

		outcome = Applied
		s.broadcast(sessionID, EventItemsBulkUpdate, bulkPositionPayload{
			Positions: changed,
			UserID:    userID,
			Timestamp: s.nowMillis(),
		})
	})

	return changed, outcome
}
