package board

// Query relays answer a single requester with a slice of session state. Each
// creates a default state on first reference and returns empty structures,
// never errors, when no data is present.

// StateSnapshot returns a deep copy of the session's full state.
func (s *Service) StateSnapshot(sessionID string) Snapshot {
	return s.store.GetOrCreate(sessionID).Snapshot()
}

// ItemPositions returns the currently stored item positions.
func (s *Service) ItemPositions(sessionID string) map[string]Position {
	return s.store.GetOrCreate(sessionID).Positions()
}

// UserVotes returns one user's in-flight vote row, empty when absent.
func (s *Service) UserVotes(sessionID, userID string) map[int]int {
	return s.store.GetOrCreate(sessionID).UserVotes(userID)
}

// AllVotes returns the full in-flight vote table.
func (s *Service) AllVotes(sessionID string) map[string]map[int]int {
	return s.store.GetOrCreate(sessionID).AllVotes()
}

// ActionItemDrafts returns the session's drafted action items, used by the
// bulk commit at retro close.
func (s *Service) ActionItemDrafts(sessionID string) []ActionItem {
	return s.store.GetOrCreate(sessionID).ActionItems()
}
