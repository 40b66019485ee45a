package board

import (
	"sync"
	"time"

	"github.com/retroboardhq/retroboard/pkg/metrics"
)

// Position is a 2D coordinate on the grouping canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ActionItem is an action item drafted live during a session. Drafts live in
// session state only until the bulk commit writes them to storage.
type ActionItem struct {
	ID           string `json:"id"`
	Task         string `json:"task"`
	AssigneeID   string `json:"assigneeId"`
	AssigneeName string `json:"assigneeName,omitempty"`
	CreatedBy    string `json:"createdBy"`
	CreatedAt    int64  `json:"createdAt"` // epoch milliseconds
	Edited       bool   `json:"edited"`
}

// Snapshot is a deep copy of a session's shared state, safe to hand to the
// transport after the originating operation completes.
type Snapshot struct {
	ItemPositions         map[string]Position       `json:"itemPositions"`
	ItemGroups            map[string]string         `json:"itemGroups"`
	SignatureColors       map[string]string         `json:"signatureColors"`
	ActionItems           []ActionItem              `json:"actionItems"`
	AllUserVotes          map[string]map[int]int    `json:"allUserVotes"`
	LastGroupingUpdate    int64                     `json:"lastGroupingUpdate"`
	GroupingUpdateVersion int64                     `json:"groupingUpdateVersion"`
}

// SessionState holds the mutable shared state of one live session. Methods
// lock internally so the relay paths that skip the session lock stay memory
// safe; cross-operation atomicity comes from the SessionLocker.
type SessionState struct {
	mu              sync.Mutex
	itemPositions   map[string]Position
	itemGroups      map[string]string
	signatureColors map[string]string
	actionItems     []ActionItem
	allUserVotes    map[string]map[int]int

	lastGroupingUpdate    int64
	groupingUpdateVersion int64
}

func newSessionState() *SessionState {
	return &SessionState{
		itemPositions:   make(map[string]Position),
		itemGroups:      make(map[string]string),
		signatureColors: make(map[string]string),
		allUserVotes:    make(map[string]map[int]int),
	}
}

// SetPosition records a single item position unconditionally.
func (s *SessionState) SetPosition(itemID string, pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemPositions[itemID] = pos
}

// MergePositions applies a bulk position update and returns the per-item
// delta that was actually written. When initLayout is set, items that already
// hold a position are skipped (first writer wins); otherwise an incoming
// position is written only when it differs from the stored value, so
// byte-identical updates never produce broadcast traffic.
func (s *SessionState) MergePositions(positions map[string]Position, initLayout bool) map[string]Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := make(map[string]Position)
	for itemID, pos := range positions {
		current, exists := s.itemPositions[itemID]
		if exists && initLayout {
			continue
		}
		if exists && current == pos {
			continue
		}
		s.itemPositions[itemID] = pos
		changed[itemID] = pos
	}
	return changed
}

// Positions returns a copy of all stored item positions.
func (s *SessionState) Positions() map[string]Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPositions(s.itemPositions)
}

// ApplyGrouping applies a grouping update when it supersedes the stored one:
// strictly newer timestamp, or equal timestamp with a strictly newer version.
// A submission carrying neither timestamp nor version is stamped with
// nowMillis and the next version. Stale updates leave state untouched and
// report accepted == false. Colors for stale signatures are pruned before
// unassigned signatures draw a fresh palette color, so surviving groups keep
// their color across recomputation.
func (s *SessionState) ApplyGrouping(groups, colors map[string]string, timestamp, version, nowMillis int64) (accepted bool, appliedTS, appliedVersion int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timestamp == 0 && version == 0 {
		timestamp = nowMillis
		version = s.groupingUpdateVersion + 1
	}

	if timestamp < s.lastGroupingUpdate ||
		(timestamp == s.lastGroupingUpdate && version <= s.groupingUpdateVersion) {
		return false, s.lastGroupingUpdate, s.groupingUpdateVersion
	}

	s.itemGroups = copyStringMap(groups)
	s.signatureColors = reconcileColors(s.itemGroups, colors)
	s.lastGroupingUpdate = timestamp
	s.groupingUpdateVersion = version

	return true, timestamp, version
}

// Grouping returns copies of the current grouping maps.
func (s *SessionState) Grouping() (groups, colors map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyStringMap(s.itemGroups), copyStringMap(s.signatureColors)
}

// ReplaceUserVotes swaps a user's vote row wholesale and returns a deep copy
// of the full vote table for broadcasting aggregate tallies.
func (s *SessionState) ReplaceUserVotes(userID string, votes map[int]int) map[string]map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allUserVotes[userID] = copyVoteRow(votes)
	return copyVotes(s.allUserVotes)
}

// UserVotes returns a copy of one user's vote row, empty when absent.
func (s *SessionState) UserVotes(userID string) map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.allUserVotes[userID]; ok {
		return copyVoteRow(row)
	}
	return map[int]int{}
}

// AllVotes returns a deep copy of the full vote table.
func (s *SessionState) AllVotes() map[string]map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyVotes(s.allUserVotes)
}

// AppendActionItem adds a drafted action item unless an item with the same
// task and assignee was created within the duplicate window, which guards
// against double-submits. It returns whether the item was added and the
// resulting list.
func (s *SessionState) AppendActionItem(item ActionItem, window time.Duration) (bool, []ActionItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.actionItems {
		if existing.Task == item.Task && existing.AssigneeID == item.AssigneeID &&
			item.CreatedAt-existing.CreatedAt < window.Milliseconds() {
			return false, copyActionItems(s.actionItems)
		}
	}

	s.actionItems = append(s.actionItems, item)
	return true, copyActionItems(s.actionItems)
}

// UpdateActionItem replaces the task and assignee fields of an existing draft
// and marks it edited. Unknown identifiers report ok == false with no change.
func (s *SessionState) UpdateActionItem(itemID, task, assigneeID, assigneeName string) (bool, []ActionItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.actionItems {
		if s.actionItems[i].ID != itemID {
			continue
		}
		s.actionItems[i].Task = task
		s.actionItems[i].AssigneeID = assigneeID
		s.actionItems[i].AssigneeName = assigneeName
		s.actionItems[i].Edited = true
		return true, copyActionItems(s.actionItems)
	}
	return false, nil
}

// RemoveActionItem filters the identified draft out of the list.
func (s *SessionState) RemoveActionItem(itemID string) []ActionItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.actionItems[:0]
	for _, item := range s.actionItems {
		if item.ID != itemID {
			filtered = append(filtered, item)
		}
	}
	s.actionItems = filtered
	return copyActionItems(s.actionItems)
}

// ActionItems returns a copy of the drafted action items.
func (s *SessionState) ActionItems() []ActionItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyActionItems(s.actionItems)
}

// Snapshot deep-copies the whole session state.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ItemPositions:         copyPositions(s.itemPositions),
		ItemGroups:            copyStringMap(s.itemGroups),
		SignatureColors:       copyStringMap(s.signatureColors),
		ActionItems:           copyActionItems(s.actionItems),
		AllUserVotes:          copyVotes(s.allUserVotes),
		LastGroupingUpdate:    s.lastGroupingUpdate,
		GroupingUpdateVersion: s.groupingUpdateVersion,
	}
}

// StateStore owns the in-memory state of every live session, keyed by session
// id. States are created lazily on first reference and deleted when the last
// connection for the session goes away.
type StateStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
}

// NewStateStore constructs an empty store.
func NewStateStore() *StateStore {
	return &StateStore{sessions: make(map[string]*SessionState)}
}

// GetOrCreate returns the session's state, creating it on first reference.
func (st *StateStore) GetOrCreate(sessionID string) *SessionState {
	st.mu.RLock()
	state, ok := st.sessions[sessionID]
	st.mu.RUnlock()
	if ok {
		return state
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if state, ok := st.sessions[sessionID]; ok {
		return state
	}
	state = newSessionState()
	st.sessions[sessionID] = state
	metrics.ActiveSessions.Inc()
	return state
}

// Get returns the session's state without creating it.
func (st *StateStore) Get(sessionID string) (*SessionState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	state, ok := st.sessions[sessionID]
	return state, ok
}

// Delete removes the session's state.
func (st *StateStore) Delete(sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[sessionID]; ok {
		delete(st.sessions, sessionID)
		metrics.ActiveSessions.Dec()
	}
}

// Len reports how many sessions currently hold state.
func (st *StateStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func copyPositions(src map[string]Position) map[string]Position {
	dst := make(map[string]Position, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyStringMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyVoteRow(src map[int]int) map[int]int {
	dst := make(map[int]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copyVotes(src map[string]map[int]int) map[string]map[int]int {
	dst := make(map[string]map[int]int, len(src))
	for user, row := range src {
		dst[user] = copyVoteRow(row)
	}
	return dst
}

func copyActionItems(src []ActionItem) []ActionItem {
	dst := make([]ActionItem, len(src))
	copy(dst, src)
	return dst
}
