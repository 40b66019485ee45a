package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retroboardhq/retroboard/internal/models"
)

type recordedEvent struct {
	SessionID string
	Event     string
	Data      any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeBroadcaster) Broadcast(sessionID, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{SessionID: sessionID, Event: event, Data: data})
}

func (f *fakeBroadcaster) all() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeBroadcaster) last() (recordedEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return recordedEvent{}, false
	}
	return f.events[len(f.events)-1], true
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakeDirectory struct {
	mu      sync.Mutex
	rows    map[string]*models.Participant // retroID+"/"+userID
	findErr error
	// createConflict makes Create fail with a unique-violation while still
	// leaving the row in place, as a lost creation race would.
	createConflict bool
	activeErr      error
	createCalls    int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{rows: make(map[string]*models.Participant)}
}

func (f *fakeDirectory) key(retroID, userID string) string { return retroID + "/" + userID }

func (f *fakeDirectory) Find(_ context.Context, retroID, userID string) (*models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	row, ok := f.rows[f.key(retroID, userID)]
	if !ok {
		return nil, nil
	}
	cpy := *row
	return &cpy, nil
}

func (f *fakeDirectory) Create(_ context.Context, retroID, userID string) (*models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createConflict {
		f.rows[f.key(retroID, userID)] = &models.Participant{RetroID: retroID, UserID: userID, Role: models.RoleMember}
		return nil, errors.New("UNIQUE constraint failed: participants.retro_id, participants.user_id")
	}
	row := &models.Participant{RetroID: retroID, UserID: userID, Role: models.RoleMember, Active: true}
	f.rows[f.key(retroID, userID)] = row
	cpy := *row
	return &cpy, nil
}

func (f *fakeDirectory) SetActive(_ context.Context, retroID, userID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeErr != nil {
		return f.activeErr
	}
	if row, ok := f.rows[f.key(retroID, userID)]; ok {
		row.Active = active
	}
	return nil
}

func newTestService(occupants int) (*Service, *fakeBroadcaster, *fakeDirectory) {
	b := &fakeBroadcaster{}
	d := newFakeDirectory()
	svc := NewService(b, d, func(string) int { return occupants })
	return svc, b, d
}

func TestHandleJoinCreatesParticipantAndBroadcasts(t *testing.T) {
	svc, b, d := newTestService(1)

	svc.HandleJoin(context.Background(), "r1", "u1")

	row, err := d.Find(context.Background(), "r1", "u1")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.True(t, row.Active)

	last, ok := b.last()
	require.True(t, ok)
	require.Equal(t, EventPresenceChanged, last.Event)
	require.Equal(t, "r1", last.SessionID)
	payload := last.Data.(presencePayload)
	require.Equal(t, "u1", payload.UserID)
	require.True(t, payload.Active)

	// Session state exists after the join.
	_, exists := svc.Store().Get("r1")
	require.True(t, exists)
}

func TestHandleJoinToleratesDuplicateCreationRace(t *testing.T) {
	svc, b, d := newTestService(1)
	d.createConflict = true

	svc.HandleJoin(context.Background(), "r1", "u1")

	// The conflict counts as success: the re-read found the winner's row
	// and it was marked active.
	row, err := d.Find(context.Background(), "r1", "u1")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.True(t, row.Active)
	require.Equal(t, 1, d.createCalls)

	last, ok := b.last()
	require.True(t, ok)
	require.Equal(t, EventPresenceChanged, last.Event)
}

func TestHandleLeaveDeactivatesAndCleansUpEmptySession(t *testing.T) {
	svc, b, d := newTestService(0)

	svc.HandleJoin(context.Background(), "r1", "u1")
	_, exists := svc.Store().Get("r1")
	require.True(t, exists)

	svc.HandleLeave(context.Background(), "r1", "u1")

	row, err := d.Find(context.Background(), "r1", "u1")
	require.NoError(t, err)
	require.False(t, row.Active)

	last, ok := b.last()
	require.True(t, ok)
	payload := last.Data.(presencePayload)
	require.False(t, payload.Active)

	// Occupancy is zero, so state and lock are discarded.
	_, exists = svc.Store().Get("r1")
	require.False(t, exists)
	require.Equal(t, 0, svc.locks.Len())

	// A later connection starts from a default state.
	require.Empty(t, svc.StateSnapshot("r1").ItemPositions)
}

func TestHandleLeaveKeepsStateWhileOccupied(t *testing.T) {
	svc, _, _ := newTestService(2)

	svc.HandleJoin(context.Background(), "r1", "u1")
	svc.HandleLeave(context.Background(), "r1", "u1")

	_, exists := svc.Store().Get("r1")
	require.True(t, exists)
}

func TestHandleLeaveSurvivesStorageFailure(t *testing.T) {
	svc, b, d := newTestService(1)
	d.activeErr = errors.New("connection reset")

	svc.HandleLeave(context.Background(), "r1", "u1")

	// Broadcast still goes out; the failure is logged only.
	last, ok := b.last()
	require.True(t, ok)
	require.Equal(t, EventPresenceChanged, last.Event)
}

func TestScenarioABulkInitPositions(t *testing.T) {
	svc, b, _ := newTestService(1)

	changed, outcome := svc.UpdatePositions("r1", "u1", map[string]Position{
		"a": {X: 0, Y: 0},
		"b": {X: 10, Y: 10},
	}, SourceInitLayout)

	require.Equal(t, Applied, outcome)
	require.Equal(t, map[string]Position{"a": {X: 0, Y: 0}, "b": {X: 10, Y: 10}}, changed)
	require.Equal(t, changed, svc.ItemPositions("r1"))

	last, ok := b.last()
	require.True(t, ok)
	require.Equal(t, EventItemsBulkUpdate, last.Event)
	payload := last.Data.(bulkPositionPayload)
	require.Len(t, payload.Positions, 2)
}

func TestBulkInitFirstWriterWins(t *testing.T) {
	svc, _, _ := newTestService(1)

	// Two init submissions for disjoint item sets both merge in.
	_, outcome := svc.UpdatePositions("r1", "u1", map[string]Position{"a": {X: 1, Y: 1}}, SourceInitLayout)
	require.Equal(t, Applied, outcome)
	_, outcome = svc.UpdatePositions("r1", "u2", map[string]Position{"b": {X: 2, Y: 2}}, SourceInitLayout)
	require.Equal(t, Applied, outcome)

	// A later init never overwrites, only fills absences.
	changed, outcome := svc.UpdatePositions("r1", "u2", map[string]Position{
		"a": {X: 9, Y: 9},
		"c": {X: 3, Y: 3},
	}, SourceInitLayout)
	require.Equal(t, Applied, outcome)
	require.Equal(t, map[string]Position{"c": {X: 3, Y: 3}}, changed)

	positions := svc.ItemPositions("r1")
	require.Equal(t, Position{X: 1, Y: 1}, positions["a"])
}

func TestBulkUpdateAllUnchangedIsNoOp(t *testing.T) {
	svc, b, _ := newTestService(1)

	svc.UpdatePosition("r1", "u1", "a", Position{X: 1, Y: 1})
	before := b.count()

	changed, outcome := svc.UpdatePositions("r1", "u1", map[string]Position{"a": {X: 1, Y: 1}}, "")
	require.Equal(t, NoOp, outcome)
	require.Empty(t, changed)
	require.Equal(t, before, b.count())
}

func TestScenarioBStaleGroupingDropped(t *testing.T) {
	svc, b, _ := newTestService(1)

	outcome := svc.UpdateGrouping("r1", "u1", map[string]string{"x": "x"}, nil, 10_000, 1)
	require.Equal(t, Applied, outcome)
	before := b.count()

	outcome = svc.UpdateGrouping("r1", "u1", map[string]string{"x": "stale"}, nil, 9_000, 7)
	require.Equal(t, Rejected, outcome)
	require.Equal(t, before, b.count(), "stale update must not broadcast")

	snap := svc.StateSnapshot("r1")
	require.Equal(t, map[string]string{"x": "x"}, snap.ItemGroups)
	require.EqualValues(t, 10_000, snap.LastGroupingUpdate)
}

func TestGroupingIdempotence(t *testing.T) {
	svc, _, _ := newTestService(1)

	groups := map[string]string{"a": "a|b", "b": "a|b"}
	require.Equal(t, Applied, svc.UpdateGrouping("r1", "u1", groups, nil, 5_000, 3))
	first := svc.StateSnapshot("r1")

	require.Equal(t, Rejected, svc.UpdateGrouping("r1", "u1", groups, nil, 5_000, 3))
	require.Equal(t, first, svc.StateSnapshot("r1"))
}

func TestScenarioCVoteBudgetEnforced(t *testing.T) {
	svc, b, _ := newTestService(1)

	require.Equal(t, Applied, svc.UpdateVotes("r1", "u1", map[int]int{0: 1, 1: 1}))
	before := b.count()

	require.Equal(t, Rejected, svc.UpdateVotes("r1", "u1", map[int]int{0: 2, 1: 2}))
	require.Equal(t, before, b.count())
	require.Equal(t, map[int]int{0: 1, 1: 1}, svc.UserVotes("r1", "u1"))

	// Negative counts are rejected regardless of the sum.
	require.Equal(t, Rejected, svc.UpdateVotes("r1", "u1", map[int]int{0: -1, 1: 3}))
	require.Equal(t, map[int]int{0: 1, 1: 1}, svc.UserVotes("r1", "u1"))
}

func TestUpdateVotesReplacesRowWholesale(t *testing.T) {
	svc, b, _ := newTestService(1)

	svc.UpdateVotes("r1", "u1", map[int]int{0: 2, 1: 1})
	svc.UpdateVotes("r1", "u1", map[int]int{2: 3})

	require.Equal(t, map[int]int{2: 3}, svc.UserVotes("r1", "u1"))

	last, _ := b.last()
	payload := last.Data.(votePayload)
	require.Equal(t, map[int]int{2: 3}, payload.Votes)
	require.Equal(t, map[int]int{2: 3}, payload.AllVotes["u1"])
}

func TestBroadcastPayloadsDetachedFromLiveState(t *testing.T) {
	svc, b, _ := newTestService(1)

	input := map[int]int{0: 2}
	require.Equal(t, Applied, svc.UpdateVotes("r1", "u1", input))
	first, _ := b.last()
	votes := first.Data.(votePayload)

	// Neither later state changes nor caller-side mutation of the input map
	// may reach an already-broadcast payload.
	input[0] = 99
	require.Equal(t, Applied, svc.UpdateVotes("r1", "u1", map[int]int{1: 3}))

	require.Equal(t, map[int]int{0: 2}, votes.Votes)
	require.Equal(t, map[int]int{0: 2}, votes.AllVotes["u1"])

	require.Equal(t, Applied, svc.AddActionItem("r1", "u1", "rotate pager duty", "u2", "Sam"))
	second, _ := b.last()
	items := second.Data.(actionItemsPayload)
	require.Len(t, items.ActionItems, 1)

	require.Equal(t, Applied, svc.UpdateActionItem("r1", "u1", items.ActionItems[0].ID, "retire pager", "u3", "Kim"))
	require.Equal(t, "rotate pager duty", items.ActionItems[0].Task)
	require.False(t, items.ActionItems[0].Edited)
}

func TestScenarioDActionItemDoubleSubmit(t *testing.T) {
	svc, b, _ := newTestService(1)

	now := time.UnixMilli(50_000)
	svc.timeNow = func() time.Time { return now }

	require.Equal(t, Applied, svc.AddActionItem("r1", "u1", "fix bug", "u1", "Uma"))
	before := b.count()

	// 100ms later, identical task and assignee: a no-op.
	now = time.UnixMilli(50_100)
	require.Equal(t, Rejected, svc.AddActionItem("r1", "u2", "fix bug", "u1", "Uma"))
	require.Equal(t, before, b.count())
	require.Len(t, svc.ActionItemDrafts("r1"), 1)

	// Past the window the same submission is accepted.
	now = time.UnixMilli(50_700)
	require.Equal(t, Applied, svc.AddActionItem("r1", "u2", "fix bug", "u1", "Uma"))
	require.Len(t, svc.ActionItemDrafts("r1"), 2)
}

func TestActionItemUpdateAndDelete(t *testing.T) {
	svc, b, _ := newTestService(1)

	require.Equal(t, Applied, svc.AddActionItem("r1", "u1", "write docs", "u2", "Dev"))
	item := svc.ActionItemDrafts("r1")[0]

	require.Equal(t, Applied, svc.UpdateActionItem("r1", "u1", item.ID, "write more docs", "u3", "Taylor"))
	updated := svc.ActionItemDrafts("r1")[0]
	require.Equal(t, "write more docs", updated.Task)
	require.True(t, updated.Edited)

	// Unknown id: silent no-op, no broadcast.
	before := b.count()
	require.Equal(t, NoOp, svc.UpdateActionItem("r1", "u1", "missing", "x", "", ""))
	require.Equal(t, before, b.count())

	require.Equal(t, Applied, svc.DeleteActionItem("r1", "u1", item.ID))
	require.Empty(t, svc.ActionItemDrafts("r1"))

	last, _ := b.last()
	require.Equal(t, EventActionItemsUpdate, last.Event)
	payload := last.Data.(actionItemsPayload)
	require.Empty(t, payload.ActionItems)
}

func TestDeleteActionItemWithoutStateIsSilent(t *testing.T) {
	svc, b, _ := newTestService(1)

	require.Equal(t, NoOp, svc.DeleteActionItem("r1", "u1", "anything"))
	require.Equal(t, 0, b.count())
	_, exists := svc.Store().Get("r1")
	require.False(t, exists, "delete must not lazily create state")
}

func TestQueriesReturnEmptyDefaults(t *testing.T) {
	svc, _, _ := newTestService(1)

	snap := svc.StateSnapshot("r1")
	require.NotNil(t, snap.ItemPositions)
	require.Empty(t, snap.ItemPositions)
	require.NotNil(t, snap.AllUserVotes)
	require.Empty(t, snap.ActionItems)

	require.Equal(t, map[int]int{}, svc.UserVotes("r1", "nobody"))
	require.Empty(t, svc.ItemPositions("r1"))
}

func TestRelaysBroadcastWithoutState(t *testing.T) {
	svc, b, _ := newTestService(1)

	svc.RelayLabel("r1", "u1", "a|b", "Deploys")
	svc.RelaySubmittedVotes("r1", "u1", map[int]int{0: 4, 1: 2})
	svc.RelayTyping("r1", "u2")
	svc.RelayPhaseChange("r1", "u1", "vote")

	events := b.all()
	require.Len(t, events, 4)
	require.Equal(t, EventLabelUpdate, events[0].Event)
	require.Equal(t, EventVoteSubmission, events[1].Event)
	require.Equal(t, EventTyping, events[2].Event)
	require.Equal(t, EventPhaseChanged, events[3].Event)

	// Relays never materialise session state.
	_, exists := svc.Store().Get("r1")
	require.False(t, exists)
}

func TestHandleLeaveRetiresLingeringLockEntry(t *testing.T) {
	svc, _, _ := newTestService(0)

	// Occupancy hits zero while an operation still holds the session lock:
	// the teardown Forget declines and the entry lingers.
	svc.locks.RunExclusive("r1", func() {
		svc.locks.Forget("r1")
	})
	require.Equal(t, 1, svc.locks.Len())

	// The next leave that observes zero occupancy retires the entry.
	svc.HandleLeave(context.Background(), "r1", "u1")
	require.Equal(t, 0, svc.locks.Len())
	_, exists := svc.Store().Get("r1")
	require.False(t, exists)
}

func TestConcurrentMutatorsSerializePerSession(t *testing.T) {
	svc, _, _ := newTestService(1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			svc.AddActionItem("r1", "u1", "task", "u"+string(rune('a'+n)), "")
		}(i)
	}
	wg.Wait()

	// All distinct assignees land; the list length equals the writers.
	require.Len(t, svc.ActionItemDrafts("r1"), 20)
}
