package board

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/retroboardhq/retroboard/pkg/metrics"
)

// actionItemDuplicateWindow suppresses identical submissions arriving within
// this interval, which absorbs double-clicks and client retries.
const actionItemDuplicateWindow = 500 * time.Millisecond

type actionItemsPayload struct {
	ActionItems []ActionItem `json:"actionItems"`
	UserID      string       `json:"userId"`
}

func newActionItemID(now time.Time) string {
	return fmt.Sprintf("%d-%04d", now.UnixMilli(), rand.IntN(10000))
}

// AddActionItem appends a drafted action item and broadcasts the full list. A
// submission duplicating an existing item's task and assignee inside the
// duplicate window is dropped silently.
func (s *Service) AddActionItem(sessionID, userID, task, assigneeID, assigneeName string) Outcome {
	outcome := Rejected

	s.locks.RunExclusive(sessionID, func() {
		state := s.store.GetOrCreate(sessionID)

		now := s.timeNow()
		item := ActionItem{
			ID:           newActionItemID(now),
			Task:         task,
			AssigneeID:   assigneeID,
			AssigneeName: assigneeName,
			CreatedBy:    userID,
			CreatedAt:    now.UnixMilli(),
		}

		added, list := state.AppendActionItem(item, actionItemDuplicateWindow)
		if !added {
			metrics.RejectedUpdates.WithLabelValues("duplicate_action").Inc()
			return
		}

		outcome = Applied
		s.broadcast(sessionID, EventActionItemsUpdate, actionItemsPayload{
			ActionItems: list,
			UserID:      userID,
		})
	})

	return outcome
}

// UpdateActionItem replaces the task and assignee of an existing draft,
// marking it edited. An unknown identifier is a silent no-op.
func (s *Service) UpdateActionItem(sessionID, userID, itemID, task, assigneeID, assigneeName string) Outcome {
	outcome := NoOp

	s.locks.RunExclusive(sessionID, func() {
		state := s.store.GetOrCreate(sessionID)

		ok, list := state.UpdateActionItem(itemID, task, assigneeID, assigneeName)
		if !ok {
			metrics.RejectedUpdates.WithLabelValues("not_found").Inc()
			return
		}

		outcome = Applied
		s.broadcast(sessionID, EventActionItemsUpdate, actionItemsPayload{
			ActionItems: list,
			UserID:      userID,
		})
	})

	return outcome
}

// DeleteActionItem filters the identified draft out and broadcasts the
// resulting list. A session without state yet is a silent no-op.
func (s *Service) DeleteActionItem(sessionID, userID, itemID string) Outcome {
	outcome := NoOp

	s.locks.RunExclusive(sessionID, func() {
		state, ok := s.store.Get(sessionID)
		if !ok {
			return
		}

		outcome = Applied
		list := state.RemoveActionItem(itemID)
		s.broadcast(sessionID, EventActionItemsUpdate, actionItemsPayload{
			ActionItems: list,
			UserID:      userID,
		})
	})

	return outcome
}
