package board

import (
	"context"

	"go.uber.org/zap"
)

type presencePayload struct {
	UserID    string `json:"userId"`
	Active    bool   `json:"active"`
	Role      string `json:"role,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HandleJoin reconciles the durable participant record for a freshly
// connected user and announces the presence change. The whole reconciliation
// runs under the session lock so the broadcast reflects the just-committed
// state. Storage failures degrade to best-effort presence; the connection is
// never dropped for them.
func (s *Service) HandleJoin(ctx context.Context, sessionID, userID string) {
	s.locks.RunExclusive(sessionID, func() {
		s.store.GetOrCreate(sessionID)

		participant, err := s.participants.Find(ctx, sessionID, userID)
		switch {
		case err != nil:
			s.log.Warn("participant lookup failed",
				zap.String("session_id", sessionID),
				zap.String("user_id", userID),
				zap.Error(err))
		case participant == nil:
			created, cerr := s.participants.Create(ctx, sessionID, userID)
			if cerr != nil {
				// A concurrent join may have created the row first; a
				// conflict counts as success once the re-read finds it.
				participant, err = s.participants.Find(ctx, sessionID, userID)
				if err != nil || participant == nil {
					s.log.Warn("participant create failed",
						zap.String("session_id", sessionID),
						zap.String("user_id", userID),
						zap.Error(cerr))
				} else if aerr := s.participants.SetActive(ctx, sessionID, userID, true); aerr != nil {
					s.log.Warn("participant activation failed",
						zap.String("session_id", sessionID),
						zap.String("user_id", userID),
						zap.Error(aerr))
				}
			} else {
				participant = created
			}
		default:
			if aerr := s.participants.SetActive(ctx, sessionID, userID, true); aerr != nil {
				s.log.Warn("participant activation failed",
					zap.String("session_id", sessionID),
					zap.String("user_id", userID),
					zap.Error(aerr))
			}
		}

		role := ""
		if participant != nil {
			role = participant.Role
		}

		s.broadcast(sessionID, EventPresenceChanged, presencePayload{
			UserID:    userID,
			Active:    true,
			Role:      role,
			Timestamp: s.nowMillis(),
		})
	})
}

// HandleLeave marks the participant inactive and announces the change, then
// tears down the session's state and lock once the transport reports no live
// connections remain. The registry entry for the connection is removed by the
// hub before this runs, so a concurrent reconnect cannot be confused.
//
// When another operation holds or is queued on the session lock at the moment
// occupancy reaches zero, Forget declines to drop the entry and it lingers
// until the next leave for the session observes zero occupancy. The leak is
// bounded to one lock entry per abandoned session.
func (s *Service) HandleLeave(ctx context.Context, sessionID, userID string) {
	s.locks.RunExclusive(sessionID, func() {
		if err := s.participants.SetActive(ctx, sessionID, userID, false); err != nil {
			// Best effort: the reconciliation sweep repairs missed writes.
			s.log.Warn("participant deactivation failed",
				zap.String("session_id", sessionID),
				zap.String("user_id", userID),
				zap.Error(err))
		}

		s.broadcast(sessionID, EventPresenceChanged, presencePayload{
			UserID:    userID,
			Active:    false,
			Timestamp: s.nowMillis(),
		})
	})

	if s.occupancy(sessionID) == 0 {
		s.store.Delete(sessionID)
		s.locks.Forget(sessionID)
	}
}
