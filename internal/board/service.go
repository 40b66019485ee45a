package board

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/retroboardhq/retroboard/internal/models"
	"github.com/retroboardhq/retroboard/pkg/logger"
	"github.com/retroboardhq/retroboard/pkg/metrics"
)

// Broadcaster fans an event out to every connection of a session. Payloads
// handed to it are already copies; implementations must not retain references
// into live session state.
type Broadcaster interface {
	Broadcast(sessionID, event string, data any)
}

// OccupancyFunc reports how many live connections a session currently has.
type OccupancyFunc func(sessionID string) int

// ParticipantDirectory is the durable-storage collaborator for participant
// records. Find returns (nil, nil) when no record exists.
type ParticipantDirectory interface {
	Find(ctx context.Context, retroID, userID string) (*models.Participant, error)
	Create(ctx context.Context, retroID, userID string) (*models.Participant, error)
	SetActive(ctx context.Context, retroID, userID string, active bool) error
}

// Service is the realtime session-state engine: it owns the per-session
// state, the per-session lock discipline, and the broadcasts that keep every
// connected client's view consistent.
type Service struct {
	store        *StateStore
	locks        *SessionLocker
	broadcaster  Broadcaster
	participants ParticipantDirectory
	occupancy    OccupancyFunc

	log     *zap.Logger
	timeNow func() time.Time
}

// NewService wires the board engine to its transport and storage
// collaborators.
func NewService(b Broadcaster, participants ParticipantDirectory, occupancy OccupancyFunc) *Service {
	return &Service{
		store:        NewStateStore(),
		locks:        NewSessionLocker(),
		broadcaster:  b,
		participants: participants,
		occupancy:    occupancy,
		log:          logger.WithModule("board"),
		timeNow:      time.Now,
	}
}

// Store exposes the state store for tests and the maintenance sweeper.
func (s *Service) Store() *StateStore {
	return s.store
}

func (s *Service) broadcast(sessionID, event string, data any) {
	metrics.Broadcasts.WithLabelValues(event).Inc()
	s.broadcaster.Broadcast(sessionID, event, data)
}

func (s *Service) nowMillis() int64 {
	return s.timeNow().UnixMilli()
}

// RelayPhaseChange announces a persisted phase transition to the live
// session. The durable write happens in the retro service before this relay
// is invoked.
func (s *Service) RelayPhaseChange(sessionID, userID, phase string) {
	s.broadcast(sessionID, EventPhaseChanged, phasePayload{
		Phase:     phase,
		UserID:    userID,
		Timestamp: s.nowMillis(),
	})
}

// RelayTyping forwards a typing-indicator ping to the session.
func (s *Service) RelayTyping(sessionID, userID string) {
	s.broadcast(sessionID, EventTyping, typingPayload{UserID: userID})
}

// RelayItemEvent announces a persisted feedback-item change (event is one of
// EventItemAdded, EventItemUpdated, EventItemDeleted).
func (s *Service) RelayItemEvent(sessionID, event string, item any) {
	s.broadcast(sessionID, event, item)
}

type phasePayload struct {
	Phase     string `json:"phase"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

type typingPayload struct {
	UserID string `json:"userId"`
}
