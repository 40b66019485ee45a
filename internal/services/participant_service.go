package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/retroboardhq/retroboard/internal/models"
)

// ParticipantService owns durable participant records. It implements the
// board engine's ParticipantDirectory contract.
type ParticipantService struct {
	db *gorm.DB
}

// NewParticipantService constructs the service once a database is supplied.
func NewParticipantService(db *gorm.DB) (*ParticipantService, error) {
	if db == nil {
		return nil, errors.New("participant service: db is required")
	}
	return &ParticipantService{db: db}, nil
}

// Find returns the participant record for the retro/user pair, or (nil, nil)
// when none exists.
func (s *ParticipantService) Find(ctx context.Context, retroID, userID string) (*models.Participant, error) {
	ctx = ensureContext(ctx)

	var participant models.Participant
	err := s.db.WithContext(ctx).
		Where("retro_id = ? AND user_id = ?", strings.TrimSpace(retroID), strings.TrimSpace(userID)).
		First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("participant service: find: %w", err)
	}
	return &participant, nil
}

// Create inserts an active participant record. The retro's creator joins as
// facilitator, everyone else as member. A uniqueness violation maps to
// ErrParticipantExists so callers can treat a lost creation race as success.
func (s *ParticipantService) Create(ctx context.Context, retroID, userID string) (*models.Participant, error) {
	ctx = ensureContext(ctx)
	retroID = strings.TrimSpace(retroID)
	userID = strings.TrimSpace(userID)
	if retroID == "" || userID == "" {
		return nil, errors.New("participant service: retro id and user id are required")
	}

	role := models.RoleMember
	var retro models.Retrospective
	if err := s.db.WithContext(ctx).Select("created_by").First(&retro, "id = ?", retroID).Error; err == nil {
		if retro.CreatedBy == userID {
			role = models.RoleFacilitator
		}
	}

	participant := models.Participant{
		RetroID: retroID,
		UserID:  userID,
		Role:    role,
		Active:  true,
	}
	if err := s.db.WithContext(ctx).Create(&participant).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("%w: %v", ErrParticipantExists, err)
		}
		return nil, fmt.Errorf("participant service: create: %w", err)
	}
	return &participant, nil
}

// SetActive flips the participant's active flag. An unknown pair returns
// gorm.ErrRecordNotFound for the caller to log.
func (s *ParticipantService) SetActive(ctx context.Context, retroID, userID string, active bool) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("retro_id = ? AND user_id = ?", strings.TrimSpace(retroID), strings.TrimSpace(userID)).
		Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("participant service: set active: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListByRetro returns the retro's participants with their user rows loaded.
func (s *ParticipantService) ListByRetro(ctx context.Context, retroID string) ([]models.Participant, error) {
	ctx = ensureContext(ctx)

	var participants []models.Participant
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("retro_id = ?", strings.TrimSpace(retroID)).
		Order("created_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("participant service: list: %w", err)
	}
	return participants, nil
}

// DeactivateExcept marks every active participant inactive whose retro is not
// in the live set. The reconciliation sweep uses it to repair deactivation
// writes that were lost to storage errors at disconnect time. A non-zero
// idleSince restricts the sweep to rows not touched since that instant, so a
// participant who reconnected mid-sweep is left alone.
func (s *ParticipantService) DeactivateExcept(ctx context.Context, liveRetroIDs []string, idleSince time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("active = ?", true)
	if len(liveRetroIDs) > 0 {
		query = query.Where("retro_id NOT IN ?", liveRetroIDs)
	}
	if !idleSince.IsZero() {
		query = query.Where("updated_at < ?", idleSince)
	}

	result := query.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("participant service: deactivate sweep: %w", result.Error)
	}
	return result.RowsAffected, nil
}
