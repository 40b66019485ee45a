package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/retroboardhq/retroboard/internal/models"
	apperrors "github.com/retroboardhq/retroboard/pkg/errors"
)

// CreateRetroParams carries the payload required to create a retrospective.
type CreateRetroParams struct {
	Name      string
	TeamName  string
	CreatedBy string
}

// RetroService owns durable retrospective records and their phase.
type RetroService struct {
	db *gorm.DB
}

// NewRetroService constructs the service once a database is supplied.
func NewRetroService(db *gorm.DB) (*RetroService, error) {
	if db == nil {
		return nil, errors.New("retro service: db is required")
	}
	return &RetroService{db: db}, nil
}

// Create inserts a retrospective in the lobby phase.
func (s *RetroService) Create(ctx context.Context, params CreateRetroParams) (*models.Retrospective, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("retrospective name is required")
	}

	retro := models.Retrospective{
		Name:      name,
		TeamName:  strings.TrimSpace(params.TeamName),
		Phase:     models.PhaseLobby,
		CreatedBy: strings.TrimSpace(params.CreatedBy),
	}
	if err := s.db.WithContext(ctx).Create(&retro).Error; err != nil {
		return nil, fmt.Errorf("retro service: create: %w", err)
	}
	return &retro, nil
}

// Get loads a retrospective with its items and participants.
func (s *RetroService) Get(ctx context.Context, retroID string) (*models.Retrospective, error) {
	ctx = ensureContext(ctx)

	var retro models.Retrospective
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Participants").
		Preload("Participants.User").
		First(&retro, "id = ?", strings.TrimSpace(retroID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrRetroNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retro service: get: %w", err)
	}
	return &retro, nil
}

// List returns all retrospectives, newest first.
func (s *RetroService) List(ctx context.Context) ([]models.Retrospective, error) {
	ctx = ensureContext(ctx)

	var retros []models.Retrospective
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&retros).Error; err != nil {
		return nil, fmt.Errorf("retro service: list: %w", err)
	}
	return retros, nil
}

// UpdatePhase persists a phase transition and returns the updated row.
func (s *RetroService) UpdatePhase(ctx context.Context, retroID, phase string) (*models.Retrospective, error) {
	ctx = ensureContext(ctx)

	phase = strings.TrimSpace(strings.ToLower(phase))
	if !models.ValidPhase(phase) {
		return nil, apperrors.ErrInvalidPhase
	}

	result := s.db.WithContext(ctx).
		Model(&models.Retrospective{}).
		Where("id = ?", strings.TrimSpace(retroID)).
		Update("phase", phase)
	if result.Error != nil {
		return nil, fmt.Errorf("retro service: update phase: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.ErrRetroNotFound
	}

	return s.Get(ctx, retroID)
}

// Delete removes a retrospective and its dependent rows.
func (s *RetroService) Delete(ctx context.Context, retroID string) error {
	ctx = ensureContext(ctx)
	retroID = strings.TrimSpace(retroID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.RetroItem{},
			&models.ItemGroup{},
			&models.Participant{},
			&models.ActionItem{},
			&models.VoteSubmission{},
		} {
			if err := tx.Where("retro_id = ?", retroID).Delete(model).Error; err != nil {
				return fmt.Errorf("retro service: delete dependents: %w", err)
			}
		}

		result := tx.Delete(&models.Retrospective{}, "id = ?", retroID)
		if result.Error != nil {
			return fmt.Errorf("retro service: delete: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrRetroNotFound
		}
		return nil
	})
}

// RecordVoteSubmission persists the finalized per-group tallies for the
// retro. Callers invoke this before relaying the submission to the live
// session. Resubmission overwrites the previous tallies.
func (s *RetroService) RecordVoteSubmission(ctx context.Context, retroID, submittedBy string, tallies map[int]int) (*models.VoteSubmission, error) {
	ctx = ensureContext(ctx)
	retroID = strings.TrimSpace(retroID)
	if retroID == "" {
		return nil, apperrors.NewBadRequest("retro id is required")
	}

	submission := models.VoteSubmission{
		RetroID:     retroID,
		SubmittedBy: strings.TrimSpace(submittedBy),
		Tallies:     datatypes.NewJSONType(tallies),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "retro_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"submitted_by", "tallies", "updated_at"}),
		}).
		Create(&submission).Error
	if err != nil {
		return nil, fmt.Errorf("retro service: record vote submission: %w", err)
	}
	return &submission, nil
}
