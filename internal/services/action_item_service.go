package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/retroboardhq/retroboard/internal/board"
	"github.com/retroboardhq/retroboard/internal/models"
)

// ActionItemService persists action items once a session's drafts are
// committed.
type ActionItemService struct {
	db *gorm.DB
}

// NewActionItemService constructs the service once a database is supplied.
func NewActionItemService(db *gorm.DB) (*ActionItemService, error) {
	if db == nil {
		return nil, errors.New("action item service: db is required")
	}
	return &ActionItemService{db: db}, nil
}

// CommitDrafts replaces the retro's stored action items with the supplied
// session drafts. Empty tasks are skipped. The write is transactional so a
// failed commit leaves the previous rows intact.
func (s *ActionItemService) CommitDrafts(ctx context.Context, retroID string, drafts []board.ActionItem) ([]models.ActionItem, error) {
	ctx = ensureContext(ctx)
	retroID = strings.TrimSpace(retroID)

	rows := make([]models.ActionItem, 0, len(drafts))
	for _, draft := range drafts {
		task := strings.TrimSpace(draft.Task)
		if task == "" {
			continue
		}
		rows = append(rows, models.ActionItem{
			RetroID:      retroID,
			Task:         task,
			AssigneeID:   strings.TrimSpace(draft.AssigneeID),
			AssigneeName: strings.TrimSpace(draft.AssigneeName),
			CreatedBy:    strings.TrimSpace(draft.CreatedBy),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("retro_id = ?", retroID).Delete(&models.ActionItem{}).Error; err != nil {
			return fmt.Errorf("clear previous: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("action item service: commit drafts: %w", err)
	}
	return rows, nil
}

// ListByRetro returns the committed action items for a retro.
func (s *ActionItemService) ListByRetro(ctx context.Context, retroID string) ([]models.ActionItem, error) {
	ctx = ensureContext(ctx)

	var items []models.ActionItem
	err := s.db.WithContext(ctx).
		Where("retro_id = ?", strings.TrimSpace(retroID)).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("action item service: list: %w", err)
	}
	return items, nil
}
