package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/retroboardhq/retroboard/internal/models"
	apperrors "github.com/retroboardhq/retroboard/pkg/errors"
)

var validCategories = map[string]struct{}{
	"went-well":         {},
	"needs-improvement": {},
	"action-idea":       {},
}

// CreateItemParams carries the payload required to add a board item.
type CreateItemParams struct {
	RetroID  string
	Category string
	Text     string
	AuthorID string
}

// ItemService owns retrospective items and the durable group labels
// attached to them.
type ItemService struct {
	db *gorm.DB
}

// NewItemService constructs the service once a database is supplied.
func NewItemService(db *gorm.DB) (*ItemService, error) {
	if db == nil {
		return nil, errors.New("item service: db is required")
	}
	return &ItemService{db: db}, nil
}

// Create inserts a new item for the retro.
func (s *ItemService) Create(ctx context.Context, params CreateItemParams) (*models.RetroItem, error) {
	ctx = ensureContext(ctx)

	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, apperrors.NewBadRequest("item text is required")
	}
	category := strings.TrimSpace(params.Category)
	if _, ok := validCategories[category]; !ok {
		return nil, apperrors.NewBadRequest("unknown item category")
	}

	item := models.RetroItem{
		RetroID:  strings.TrimSpace(params.RetroID),
		Category: category,
		Text:     text,
		AuthorID: strings.TrimSpace(params.AuthorID),
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("item service: create: %w", err)
	}
	return &item, nil
}

// ListByRetro returns a retro's items in insertion order.
func (s *ItemService) ListByRetro(ctx context.Context, retroID string) ([]models.RetroItem, error) {
	ctx = ensureContext(ctx)

	var items []models.RetroItem
	err := s.db.WithContext(ctx).
		Where("retro_id = ?", strings.TrimSpace(retroID)).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("item service: list: %w", err)
	}
	return items, nil
}

// UpdateText changes the text of an existing item.
func (s *ItemService) UpdateText(ctx context.Context, itemID, text string) (*models.RetroItem, error) {
	ctx = ensureContext(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewBadRequest("item text is required")
	}

	var item models.RetroItem
	err := s.db.WithContext(ctx).First(&item, "id = ?", strings.TrimSpace(itemID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("item service: load: %w", err)
	}

	item.Text = text
	if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
		return nil, fmt.Errorf("item service: update: %w", err)
	}
	return &item, nil
}

// Delete removes an item.
func (s *ItemService) Delete(ctx context.Context, itemID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.RetroItem{}, "id = ?", strings.TrimSpace(itemID))
	if result.Error != nil {
		return fmt.Errorf("item service: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrItemNotFound
	}
	return nil
}

// SetGroupLabel upserts the durable label for a group keyed by its member
// signature. Members beyond the signature are stored for later reporting.
func (s *ItemService) SetGroupLabel(ctx context.Context, retroID, signature, label string, members []string) (*models.ItemGroup, error) {
	ctx = ensureContext(ctx)
	retroID = strings.TrimSpace(retroID)
	signature = strings.TrimSpace(signature)
	if retroID == "" || signature == "" {
		return nil, apperrors.NewBadRequest("retro id and group signature are required")
	}

	memberJSON, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("item service: encode members: %w", err)
	}

	var group models.ItemGroup
	err = s.db.WithContext(ctx).
		Where("retro_id = ? AND signature = ?", retroID, signature).
		First(&group).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		group = models.ItemGroup{
			RetroID:   retroID,
			Signature: signature,
			Label:     label,
			Members:   datatypes.JSON(memberJSON),
		}
		if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
			return nil, fmt.Errorf("item service: create group: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("item service: load group: %w", err)
	default:
		group.Label = label
		group.Members = datatypes.JSON(memberJSON)
		if err := s.db.WithContext(ctx).Save(&group).Error; err != nil {
			return nil, fmt.Errorf("item service: update group: %w", err)
		}
	}
	return &group, nil
}

// ListGroups returns the durable groups recorded for a retro.
func (s *ItemService) ListGroups(ctx context.Context, retroID string) ([]models.ItemGroup, error) {
	ctx = ensureContext(ctx)

	var groups []models.ItemGroup
	err := s.db.WithContext(ctx).
		Where("retro_id = ?", strings.TrimSpace(retroID)).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("item service: list groups: %w", err)
	}
	return groups, nil
}
