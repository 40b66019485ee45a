package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/retroboardhq/retroboard/internal/board"
	"github.com/retroboardhq/retroboard/internal/services"
	"github.com/retroboardhq/retroboard/pkg/errors"
	"github.com/retroboardhq/retroboard/pkg/response"
)

// ItemHandler exposes board item APIs. Mutations are relayed to the live
// session so every connected client converges without polling.
type ItemHandler struct {
	items  *services.ItemService
	engine *board.Service
}

// NewItemHandler constructs a handler using the provided services.
func NewItemHandler(items *services.ItemService, engine *board.Service) *ItemHandler {
	return &ItemHandler{items: items, engine: engine}
}

type createItemPayload struct {
	Category string `json:"category" validate:"required,oneof=went-well needs-improvement action-idea"`
	Text     string `json:"text" validate:"required,min=1,max=2000"`
	AuthorID string `json:"author_id"`
}

type updateItemPayload struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
}

// List returns the retrospective's items.
func (h *ItemHandler) List(c *gin.Context) {
	items, err := h.items.ListByRetro(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Create adds a new item and announces it to the session.
func (h *ItemHandler) Create(c *gin.Context) {
	retroID := strings.TrimSpace(c.Param("id"))
	if retroID == "" {
		response.Error(c, errors.NewBadRequest("retro id is required"))
		return
	}

	var payload createItemPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	item, err := h.items.Create(requestContext(c), services.CreateItemParams{
		RetroID:  retroID,
		Category: payload.Category,
		Text:     payload.Text,
		AuthorID: payload.AuthorID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.engine != nil {
		h.engine.RelayItemEvent(retroID, board.EventItemAdded, item)
	}
	response.Success(c, http.StatusCreated, item)
}

// Update rewrites an item's text and announces the change.
func (h *ItemHandler) Update(c *gin.Context) {
	var payload updateItemPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	item, err := h.items.UpdateText(requestContext(c), c.Param("itemId"), payload.Text)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.engine != nil {
		h.engine.RelayItemEvent(item.RetroID, board.EventItemUpdated, item)
	}
	response.Success(c, http.StatusOK, item)
}

// Delete removes an item and announces the removal.
func (h *ItemHandler) Delete(c *gin.Context) {
	retroID := strings.TrimSpace(c.Param("id"))
	itemID := strings.TrimSpace(c.Param("itemId"))

	if err := h.items.Delete(requestContext(c), itemID); err != nil {
		response.Error(c, err)
		return
	}

	if h.engine != nil {
		h.engine.RelayItemEvent(retroID, board.EventItemDeleted, gin.H{"id": itemID})
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Groups lists the durable labelled groups recorded for the retrospective.
func (h *ItemHandler) Groups(c *gin.Context) {
	groups, err := h.items.ListGroups(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, groups)
}
