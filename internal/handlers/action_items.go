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

// ActionItemHandler exposes the committed action item APIs. Drafts live in
// session state; commit copies the current drafts into durable rows.
type ActionItemHandler struct {
	actions *services.ActionItemService
	engine  *board.Service
}

// NewActionItemHandler constructs a handler using the provided services.
func NewActionItemHandler(actions *services.ActionItemService, engine *board.Service) *ActionItemHandler {
	return &ActionItemHandler{actions: actions, engine: engine}
}

// List returns the committed action items for a retrospective.
func (h *ActionItemHandler) List(c *gin.Context) {
	items, err := h.actions.ListByRetro(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, items)
}

// Commit persists the session's current action item drafts.
func (h *ActionItemHandler) Commit(c *gin.Context) {
	retroID := strings.TrimSpace(c.Param("id"))
	if retroID == "" {
		response.Error(c, errors.NewBadRequest("retro id is required"))
		return
	}

	var drafts []board.ActionItem
	if h.engine != nil {
		drafts = h.engine.ActionItemDrafts(retroID)
	}

	rows, err := h.actions.CommitDrafts(requestContext(c), retroID, drafts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}
