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

// RetroHandler exposes retrospective APIs.
type RetroHandler struct {
	retros       *services.RetroService
	participants *services.ParticipantService
	engine       *board.Service
}

// NewRetroHandler constructs a handler using the provided services.
func NewRetroHandler(retros *services.RetroService, participants *services.ParticipantService, engine *board.Service) *RetroHandler {
	return &RetroHandler{retros: retros, participants: participants, engine: engine}
}

type createRetroPayload struct {
	Name      string `json:"name" validate:"required,min=1,max=200"`
	TeamName  string `json:"team_name" validate:"max=200"`
	CreatedBy string `json:"created_by"`
}

type updatePhasePayload struct {
	Phase  string `json:"phase" validate:"required,retrophase"`
	UserID string `json:"user_id"`
}

// List returns all retrospectives.
func (h *RetroHandler) List(c *gin.Context) {
	retros, err := h.retros.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, retros)
}

// Create registers a new retrospective.
func (h *RetroHandler) Create(c *gin.Context) {
	var payload createRetroPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	retro, err := h.retros.Create(requestContext(c), services.CreateRetroParams{
		Name:      payload.Name,
		TeamName:  payload.TeamName,
		CreatedBy: payload.CreatedBy,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, retro)
}

// Get returns one retrospective with its items and participants.
func (h *RetroHandler) Get(c *gin.Context) {
	retro, err := h.retros.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, retro)
}

// Delete removes a retrospective and its dependent rows.
func (h *RetroHandler) Delete(c *gin.Context) {
	if err := h.retros.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// UpdatePhase persists a phase transition and relays it to the live session.
func (h *RetroHandler) UpdatePhase(c *gin.Context) {
	var payload updatePhasePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	retro, err := h.retros.UpdatePhase(requestContext(c), c.Param("id"), payload.Phase)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.engine != nil {
		h.engine.RelayPhaseChange(retro.ID, strings.TrimSpace(payload.UserID), retro.Phase)
	}
	response.Success(c, http.StatusOK, retro)
}

// Participants lists the retrospective's durable participant rows.
func (h *RetroHandler) Participants(c *gin.Context) {
	retroID := strings.TrimSpace(c.Param("id"))
	if retroID == "" {
		response.Error(c, errors.NewBadRequest("retro id is required"))
		return
	}

	participants, err := h.participants.ListByRetro(requestContext(c), retroID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, participants)
}
