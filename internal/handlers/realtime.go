package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retroboardhq/retroboard/internal/board"
	"github.com/retroboardhq/retroboard/internal/realtime"
	"github.com/retroboardhq/retroboard/internal/services"
	"github.com/retroboardhq/retroboard/pkg/errors"
	"github.com/retroboardhq/retroboard/pkg/logger"
	"github.com/retroboardhq/retroboard/pkg/response"
)

// RealtimeHandler upgrades HTTP connections into session-scoped websocket
// streams and dispatches inbound frames to the board engine.
type RealtimeHandler struct {
	hub    *realtime.Hub
	engine *board.Service
	items  *services.ItemService
	retros *services.RetroService
	log    *zap.Logger
}

// NewRealtimeHandler constructs the websocket entry point.
func NewRealtimeHandler(hub *realtime.Hub, engine *board.Service, items *services.ItemService, retros *services.RetroService) *RealtimeHandler {
	return &RealtimeHandler{
		hub:    hub,
		engine: engine,
		items:  items,
		retros: retros,
		log:    logger.WithModule("handlers.realtime"),
	}
}

// Stream validates the caller's identity parameters and hands the connection
// to the hub. Both userId and sessionId are required; a connection without
// either would join a room it can never be cleaned out of, so the request is
// refused outright.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil || h.engine == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	userID := strings.TrimSpace(c.Query("userId"))
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	if userID == "" || sessionID == "" {
		response.Error(c, errors.NewBadRequest("userId and sessionId query parameters are required"))
		return
	}

	h.hub.Serve(userID, sessionID, c.Writer, c.Request)
}

type positionFramePayload struct {
	ItemID   string         `json:"itemId"`
	Position board.Position `json:"position"`
}

type bulkPositionFramePayload struct {
	Positions map[string]board.Position `json:"positions"`
	Source    string                    `json:"source,omitempty"`
}

type groupingFramePayload struct {
	Groups    map[string]string `json:"groups"`
	Colors    map[string]string `json:"colors,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Version   int64             `json:"version,omitempty"`
}

type labelFramePayload struct {
	GroupID string   `json:"groupId"`
	Label   string   `json:"label"`
	Members []string `json:"members,omitempty"`
}

type voteFramePayload struct {
	Votes map[int]int `json:"votes"`
}

type voteSubmissionFramePayload struct {
	Tallies map[int]int `json:"tallies"`
}

type actionItemFramePayload struct {
	ID           string `json:"id,omitempty"`
	Task         string `json:"task,omitempty"`
	AssigneeID   string `json:"assigneeId,omitempty"`
	AssigneeName string `json:"assigneeName,omitempty"`
}

// HandleFrame routes one inbound frame. It runs on the connection's read
// goroutine, so anything long-lived must not block here.
func (h *RealtimeHandler) HandleFrame(client *realtime.Client, sessionID, userID string, frame realtime.Frame) {
	switch frame.Action {
	case realtime.ActionUpdateItemPosition:
		var payload positionFramePayload
		if !h.decode(frame, &payload) || payload.ItemID == "" {
			return
		}
		h.engine.UpdatePosition(sessionID, userID, payload.ItemID, payload.Position)

	case realtime.ActionUpdateItemPositions:
		var payload bulkPositionFramePayload
		if !h.decode(frame, &payload) {
			return
		}
		h.engine.UpdatePositions(sessionID, userID, payload.Positions, payload.Source)

	case realtime.ActionGroupingUpdate:
		var payload groupingFramePayload
		if !h.decode(frame, &payload) {
			return
		}
		h.engine.UpdateGrouping(sessionID, userID, payload.Groups, payload.Colors, payload.Timestamp, payload.Version)

	case realtime.ActionLabelUpdate:
		var payload labelFramePayload
		if !h.decode(frame, &payload) || payload.GroupID == "" {
			return
		}
		h.persistLabel(sessionID, payload)
		h.engine.RelayLabel(sessionID, userID, payload.GroupID, payload.Label)

	case realtime.ActionVoteUpdate:
		var payload voteFramePayload
		if !h.decode(frame, &payload) {
			return
		}
		h.engine.UpdateVotes(sessionID, userID, payload.Votes)

	case realtime.ActionSubmitVotes:
		var payload voteSubmissionFramePayload
		if !h.decode(frame, &payload) {
			return
		}
		h.persistSubmission(sessionID, userID, payload.Tallies)
		h.engine.RelaySubmittedVotes(sessionID, userID, payload.Tallies)

	case realtime.ActionActionItemAdd:
		var payload actionItemFramePayload
		if !h.decode(frame, &payload) {
			return
		}
		h.engine.AddActionItem(sessionID, userID, payload.Task, payload.AssigneeID, payload.AssigneeName)

	case realtime.ActionActionItemUpdate:
		var payload actionItemFramePayload
		if !h.decode(frame, &payload) || payload.ID == "" {
			return
		}
		h.engine.UpdateActionItem(sessionID, userID, payload.ID, payload.Task, payload.AssigneeID, payload.AssigneeName)

	case realtime.ActionActionItemDelete:
		var payload actionItemFramePayload
		if !h.decode(frame, &payload) || payload.ID == "" {
			return
		}
		h.engine.DeleteActionItem(sessionID, userID, payload.ID)

	case realtime.ActionTyping:
		h.engine.RelayTyping(sessionID, userID)

	case realtime.ActionRequestItemPositions:
		client.Send(board.EventInitialItemPositions, gin.H{
			"positions": h.engine.ItemPositions(sessionID),
		})

	case realtime.ActionRequestVotingResults:
		client.Send(board.EventInitialVotingResult, gin.H{
			"votes": h.engine.AllVotes(sessionID),
		})

	case realtime.ActionRequestUserVotes:
		client.Send(board.EventInitialUserVotes, gin.H{
			"userId": userID,
			"votes":  h.engine.UserVotes(sessionID, userID),
		})

	case realtime.ActionRequestRetroState:
		client.Send(board.EventRetroState, h.engine.StateSnapshot(sessionID))

	default:
		h.log.Debug("dropping unknown action",
			zap.String("action", frame.Action),
			zap.String("session_id", sessionID))
	}
}

func (h *RealtimeHandler) decode(frame realtime.Frame, dest any) bool {
	if len(frame.Data) == 0 {
		return false
	}
	if err := json.Unmarshal(frame.Data, dest); err != nil {
		h.log.Warn("malformed frame payload",
			zap.String("action", frame.Action),
			zap.Error(err))
		return false
	}
	return true
}

// persistLabel records the durable group label before the live relay so a
// reconnecting client sees the same label the room saw.
func (h *RealtimeHandler) persistLabel(sessionID string, payload labelFramePayload) {
	if h.items == nil {
		return
	}
	if _, err := h.items.SetGroupLabel(context.Background(), sessionID, payload.GroupID, payload.Label, payload.Members); err != nil {
		h.log.Warn("label persistence failed",
			zap.String("session_id", sessionID),
			zap.String("group_id", payload.GroupID),
			zap.Error(err))
	}
}

func (h *RealtimeHandler) persistSubmission(sessionID, userID string, tallies map[int]int) {
	if h.retros == nil {
		return
	}
	if _, err := h.retros.RecordVoteSubmission(context.Background(), sessionID, userID, tallies); err != nil {
		h.log.Warn("vote submission persistence failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
