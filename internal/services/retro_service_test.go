package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroboardhq/retroboard/internal/database/testutil"
	"github.com/retroboardhq/retroboard/internal/models"
	apperrors "github.com/retroboardhq/retroboard/pkg/errors"
)

func TestRetroCreateStartsInLobby(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRetroService(db)
	require.NoError(t, err)

	retro, err := svc.Create(context.Background(), CreateRetroParams{
		Name:      "Sprint 42",
		TeamName:  "Payments",
		CreatedBy: "user-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, retro.ID)
	assert.Equal(t, models.PhaseLobby, retro.Phase)
}

func TestRetroCreateRequiresName(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRetroService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateRetroParams{Name: "   "})
	require.Error(t, err)

	appErr := apperrors.FromError(err)
	assert.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
}

func TestRetroGetUnknownID(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRetroService(db)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrRetroNotFound))
}

func TestRetroUpdatePhase(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRetroService(db)
	require.NoError(t, err)

	retro, err := svc.Create(context.Background(), CreateRetroParams{Name: "Sprint 42"})
	require.NoError(t, err)

	updated, err := svc.UpdatePhase(context.Background(), retro.ID, "Vote")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseVote, updated.Phase)

	_, err = svc.UpdatePhase(context.Background(), retro.ID, "intermission")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPhase))

	_, err = svc.UpdatePhase(context.Background(), "missing", models.PhaseVote)
	assert.True(t, errors.Is(err, apperrors.ErrRetroNotFound))
}

func TestRetroDeleteRemovesDependents(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRetroService(db)
	require.NoError(t, err)

	retro, err := svc.Create(context.Background(), CreateRetroParams{Name: "Sprint 42"})
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.RetroItem{
		RetroID:  retro.ID,
		Category: "went-well",
		Text:     "shipped on time",
	}).Error)
	require.NoError(t, db.Create(&models.ActionItem{
		RetroID: retro.ID,
		Task:    "write runbook",
	}).Error)

	require.NoError(t, svc.Delete(context.Background(), retro.ID))

	var itemCount, actionCount int64
	require.NoError(t, db.Model(&models.RetroItem{}).Where("retro_id = ?", retro.ID).Count(&itemCount).Error)
	require.NoError(t, db.Model(&models.ActionItem{}).Where("retro_id = ?", retro.ID).Count(&actionCount).Error)
	assert.Zero(t, itemCount)
	assert.Zero(t, actionCount)

	err = svc.Delete(context.Background(), retro.ID)
	assert.True(t, errors.Is(err, apperrors.ErrRetroNotFound))
}

func TestRecordVoteSubmissionOverwrites(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewRetroService(db)
	require.NoError(t, err)

	retro, err := svc.Create(context.Background(), CreateRetroParams{Name: "Sprint 42"})
	require.NoError(t, err)

	first, err := svc.RecordVoteSubmission(context.Background(), retro.ID, "user-1", map[int]int{0: 3, 1: 2})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 3, 1: 2}, first.Tallies.Data())

	_, err = svc.RecordVoteSubmission(context.Background(), retro.ID, "user-2", map[int]int{0: 5})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.VoteSubmission{}).Where("retro_id = ?", retro.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored models.VoteSubmission
	require.NoError(t, db.First(&stored, "retro_id = ?", retro.ID).Error)
	assert.Equal(t, "user-2", stored.SubmittedBy)
	assert.Equal(t, map[int]int{0: 5}, stored.Tallies.Data())
}
