package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retroboardhq/retroboard/internal/database/testutil"
	"github.com/retroboardhq/retroboard/internal/models"
	"github.com/retroboardhq/retroboard/internal/services"
)

type stubLiveSessions struct {
	ids []string
}

func (s *stubLiveSessions) ActiveSessions() []string { return s.ids }

func TestSweeperRunOnceDeactivatesIdleParticipants(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	participants, err := services.NewParticipantService(db)
	require.NoError(t, err)

	user := models.User{Name: "Ana"}
	require.NoError(t, db.Create(&user).Error)

	liveRetro := models.Retrospective{Name: "live", Phase: models.PhaseLobby}
	idleRetro := models.Retrospective{Name: "idle", Phase: models.PhaseLobby}
	require.NoError(t, db.Create(&liveRetro).Error)
	require.NoError(t, db.Create(&idleRetro).Error)

	_, err = participants.Create(context.Background(), liveRetro.ID, user.ID)
	require.NoError(t, err)
	_, err = participants.Create(context.Background(), idleRetro.ID, user.ID)
	require.NoError(t, err)

	sweeper := NewSweeper(participants, &stubLiveSessions{ids: []string{liveRetro.ID}},
		WithNow(func() time.Time { return time.Now().Add(time.Hour) }),
		WithMinIdle(time.Minute))
	require.NoError(t, sweeper.RunOnce(context.Background()))

	kept, err := participants.Find(context.Background(), liveRetro.ID, user.ID)
	require.NoError(t, err)
	require.True(t, kept.Active)

	dropped, err := participants.Find(context.Background(), idleRetro.ID, user.ID)
	require.NoError(t, err)
	require.False(t, dropped.Active)
}

func TestSweeperRunOnceSkipsRecentRows(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	participants, err := services.NewParticipantService(db)
	require.NoError(t, err)

	user := models.User{Name: "Ana"}
	require.NoError(t, db.Create(&user).Error)
	retro := models.Retrospective{Name: "just-emptied", Phase: models.PhaseVote}
	require.NoError(t, db.Create(&retro).Error)
	_, err = participants.Create(context.Background(), retro.ID, user.ID)
	require.NoError(t, err)

	sweeper := NewSweeper(participants, &stubLiveSessions{}, WithMinIdle(time.Hour))
	require.NoError(t, sweeper.RunOnce(context.Background()))

	row, err := participants.Find(context.Background(), retro.ID, user.ID)
	require.NoError(t, err)
	require.True(t, row.Active)
}

type failingSweeper struct{}

func (failingSweeper) DeactivateExcept(context.Context, []string, time.Time) (int64, error) {
	return 0, errors.New("storage offline")
}

func TestSweeperRunOncePropagatesErrors(t *testing.T) {
	sweeper := NewSweeper(failingSweeper{}, nil)
	err := sweeper.RunOnce(context.Background())
	require.Error(t, err)
}

func TestSweeperStartWithoutParticipantsIsNoop(t *testing.T) {
	sweeper := NewSweeper(nil, nil)
	require.NoError(t, sweeper.Start())
	<-sweeper.Stop().Done()
}
