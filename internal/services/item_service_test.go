package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retroboardhq/retroboard/internal/database/testutil"
	apperrors "github.com/retroboardhq/retroboard/pkg/errors"
)

func TestItemCreateValidatesInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewItemService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateItemParams{
		RetroID:  "retro-1",
		Category: "went-well",
		Text:     "  ",
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateItemParams{
		RetroID:  "retro-1",
		Category: "random-thoughts",
		Text:     "deploys were smooth",
	})
	require.Error(t, err)
}

func TestItemLifecycle(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewItemService(db)
	require.NoError(t, err)

	item, err := svc.Create(context.Background(), CreateItemParams{
		RetroID:  "retro-1",
		Category: "needs-improvement",
		Text:     "flaky CI",
		AuthorID: "user-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)

	updated, err := svc.UpdateText(context.Background(), item.ID, "flaky CI on main")
	require.NoError(t, err)
	assert.Equal(t, "flaky CI on main", updated.Text)

	items, err := svc.ListByRetro(context.Background(), "retro-1")
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.Delete(context.Background(), item.ID))

	err = svc.Delete(context.Background(), item.ID)
	assert.True(t, errors.Is(err, apperrors.ErrItemNotFound))
}

func TestSetGroupLabelUpserts(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewItemService(db)
	require.NoError(t, err)

	members := []string{"item-a", "item-b"}
	group, err := svc.SetGroupLabel(context.Background(), "retro-1", "item-a|item-b", "Tooling", members)
	require.NoError(t, err)
	assert.Equal(t, "Tooling", group.Label)

	var stored []string
	require.NoError(t, json.Unmarshal(group.Members, &stored))
	assert.Equal(t, members, stored)

	relabeled, err := svc.SetGroupLabel(context.Background(), "retro-1", "item-a|item-b", "CI & Tooling", members)
	require.NoError(t, err)
	assert.Equal(t, group.ID, relabeled.ID)
	assert.Equal(t, "CI & Tooling", relabeled.Label)

	groups, err := svc.ListGroups(context.Background(), "retro-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)
}
