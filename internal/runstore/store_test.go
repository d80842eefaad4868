package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/persona-chat/internal/model"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	run := &model.Run{ID: "r1", ChannelID: "c1", Status: model.RunStatusRunning, TurnCount: 5}
	require.NoError(t, s.Save(ctx, run))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ChannelID)
	assert.Equal(t, model.RunStatusRunning, got.Status)
}

func TestMemoryStoreNotFound(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIsolatesSnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now()
	run := &model.Run{ID: "r1", Turns: []model.Turn{{Index: 1, Response: "hi"}}, FinishedAt: &now}
	require.NoError(t, s.Save(ctx, run))

	run.Turns[0].Response = "mutated"
	run.Turns = append(run.Turns, model.Turn{Index: 2})

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got.Turns, 1)
	assert.Equal(t, "hi", got.Turns[0].Response)

	got.Turns[0].Response = "changed again"
	again, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Turns[0].Response)
}
