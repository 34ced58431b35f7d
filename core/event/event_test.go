package event_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mainsync/core/event"
)

const (
	PlayerJoined event.Type = "player.joined"
	PlayerLeft   event.Type = "player.left"
	ScoreChanged event.Type = "score.changed"
)

type Player struct {
	ID   int
	Name string
}

func TestType_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, PlayerJoined.Valid())
	assert.False(t, event.Type("").Valid())
	assert.Equal(t, "player.joined", PlayerJoined.String())
}

func TestNew_PopulatesFields(t *testing.T) {
	t.Parallel()

	before := time.Now()
	e := event.New(PlayerJoined, Player{ID: 1, Name: "ana"})

	assert.Equal(t, PlayerJoined, e.Type)
	assert.Equal(t, Player{ID: 1, Name: "ana"}, e.Payload)
	assert.False(t, e.CreatedAt.Before(before))

	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
}

func TestNew_UniqueIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		id := event.New(PlayerJoined, nil).ID
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestPayloadAs(t *testing.T) {
	t.Parallel()

	t.Run("value payload", func(t *testing.T) {
		t.Parallel()
		p, ok := event.PayloadAs[Player](event.New(PlayerJoined, Player{ID: 2}))
		require.True(t, ok)
		assert.Equal(t, 2, p.ID)
	})

	t.Run("pointer payload dereferenced", func(t *testing.T) {
		t.Parallel()
		p, ok := event.PayloadAs[Player](event.New(PlayerJoined, &Player{ID: 3}))
		require.True(t, ok)
		assert.Equal(t, 3, p.ID)
	})

	t.Run("nil pointer payload", func(t *testing.T) {
		t.Parallel()
		_, ok := event.PayloadAs[Player](event.New(PlayerJoined, (*Player)(nil)))
		assert.False(t, ok)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()
		_, ok := event.PayloadAs[Player](event.New(PlayerJoined, 42))
		assert.False(t, ok)
	})

	t.Run("nil event", func(t *testing.T) {
		t.Parallel()
		_, ok := event.PayloadAs[Player](nil)
		assert.False(t, ok)
	})
}

func TestNewListener(t *testing.T) {
	t.Parallel()

	assert.Nil(t, event.NewListener(nil))

	var got *event.Event
	l := event.NewListener(func(ctx context.Context, e *event.Event) error {
		got = e
		return nil
	})
	e := event.New(PlayerJoined, nil)
	require.NoError(t, l.HandleEvent(context.Background(), e))
	assert.Same(t, e, got)

	other := event.NewListener(func(ctx context.Context, e *event.Event) error { return nil })
	assert.NotEqual(t, l, other, "each wrapper has its own identity")
}

func TestNewTypedListener(t *testing.T) {
	t.Parallel()

	assert.Nil(t, event.NewTypedListener[Player](nil))

	var got Player
	l := event.NewTypedListener(func(ctx context.Context, p Player) error {
		got = p
		return nil
	})

	require.NoError(t, l.HandleEvent(context.Background(), event.New(PlayerJoined, Player{Name: "bo"})))
	assert.Equal(t, "bo", got.Name)

	err := l.HandleEvent(context.Background(), event.New(PlayerJoined, "not a player"))
	require.ErrorIs(t, err, event.ErrPayloadType)
	assert.Contains(t, err.Error(), "string")
}
