package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/internal/models"
)

func receive(t *testing.T, ch <-chan models.Entry) models.Entry {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no entry received")
	}
	return models.Entry{}
}

func TestPublishRoutesByEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewJournalEmitter()

	all := e.Subscribe(ctx, AllEvents)
	one := e.Subscribe(ctx, 1)
	two := e.Subscribe(ctx, 2)

	require.NoError(t, e.Publish(ctx, []models.Entry{
		{Seq: 1, Kind: models.EntryOrganizerApproved},
		{Seq: 2, Kind: models.EntryEventCreated, EventID: 1},
	}))

	assert.Equal(t, uint64(1), receive(t, all).Seq)
	assert.Equal(t, uint64(2), receive(t, all).Seq)
	assert.Equal(t, uint64(2), receive(t, one).Seq)
	assert.Empty(t, two)
}

func TestSubscriberRemovedOnCancel(t *testing.T) {
	e := NewJournalEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	ch := e.Subscribe(ctx, 7)
	assert.Equal(t, 1, e.ClientCount(7))

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, e.ClientCount(7))
}

func TestPublishSkipsFullClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := NewJournalEmitter()
	ch := e.Subscribe(ctx, AllEvents)

	entries := make([]models.Entry, clientBuffer+5)
	for i := range entries {
		entries[i] = models.Entry{Seq: uint64(i + 1)}
	}
	require.NoError(t, e.Publish(ctx, entries))
	assert.Len(t, ch, clientBuffer)
}
