package sse

import (
	"context"
	"sync"

	"ticket-ledger/internal/models"
)

// AllEvents subscribes to entries of every event, including entries that
// belong to no event at all.
const AllEvents uint64 = 0

const clientBuffer = 32

// JournalEmitter fans committed journal entries out to streaming clients.
// It satisfies the ledger's Publisher interface.
type JournalEmitter struct {
	mu      sync.RWMutex
	clients map[uint64][]chan models.Entry
}

func NewJournalEmitter() *JournalEmitter {
	return &JournalEmitter{clients: make(map[uint64][]chan models.Entry)}
}

// Subscribe registers a client for eventID (or AllEvents). The channel is
// closed once ctx is done.
func (e *JournalEmitter) Subscribe(ctx context.Context, eventID uint64) <-chan models.Entry {
	ch := make(chan models.Entry, clientBuffer)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, ch)
	}()
	return ch
}

// Publish never blocks: a client whose buffer is full misses the entry and
// can catch up from the journal by sequence number.
func (e *JournalEmitter) Publish(ctx context.Context, entries []models.Entry) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, entry := range entries {
		targets := e.clients[AllEvents]
		if entry.EventID != AllEvents {
			targets = append(targets[:len(targets):len(targets)], e.clients[entry.EventID]...)
		}
		for _, ch := range targets {
			select {
			case ch <- entry:
			default:
			}
		}
	}
	return nil
}

func (e *JournalEmitter) remove(eventID uint64, ch chan models.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, c := range clients {
		if c == ch {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

// ClientCount returns the number of clients subscribed to eventID.
func (e *JournalEmitter) ClientCount(eventID uint64) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
