// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// Memory keeps snapshots in process memory. Useful for a single instance and for tests.
type Memory struct {
	mu    sync.Mutex
	rooms map[string]*models.RoomSnapshot
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[string]*models.RoomSnapshot),
	}
}

// Load returns a copy of the stored snapshot.
func (s *Memory) Load(_ context.Context, roomKey string) (*models.RoomSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.rooms[roomKey]
	if !ok {
		return nil, false, nil
	}
	return snap.Clone(), true, nil
}

// Save stores a copy of snap if its version directly follows the stored one.
func (s *Memory) Save(_ context.Context, roomKey string, snap *models.RoomSnapshot) error {
	if snap == nil {
		return fmt.Errorf("save %s: nil snapshot", roomKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if prev, ok := s.rooms[roomKey]; ok {
		current = prev.Version
	}
	if current != expectedPrevious(snap) {
		return ErrVersionConflict
	}
	s.rooms[roomKey] = snap.Clone()
	return nil
}
