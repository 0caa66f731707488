// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// ErrVersionConflict is returned by Save when the stored snapshot is not the one
// the caller loaded. The caller should reload and reapply its change.
var ErrVersionConflict = errors.New("room snapshot version conflict")

// Store persists room snapshots keyed by room name.
//
// Save is a compare-and-swap on RoomSnapshot.Version: it succeeds only when the
// stored version is exactly snap.Version-1, with a missing key counting as version 0.
type Store interface {
	Load(ctx context.Context, roomKey string) (*models.RoomSnapshot, bool, error)
	Save(ctx context.Context, roomKey string, snap *models.RoomSnapshot) error
}

// expectedPrevious is the version that must currently be stored for snap to be accepted.
func expectedPrevious(snap *models.RoomSnapshot) int64 {
	return snap.Version - 1
}
