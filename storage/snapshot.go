package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// SnapshotStore keeps read-only JSON copies of generated brackets.
type SnapshotStore interface {
	PutJSON(ctx context.Context, key string, payload interface{}) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// BracketSnapshotKey is the object key of a stage bracket snapshot.
func BracketSnapshotKey(stageID uuid.UUID) string {
	return fmt.Sprintf("stages/%s/bracket.json", stageID)
}
