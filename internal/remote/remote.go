// Package remote holds the authoritative, network-backed document stores.
package remote

import (
	"context"
	"fmt"
	"time"
)

// Document is one stored progress snapshot. Origin names the device that
// wrote it so writers can recognise their own echoes.
type Document struct {
	Path      string    `json:"path"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
	Origin    string    `json:"origin"`
}

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// Store is a remote document store with change notifications.
type Store interface {
	// GetDocument returns nil, nil when nothing is stored at path.
	GetDocument(ctx context.Context, path string) (*Document, error)
	SetDocument(ctx context.Context, path string, doc Document) error
	// Subscribe calls onChange for every write to path, in the order the
	// store delivers them.
	Subscribe(ctx context.Context, path string, onChange func(Document)) (Unsubscribe, error)
}

// ProgressPath is the document path of a user's progress.
func ProgressPath(userID string) string {
	return fmt.Sprintf("users/%s/progress", userID)
}
