// ABOUTME: Contract for the remote resource API the engine talks to
// ABOUTME: Implemented by the REST client and by the in-process SQLite backend
package engine

import (
	"context"

	"github.com/harperreed/devicedrop/models"
)

// API is the remote resource collection. Implementations own timeouts and
// field validation; the engine treats every error as a failed call.
type API interface {
	List(ctx context.Context, spec models.QuerySpec) (models.ListResult, error)
	Get(ctx context.Context, kind models.Kind, id string) (*models.Record, error)
	UpdateStatus(ctx context.Context, kind models.Kind, id string, change models.StatusChange) (*models.Record, error)
	Update(ctx context.Context, kind models.Kind, id string, patch map[string]any) (*models.Record, error)
	// Create must treat token as an idempotency key.
	Create(ctx context.Context, kind models.Kind, token string, payload models.Payload) (*models.Record, error)
	Delete(ctx context.Context, kind models.Kind, id string) error
}
