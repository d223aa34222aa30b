package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/marksfx/content-agent/internal/models"
)

// ErrUnavailable is returned when the backing store cannot be reached.
// Callers must treat it as "not new" so no duplicate alerts are emitted.
var ErrUnavailable = errors.New("dedup store unavailable")

// Store tracks which external items have already been processed.
// IsNew is an atomic insert-if-new: for a given id it returns true at most
// once across concurrent callers.
type Store interface {
	IsNew(ctx context.Context, source models.SourceType, externalID string) (bool, error)
	Close() error
}

func key(source models.SourceType, externalID string) string {
	return fmt.Sprintf("seen:%s:%s", source, externalID)
}
