package connectors

import (
	"context"

	"pendencias/internal"
)

// Source yields spreadsheet exports waiting to be processed.
type Source interface {
	Name() string
	Fetch(ctx context.Context, max int) ([]internal.InboundFile, error)
}
