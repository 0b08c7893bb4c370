// Package sink holds the persistence targets a collection run hands data to:
// a time-series writer for normalized points and an append-only CSV file for
// the raw measurement sub-record.
package sink

import (
	"context"

	"github.com/glucowallet/glucowallet/internal/glucose"
)

// PointWriter persists one normalized glucose point per call.
type PointWriter interface {
	WritePoint(ctx context.Context, p glucose.Point) error
	Close()
}
