package archive

import (
	"context"
	"time"
)

// NoopRecorder is used when no archive is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) Record(_ context.Context, _ *Entry) error            { return nil }
func (n *NoopRecorder) ListRecent(_ context.Context, _ int) ([]Entry, error) { return []Entry{}, nil }
func (n *NoopRecorder) Prune(_ context.Context, _ time.Time) (int64, error)  { return 0, nil }
func (n *NoopRecorder) Close() error                                         { return nil }
