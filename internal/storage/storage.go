// Package storage defines the durable analysis log. The pipeline emits
// exactly one write attempt per completed analysis and never depends on its
// success.
package storage

import (
	"context"
	"fmt"
	"time"

	"credcheck/internal/types"
)

// AnalysisRecord is one persisted analysis.
type AnalysisRecord struct {
	ID             int64
	Headline       string
	IsFake         bool
	Classification string
	SourceType     string // "text", "real-time", "live-video", ...
	ClaimDetail    []types.ClaimScore
	CreatedAt      time.Time
}

// AnalysisStore is the persistence contract for completed analyses.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, rec AnalysisRecord) error
	RecentAnalyses(ctx context.Context, limit int) ([]AnalysisRecord, error)
	Counts(ctx context.Context) (fake int, real int, err error)
	Close() error
}

// Factory builds a store from a path/DSN.
type Factory func(path string) (AnalysisStore, error)

var factories = make(map[string]Factory)

// RegisterFactory registers a storage backend under a type name.
func RegisterFactory(storageType string, factory Factory) {
	factories[storageType] = factory
}

// Open builds the store for the configured backend type.
func Open(storageType, path string) (AnalysisStore, error) {
	factory, ok := factories[storageType]
	if !ok {
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
	return factory(path)
}
