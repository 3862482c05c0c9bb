// Package analytics derives compliance scores, weekly reports and anomaly
// findings from the durable history. Read-only: it never writes to either
// store horizon.
package analytics

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/jereantequera/Autocann/internal/repository"
)

// Engine runs analytics queries against the repository.
type Engine struct {
	store  *repository.Store
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewEngine(store *repository.Store, logger *zap.Logger, loc *time.Location) *Engine {
	return &Engine{store: store, logger: logger, loc: loc, now: time.Now}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
