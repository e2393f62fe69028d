package auditlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// pruneTimeout bounds a single retention sweep.
const pruneTimeout = 5 * time.Minute

// Pruner deletes audit entries past their retention period on a cron
// schedule.
type Pruner struct {
	store  *Store
	days   int
	cron   *cron.Cron
	logger *slog.Logger
}

// NewPruner creates a pruner that keeps the most recent days of entries,
// sweeping on the given cron schedule.
func NewPruner(store *Store, schedule string, days int, logger *slog.Logger) (*Pruner, error) {
	p := &Pruner{
		store:  store,
		days:   days,
		cron:   cron.New(),
		logger: logger,
	}

	if _, err := p.cron.AddFunc(schedule, p.sweep); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins scheduled sweeps.
func (p *Pruner) Start() {
	p.cron.Start()
	p.logger.Info("audit retention scheduled", "retention_days", p.days)
}

// Stop halts scheduling and waits for a running sweep to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pruner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -p.days)
	removed, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Error("audit retention sweep failed", "error", err)
		return
	}
	p.logger.Info("audit retention sweep completed",
		"removed", removed,
		"cutoff", cutoff.Format(time.RFC3339))
}
