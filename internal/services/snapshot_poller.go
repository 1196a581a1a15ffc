package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"ibmcp/internal/db/repositories"
	"ibmcp/internal/ibkr"
	"ibmcp/internal/logging"
	"ibmcp/pkg/models"
)

// AccountReader is the slice of the IBKR client the poller needs.
type AccountReader interface {
	IsConnected() bool
	AccountSummary(ctx context.Context, tags []string) ([]ibkr.AccountValue, error)
}

// SnapshotPoller periodically persists account summary values so the
// status API can serve history without holding a market data line open.
type SnapshotPoller struct {
	cron     *cron.Cron
	gateway  AccountReader
	repos    *repositories.Repositories
	schedule string
}

func NewSnapshotPoller(gateway AccountReader, repos *repositories.Repositories, schedule string) *SnapshotPoller {
	return &SnapshotPoller{
		cron:     cron.New(),
		gateway:  gateway,
		repos:    repos,
		schedule: schedule,
	}
}

func (p *SnapshotPoller) Start() error {
	if _, err := p.cron.AddFunc(p.schedule, p.pollOnce); err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", p.schedule, err)
	}

	p.cron.Start()
	logging.Info("Account snapshot poller started (schedule: %s)", p.schedule)
	return nil
}

func (p *SnapshotPoller) Stop() {
	stopCtx := p.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-time.After(500 * time.Millisecond):
		logging.Info("Snapshot poller stop timeout, abandoning in-flight poll")
	}
}

func (p *SnapshotPoller) pollOnce() {
	// Polling never dials; it only records while a session is up.
	if !p.gateway.IsConnected() {
		logging.Debug("Skipping account snapshot, gateway not connected")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	values, err := p.gateway.AccountSummary(ctx, nil)
	if err != nil {
		logging.Error("Account snapshot poll failed: %v", err)
		return
	}
	if len(values) == 0 {
		return
	}

	snapshots := make([]*models.AccountSnapshot, 0, len(values))
	for _, v := range values {
		snapshots = append(snapshots, &models.AccountSnapshot{
			Account:  v.Account,
			Tag:      v.Tag,
			Value:    v.Value,
			Currency: v.Currency,
		})
	}

	if err := p.repos.AccountSnapshots.RecordBatch(snapshots); err != nil {
		logging.Error("Failed to record account snapshots: %v", err)
		return
	}

	logging.Debug("Recorded %d account snapshot values", len(snapshots))
}
