package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/julo/lendcore/internal/domain/loan"
)

// LoanStatusEvent is one row of loan status history joined with its loan.
type LoanStatusEvent struct {
	ID        int64
	LoanID    string
	LoanXID   int64
	AccountID string
	StatusOld int
	StatusNew int
	Reason    string
	ChangedAt time.Time
}

type RealtimeRepository interface {
	ListLoanStatusEventsSince(ctx context.Context, lastID int64, limit int32) ([]LoanStatusEvent, error)
	LatestLoanStatusEventID(ctx context.Context) (int64, error)
}

type Notifier struct {
	repo         RealtimeRepository
	hub          *Hub
	logger       *slog.Logger
	pollInterval time.Duration
	lastID       int64
}

func NewNotifier(repo RealtimeRepository, hub *Hub, logger *slog.Logger, pollInterval time.Duration) *Notifier {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{repo: repo, hub: hub, logger: logger, pollInterval: pollInterval}
}

// Run starts from the newest history row so a restart does not replay old
// transitions.
func (n *Notifier) Run(ctx context.Context) error {
	latest, err := n.repo.LatestLoanStatusEventID(ctx)
	if err != nil {
		return err
	}
	n.lastID = latest

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.tick(ctx); err != nil {
				n.logger.Error("loan status notifier tick failed", "error", err)
			}
		}
	}
}

func (n *Notifier) tick(ctx context.Context) error {
	events, err := n.repo.ListLoanStatusEventsSince(ctx, n.lastID, 100)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.ID > n.lastID {
			n.lastID = ev.ID
		}
		payload := eventPayload("loan_status_changed", map[string]any{
			"loan_id":     ev.LoanID,
			"loan_xid":    ev.LoanXID,
			"status_old":  ev.StatusOld,
			"status_new":  ev.StatusNew,
			"status_name": loan.StatusName(ev.StatusNew),
			"reason":      ev.Reason,
			"changed_at":  ev.ChangedAt.UTC().Format(time.RFC3339),
		})
		n.hub.Publish(AccountLoansChannel(ev.AccountID), payload)
	}
	return nil
}
