package jobs

import (
	"context"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

const (
	ExpireInactiveSpec = "@every 10m"
	MarkOverdueSpec    = "0 1 * * *"
)

type LoanMaintenance interface {
	ExpireInactive(ctx context.Context, ttl time.Duration) (int, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

type Scheduler struct {
	cron        *cron.Cron
	loans       LoanMaintenance
	logger      *slog.Logger
	location    *time.Location
	inactiveTTL time.Duration
	now         func() time.Time
}

// NewScheduler falls back to Asia/Jakarta when timezone is empty or
// unknown.
func NewScheduler(loans LoanMaintenance, timezone string, inactiveTTL time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := time.LoadLocation(timezone)
	if timezone == "" || err != nil {
		loc, err = time.LoadLocation("Asia/Jakarta")
		if err != nil {
			loc = time.FixedZone("WIB", 7*3600)
		}
	}
	if inactiveTTL <= 0 {
		inactiveTTL = 24 * time.Hour
	}
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		loans:       loans,
		logger:      logger,
		location:    loc,
		inactiveTTL: inactiveTTL,
		now:         time.Now,
	}
}

func (s *Scheduler) Register(ctx context.Context) error {
	if _, err := s.cron.AddFunc(ExpireInactiveSpec, func() { s.expireInactive(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(MarkOverdueSpec, func() { s.markOverdue(ctx) }); err != nil {
		return err
	}
	return nil
}

// Run blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Register(ctx); err != nil {
		return err
	}
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) expireInactive(ctx context.Context) {
	n, err := s.loans.ExpireInactive(ctx, s.inactiveTTL)
	if err != nil {
		s.logger.Error("expire inactive loans failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired inactive loans", "count", n)
	}
}

// markOverdue uses the start of today in the scheduler timezone, so
// installments due today are not late yet.
func (s *Scheduler) markOverdue(ctx context.Context) {
	local := s.now().In(s.location)
	asOf := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
	n, err := s.loans.MarkOverdue(ctx, asOf)
	if err != nil {
		s.logger.Error("mark overdue installments failed", "error", err)
		return
	}
	s.logger.Info("marked overdue installments", "count", n, "as_of", asOf.Format("2006-01-02"))
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
