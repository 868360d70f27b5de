// invite_reaper.go implements the InviteReaper background job, which
// periodically deletes pending and revoked invites whose redemption window
// closed longer ago than the configured retention period. Expiry itself is a
// property of the clock, not a stored transition, so rows are kept for a
// grace period after expiry for the admin list before housekeeping removes
// them. Accepted invites are never deleted.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/member-portal/member-portal/internal/config"
	"github.com/member-portal/member-portal/internal/db/repositories"
)

// InviteReaper periodically removes long-expired invites.
type InviteReaper struct {
	inviteRepo *repositories.InviteRepository
	cfg        *config.InvitesConfig
	interval   time.Duration
	stopChan   chan struct{}
}

// NewInviteReaper creates a new InviteReaper. interval controls how often the
// sweep runs; zero or negative selects the 24h default.
func NewInviteReaper(inviteRepo *repositories.InviteRepository, cfg *config.InvitesConfig, interval time.Duration) *InviteReaper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &InviteReaper{
		inviteRepo: inviteRepo,
		cfg:        cfg,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (r *InviteReaper) Start(ctx context.Context) {
	if r.cfg.Retention <= 0 {
		slog.Info("invite reaper disabled (invites.retention not set)")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("invite reaper started", "interval", r.interval, "retention", r.cfg.Retention)

	r.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-r.stopChan:
			slog.Info("invite reaper stopped")
			return
		case <-ctx.Done():
			slog.Info("invite reaper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (r *InviteReaper) Stop() {
	close(r.stopChan)
}

func (r *InviteReaper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.Retention)

	removed, err := r.inviteRepo.DeleteStaleBefore(ctx, cutoff)
	if err != nil {
		slog.Error("invite reaper sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("invite reaper removed stale invites", "count", removed, "cutoff", cutoff)
	}
}
