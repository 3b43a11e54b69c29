package domainmap

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// StartRefresher refreshes the domain map on a cron schedule until ctx is
// done. Standard five-field expressions and descriptors such as
// "@every 5m" are accepted. A failed refresh keeps the previous snapshot.
func (r *Resolver) StartRefresher(ctx context.Context, schedule string) error {
	if r.discovery == nil {
		return errors.New("scheduled refresh requires auto-discovery")
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := r.Refresh(ctx); err != nil {
			r.logger.Warn("scheduled domain refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	c.Start()
	r.logger.Info("domain refresher started", "schedule", schedule)
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		r.logger.Info("domain refresher stopped")
	}()
	return nil
}
