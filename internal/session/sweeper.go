package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunSweeper периодически удаляет неактивные сессии до отмены контекста.
func (st *Store) RunSweeper(ctx context.Context, ttl, interval time.Duration, logger *zap.SugaredLogger) error {
	if ttl <= 0 || interval <= 0 {
		logger.Infow("Session sweeper disabled", "ttl", ttl.String(), "interval", interval.String())
		<-ctx.Done()
		return nil
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if removed := st.Sweep(ttl); removed > 0 {
				logger.Infow("Idle sessions removed", "removed", removed, "left", st.Len())
			}
		}
	}
}
