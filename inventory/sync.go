package inventory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Fetcher 从交易所拉取账户余额。
type Fetcher interface {
	Balances(ctx context.Context) (map[string]Balance, error)
}

// Sync 定期用交易所余额覆盖 Ledger。
type Sync struct {
	fetcher  Fetcher
	ledger   *Ledger
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewSync(fetcher Fetcher, ledger *Ledger, interval time.Duration, logger *zap.Logger) *Sync {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{
		fetcher:  fetcher,
		ledger:   ledger,
		interval: interval,
		logger:   logger.Named("balance_sync"),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Refresh 立即同步一次。
func (s *Sync) Refresh(ctx context.Context) error {
	all, err := s.fetcher.Balances(ctx)
	if err != nil {
		return err
	}
	s.ledger.Replace(all)
	return nil
}

func (s *Sync) Start(ctx context.Context) {
	go func() {
		defer close(s.doneChan)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					s.logger.Warn("balance sync failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *Sync) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.doneChan
}
