package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Syncer 周期性从交易所拉取订单状态，以交易所为准更新 Book。
type Syncer struct {
	venue    Venue
	book     *Book
	symbol   string
	interval time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	doneChan chan struct{}
	mu       sync.RWMutex

	totalSyncs        int64
	conflictsResolved int64
	orphansAdopted    int64
	lastSyncTime      time.Time
}

// SyncerConfig 同步器配置
type SyncerConfig struct {
	Symbol   string
	Interval time.Duration
}

func NewSyncer(venue Venue, book *Book, cfg SyncerConfig, logger *zap.Logger) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		venue:    venue,
		book:     book,
		symbol:   cfg.Symbol,
		interval: cfg.Interval,
		logger:   logger.Named("order_sync"),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start 启动同步循环。
func (s *Syncer) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop 停止并等待循环退出。
func (s *Syncer) Stop() {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	<-s.doneChan
}

func (s *Syncer) loop(ctx context.Context) {
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
			if err := s.Sync(ctx); err != nil {
				s.logger.Warn("order sync failed", zap.Error(err))
			}
		}
	}
}

// Sync 执行一次完整同步：先逐个刷新本地活跃订单，再收养交易所上本地未知的挂单。
func (s *Syncer) Sync(ctx context.Context) error {
	s.mu.Lock()
	s.totalSyncs++
	s.lastSyncTime = time.Now()
	s.mu.Unlock()

	var syncErr error
	for _, local := range s.book.Active(s.symbol) {
		if err := s.syncOrder(ctx, local); err != nil {
			syncErr = err
		}
	}
	if err := s.adoptOpen(ctx); err != nil {
		syncErr = err
	}
	return syncErr
}

func (s *Syncer) syncOrder(ctx context.Context, local Order) error {
	remote, err := s.venue.GetOrder(ctx, local.Symbol, local.ID)
	if errors.Is(err, ErrUnknownOrder) {
		return s.book.MarkFinal(local.ID, StatusExpired)
	}
	if err != nil {
		return fmt.Errorf("get remote order %s: %w", local.ID, err)
	}
	if remote.Status == local.Status && remote.Filled == local.Filled {
		return nil
	}
	if remote.CreatedAt.IsZero() {
		remote.CreatedAt = local.CreatedAt
	}
	if err := s.book.Upsert(remote); err != nil {
		return fmt.Errorf("apply remote order %s: %w", local.ID, err)
	}
	s.mu.Lock()
	s.conflictsResolved++
	s.mu.Unlock()
	s.logger.Debug("order state synced",
		zap.String("order_id", local.ID),
		zap.String("from", string(local.Status)),
		zap.String("to", string(remote.Status)),
		zap.Float64("filled", remote.Filled))
	return nil
}

func (s *Syncer) adoptOpen(ctx context.Context) error {
	remotes, err := s.venue.OpenOrders(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("get open orders: %w", err)
	}
	for _, remote := range remotes {
		if _, ok := s.book.Get(remote.ID); ok {
			continue
		}
		// 本地不存在但交易所存在：纳入 Book，由策略按常规规则处理
		if err := s.book.Adopt(remote); err != nil {
			return err
		}
		s.mu.Lock()
		s.orphansAdopted++
		s.mu.Unlock()
		s.logger.Info("adopted unknown open order",
			zap.String("order_id", remote.ID),
			zap.String("side", remote.Side.Label()),
			zap.Float64("price", remote.Price))
	}
	return nil
}

// Stats 同步统计信息
func (s *Syncer) Stats() SyncStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SyncStats{
		TotalSyncs:        s.totalSyncs,
		ConflictsResolved: s.conflictsResolved,
		OrphansAdopted:    s.orphansAdopted,
		LastSyncTime:      s.lastSyncTime,
		Interval:          s.interval,
	}
}

type SyncStats struct {
	TotalSyncs        int64
	ConflictsResolved int64
	OrphansAdopted    int64
	LastSyncTime      time.Time
	Interval          time.Duration
}
