// Package coordinator owns canonical dispatch: it restores or seeds
// State Store contents at startup, supervises the Producer across
// reorgs, replays each block's events in block_index order through the
// Dispatcher, snapshots canonical state periodically, and runs the
// mempool preview pass when production has caught up.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zhiying8710/orc20-indexer/internal/alert"
	"github.com/zhiying8710/orc20-indexer/internal/config"
	"github.com/zhiying8710/orc20-indexer/internal/dispatcher"
	"github.com/zhiying8710/orc20-indexer/internal/handler"
	"github.com/zhiying8710/orc20-indexer/internal/model"
	"github.com/zhiying8710/orc20-indexer/internal/producer"
	"github.com/zhiying8710/orc20-indexer/internal/snapshot"
	"github.com/zhiying8710/orc20-indexer/internal/store"
	"github.com/zhiying8710/orc20-indexer/pkg/logging"
)

// mempoolHeight is the sentinel block_height mempool (unconfirmed)
// events are stored under, matching the Producer's sentinel.
const mempoolHeight = -1

// eventDefaultError is the placeholder error every event is written
// with before its handler has run, matching the Python original's
// self.event_default_error. The mempool pass only ever re-evaluates
// events still carrying this exact string.
const eventDefaultError = "not processed by indexer"

// backupInterval is how many confirmed blocks pass between canonical
// state snapshots.
const backupInterval = 12

const mempoolPollInterval = 10 * time.Second

// Coordinator replays dispatched blocks and supervises the Producer.
type Coordinator struct {
	store      *store.Store
	dispatcher *dispatcher.Dispatcher
	handlerCfg handler.Config
	cfg        *config.Config
	alerter    *alert.Notifier
	log        *logging.Logger
}

// New builds a Coordinator against s.
func New(s *store.Store, cfg *config.Config, log *logging.Logger) *Coordinator {
	handlerCfg := handler.Config{OTCStartBlockHeight: cfg.OTCStartBlockHeight}
	return &Coordinator{
		store:      s,
		dispatcher: dispatcher.New(s, handlerCfg, log),
		handlerCfg: handlerCfg,
		cfg:        cfg,
		alerter:    alert.New(cfg.AlertWebhookURL, cfg.BarkTokens, log),
		log:        log,
	}
}

// Bootstrap restores canonical state from the last backup if one
// exists, or seeds it from the genesis snapshot otherwise, and returns
// the block height the Producer should resume fetching from.
func (c *Coordinator) Bootstrap(ctx context.Context) (int64, error) {
	height, ok, err := c.store.BackupHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("coordinator: bootstrap: %w", err)
	}
	if ok {
		if err := c.store.RestoreAll(ctx); err != nil {
			return 0, fmt.Errorf("coordinator: restore backup: %w", err)
		}
		if c.log != nil {
			c.log.Info("restored canonical state from backup", "backup_height", height)
		}
		return height + 1, nil
	}

	if err := snapshot.Load(ctx, c.store, c.cfg.SnapshotDir); err != nil {
		return 0, fmt.Errorf("coordinator: load genesis snapshot: %w", err)
	}
	start := c.cfg.CoreStartBlockHeight - 1
	if c.log != nil {
		c.log.Info("no backup found, seeded canonical state from snapshot", "start_height", start)
	}
	return start, nil
}

// Run bootstraps canonical state and then runs the Producer supervisor
// and the dispatch loop until ctx is canceled or either fails. Use
// this when both roles share a process.
func (c *Coordinator) Run(ctx context.Context, p *producer.Producer) error {
	startHeight, err := c.Bootstrap(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.superviseProducer(gctx, p, startHeight) })
	g.Go(func() error { return c.dispatchLoop(gctx) })
	return g.Wait()
}

// RunDispatchOnly bootstraps canonical state and runs only the
// dispatch loop, for deployments where a separate process runs the
// Producer against the same database.
func (c *Coordinator) RunDispatchOnly(ctx context.Context) error {
	if _, err := c.Bootstrap(ctx); err != nil {
		return err
	}
	return c.dispatchLoop(ctx)
}

// superviseProducer runs p.Run, restarting it from the last backed-up
// height whenever it returns a reorg error. Any other error, or a
// canceled context, ends supervision.
func (c *Coordinator) superviseProducer(ctx context.Context, p *producer.Producer, startHeight int64) error {
	for {
		err := p.Run(ctx, startHeight)
		if err == nil || ctx.Err() != nil {
			return err
		}
		if !producer.IsReorg(err) {
			c.alerter.Notify(ctx, fmt.Sprintf("producer stopped: %v", err))
			return fmt.Errorf("coordinator: producer: %w", err)
		}

		if c.log != nil {
			c.log.Warn("reorg detected, restoring last backup", "err", err)
		}
		if err := c.store.RestoreAll(ctx); err != nil {
			c.alerter.Notify(ctx, fmt.Sprintf("reorg restore failed: %v", err))
			return fmt.Errorf("coordinator: reorg restore: %w", err)
		}
		height, ok, err := c.store.BackupHeight(ctx)
		if err != nil {
			return fmt.Errorf("coordinator: post-reorg BackupHeight: %w", err)
		}
		if ok {
			startHeight = height + 1
		} else {
			startHeight = c.cfg.CoreStartBlockHeight
		}
	}
}

// dispatchLoop replays every confirmed block's events as soon as the
// Producer's emit-then-unmark sweep releases them, snapshotting
// canonical state every backupInterval blocks. When no confirmed block
// is waiting, it runs a mempool preview pass instead of busy-looping.
func (c *Coordinator) dispatchLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		height, ok, err := c.store.MinUnhandledEventBlock(ctx)
		if err != nil {
			return fmt.Errorf("coordinator: MinUnhandledEventBlock: %w", err)
		}
		if !ok {
			if err := c.runMempoolPass(ctx); err != nil && c.log != nil {
				c.log.Warn("mempool pass failed", "err", err)
			}
			if err := sleep(ctx, mempoolPollInterval); err != nil {
				return err
			}
			continue
		}

		if err := c.dispatchBlock(ctx, height); err != nil {
			c.alerter.Notify(ctx, fmt.Sprintf("dispatch failed at height %d: %v", height, err))
			return fmt.Errorf("coordinator: dispatch block %d: %w", height, err)
		}
	}
}

// dispatchBlock replays every event at height, in block_index order,
// and snapshots canonical state if no snapshot exists yet or height is
// at least backupInterval blocks past the last one.
func (c *Coordinator) dispatchBlock(ctx context.Context, height int64) error {
	events, err := c.store.EventsByBlock(ctx, height)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	for _, e := range events {
		if _, err := c.dispatcher.Dispatch(ctx, e); err != nil {
			return fmt.Errorf("dispatch event %s: %w", e.ID, err)
		}
	}

	backupHeight, hasBackup, err := c.store.BackupHeight(ctx)
	if err != nil {
		return fmt.Errorf("read backup height: %w", err)
	}
	if height > 0 && (!hasBackup || height-backupHeight >= backupInterval) {
		if err := c.store.BackupAll(ctx, height); err != nil {
			return fmt.Errorf("backup at height %d: %w", height, err)
		}
	}
	return nil
}

// runMempoolPass re-evaluates every still-undecided mempool event
// against current canonical state without mutating it: each is
// dispatched inside a store.Store.Preview transaction that is always
// rolled back, and only the returned event's own valid/error fields
// are persisted against the real store.
//
// TODO: mempool event rows (block_height == mempoolHeight) are not yet
// produced by anything; this pass is correct but idle until a mempool
// watcher analogous to the Producer's confirmed-block path exists.
func (c *Coordinator) runMempoolPass(ctx context.Context) error {
	events, err := c.store.EventsByBlock(ctx, mempoolHeight)
	if err != nil {
		return fmt.Errorf("list mempool events: %w", err)
	}

	for _, e := range events {
		if e.Error != eventDefaultError {
			continue
		}

		var verdict *model.Event
		err := c.store.Preview(ctx, func(tx *store.Store) error {
			d := dispatcher.New(tx, c.handlerCfg, c.log)
			result, err := d.Preview(ctx, e)
			if err != nil {
				return err
			}
			verdict = result
			return nil
		})
		if err != nil {
			if c.log != nil {
				c.log.Warn("mempool preview failed", "event", e.ID, "err", err)
			}
			continue
		}
		if verdict == nil {
			continue
		}

		verdict.Handled = true
		if err := c.store.UpsertEvent(ctx, verdict); err != nil {
			return fmt.Errorf("persist mempool verdict %s: %w", verdict.ID, err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
