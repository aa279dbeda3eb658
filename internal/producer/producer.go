// Package producer implements the Event Producer: it turns a confirmed
// block's inscription transactions into an ordered stream of typed
// events and persists them with the emit-then-unmark pattern so the
// Dispatcher never observes a partially-produced block.
package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhiying8710/orc20-indexer/internal/cache"
	"github.com/zhiying8710/orc20-indexer/internal/chainclient"
	"github.com/zhiying8710/orc20-indexer/internal/store"
	"github.com/zhiying8710/orc20-indexer/internal/upstream"
	"github.com/zhiying8710/orc20-indexer/pkg/logging"
)

// headerHistoryDepth is how many trailing block headers the Producer
// keeps in memory for reorg detection.
const headerHistoryDepth = 12

// workerCount is the size of the fixed worker pool draining each
// block's inscription-transaction queue.
const workerCount = 20

// blockHashPollInterval is how long the Producer sleeps between
// getblockhash retries when the chain tip has not yet reached h.
const blockHashPollInterval = 5 * time.Second

// handledPollInterval is how long the Producer sleeps while waiting for
// the upstream indexer to finish marking a block's transactions handled.
const handledPollInterval = 1 * time.Second

// ErrReorg is returned by Run when the chain at h no longer connects to
// the header the Producer last saw at h-1. The caller (Coordinator) is
// responsible for restoring state and restarting the Producer.
type ErrReorg struct {
	Height int64
}

func (e *ErrReorg) Error() string {
	return fmt.Sprintf("producer: reorg detected at height %d", e.Height)
}

// Producer drives the block-by-block event production loop.
type Producer struct {
	bitcoin  *chainclient.BitcoinClient
	electrs  *chainclient.ElectrsClient
	ord      *chainclient.OrdClient
	cache    *cache.ContentCache
	upstream *upstream.Store
	store    *store.Store
	log      *logging.Logger

	headers map[int64]*chainclient.BitcoinBlockHeader
}

// New constructs a Producer from its external collaborators.
func New(
	bitcoin *chainclient.BitcoinClient,
	electrs *chainclient.ElectrsClient,
	ord *chainclient.OrdClient,
	contentCache *cache.ContentCache,
	upstreamStore *upstream.Store,
	s *store.Store,
	log *logging.Logger,
) *Producer {
	return &Producer{
		bitcoin:  bitcoin,
		electrs:  electrs,
		ord:      ord,
		cache:    contentCache,
		upstream: upstreamStore,
		store:    s,
		log:      log,
		headers:  make(map[int64]*chainclient.BitcoinBlockHeader, headerHistoryDepth),
	}
}

// Run drives the block loop starting at startHeight until ctx is
// cancelled or a reorg is detected. Every restart first deletes events
// at or above startHeight, making the Producer idempotent across
// restarts at the same height.
func (p *Producer) Run(ctx context.Context, startHeight int64) error {
	if err := p.store.DeleteEventsWhereHeightGTE(ctx, startHeight); err != nil {
		return fmt.Errorf("producer: Run: %w", err)
	}

	h := startHeight
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		header, err := p.awaitBlockHeader(ctx, h)
		if err != nil {
			return err
		}

		if prev, ok := p.headers[h-1]; ok && prev.Hash != header.PreviousBlockHash {
			return &ErrReorg{Height: h}
		}

		if err := p.processBlock(ctx, h, header); err != nil {
			return fmt.Errorf("producer: block %d: %w", h, err)
		}

		p.rememberHeader(h, header)
		h++
	}
}

// awaitBlockHeader polls for the block at height h, sleeping between
// retries while the node's chain tip has not yet reached it.
func (p *Producer) awaitBlockHeader(ctx context.Context, h int64) (*chainclient.BitcoinBlockHeader, error) {
	for {
		hash, err := p.bitcoin.GetBlockHash(ctx, h)
		if err != nil {
			if p.log != nil {
				p.log.Debug("block not yet available", "height", h, "err", err)
			}
			if err := sleep(ctx, blockHashPollInterval); err != nil {
				return nil, err
			}
			continue
		}
		header, err := p.bitcoin.GetBlockHeader(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("producer: GetBlockHeader: %w", err)
		}
		return header, nil
	}
}

// processBlock resets any events previously produced at h (idempotent
// retry), waits for the upstream indexer to finish the block, then
// spawns the worker pool and unmarks the block once every worker has
// persisted its event.
func (p *Producer) processBlock(ctx context.Context, h int64, header *chainclient.BitcoinBlockHeader) error {
	if err := p.store.DeleteEventsWhereHeightGTE(ctx, h); err != nil {
		return err
	}

	if err := p.awaitHandled(ctx, h); err != nil {
		return err
	}

	txs, err := p.upstream.BlockTransactions(ctx, h)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.InscriptionID)
	}
	inscriptions, err := p.upstream.InscriptionsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load inscriptions: %w", err)
	}

	if err := p.runWorkers(ctx, h, header.Time, txs, inscriptions); err != nil {
		return err
	}

	if err := p.store.MarkBlockEventsUnhandled(ctx, h); err != nil {
		return fmt.Errorf("unmark block: %w", err)
	}
	if p.log != nil {
		p.log.Info("produced block", "height", h, "transactions", len(txs))
	}
	return nil
}

// awaitHandled blocks until the upstream indexer reports every
// transaction in block h as handled.
func (p *Producer) awaitHandled(ctx context.Context, h int64) error {
	for {
		done, err := p.upstream.AllTransactionsHandled(ctx, h)
		if err != nil {
			return fmt.Errorf("AllTransactionsHandled: %w", err)
		}
		if done {
			return nil
		}
		if err := sleep(ctx, handledPollInterval); err != nil {
			return err
		}
	}
}

func (p *Producer) rememberHeader(h int64, header *chainclient.BitcoinBlockHeader) {
	p.headers[h] = header
	delete(p.headers, h-headerHistoryDepth)
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

// IsReorg reports whether err signals a detected reorg.
func IsReorg(err error) bool {
	var reorgErr *ErrReorg
	return errors.As(err, &reorgErr)
}
