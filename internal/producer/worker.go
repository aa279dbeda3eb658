package producer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zhiying8710/orc20-indexer/internal/chainclient"
	"github.com/zhiying8710/orc20-indexer/internal/envelope"
	"github.com/zhiying8710/orc20-indexer/internal/model"
	"github.com/zhiying8710/orc20-indexer/internal/upstream"
	"github.com/zhiying8710/orc20-indexer/pkg/helpers"
)

// runWorkers drains txs across a fixed pool of workerCount goroutines,
// each persisting its own event row. Per-transaction cursed/malformed
// inscriptions are skipped, not treated as errors; only infrastructure
// failures (store/collaborator errors) abort the block.
func (p *Producer) runWorkers(
	ctx context.Context,
	h int64,
	blockTime int64,
	txs []upstream.InscriptionTransaction,
	inscriptions map[string]upstream.Inscription,
) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)

	for _, tx := range txs {
		tx := tx
		g.Go(func() error {
			return p.processTransaction(gctx, h, blockTime, tx, inscriptions[tx.InscriptionID])
		})
	}
	return g.Wait()
}

// processTransaction decodes a single inscription-transaction into an
// event, if it carries a well-formed ORC-20 instruction, and persists
// it with handled=true (the emit half of emit-then-unmark).
func (p *Producer) processTransaction(ctx context.Context, h int64, blockTime int64, tx upstream.InscriptionTransaction, ins upstream.Inscription) error {
	if ins.InscriptionNumber < 0 {
		return nil
	}

	content, contentType, err := p.resolveContent(ctx, tx, ins)
	if err != nil {
		if p.log != nil {
			p.log.Warn("skipping inscription, content unavailable", "inscription_id", tx.InscriptionID, "err", err)
		}
		return nil
	}
	lowerType := strings.ToLower(contentType)
	if !strings.Contains(lowerType, "text") && !strings.Contains(lowerType, "json") {
		return nil
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(content, &decoded); err != nil {
		return nil
	}
	protocol, _ := decoded["p"].(string)
	if !strings.EqualFold(protocol, "orc-20") {
		return nil
	}
	op, _ := decoded["op"].(string)
	if op == "" {
		return nil
	}

	eventType := model.EventTypeTransfer
	sender := tx.PrevOwner
	if tx.GenesisTx {
		eventType = model.EventTypeInscribe
		sender = tx.CurrentOwner
	}

	e := &model.Event{
		ID:                newEventID(),
		EventType:         eventType,
		BlockHeight:       h,
		BlockIndex:        tx.BlockIndex,
		Timestamp:         blockTime,
		InscriptionID:     tx.InscriptionID,
		InscriptionNumber: ins.InscriptionNumber,
		Sender:            sender,
		Receiver:          tx.CurrentOwner,
		Content:           decoded,
		Operation:         strings.ToLower(op),
		Handled:           true,
	}

	if err := p.store.UpsertEvent(ctx, e); err != nil {
		return fmt.Errorf("persist event for %s: %w", tx.InscriptionID, err)
	}
	return nil
}

// resolveContent obtains an inscription's content bytes and declared
// content type, preferring the upstream-stored copy, then the Redis
// cache, then the Ord content service, and finally a direct decode of
// the reveal transaction's witness via Electrs.
func (p *Producer) resolveContent(ctx context.Context, tx upstream.InscriptionTransaction, ins upstream.Inscription) ([]byte, string, error) {
	if ins.Content != "" {
		return []byte(ins.Content), ins.ContentType, nil
	}

	if p.cache != nil {
		if cached, ok, err := p.cache.Get(ctx, tx.InscriptionID); err == nil && ok {
			return cached, ins.ContentType, nil
		}
	}

	body, contentType, err := p.ord.GetContent(ctx, tx.InscriptionID)
	if err == nil {
		if p.cache != nil {
			_ = p.cache.Set(ctx, tx.InscriptionID, body)
		}
		return body, contentType, nil
	}
	if !errors.Is(err, chainclient.ErrContentNotFound) {
		return nil, "", fmt.Errorf("ord content fetch: %w", err)
	}

	return p.resolveFromWitness(ctx, tx)
}

// resolveFromWitness is the last-resort content source: it fetches the
// reveal transaction from Electrs and decodes the ord envelope directly
// out of whichever input witness carries it.
func (p *Producer) resolveFromWitness(ctx context.Context, tx upstream.InscriptionTransaction) ([]byte, string, error) {
	etx, err := p.electrs.GetTransaction(ctx, tx.TxID)
	if err != nil {
		return nil, "", fmt.Errorf("electrs GetTransaction: %w", err)
	}

	for _, vin := range etx.Vin {
		for _, w := range vin.Witness {
			raw, err := helpers.HexToBytes(w)
			if err != nil {
				continue
			}
			result, err := envelope.Decode(raw)
			if err != nil {
				continue
			}
			body, err := base64.StdEncoding.DecodeString(result.Body)
			if err != nil {
				continue
			}
			if p.cache != nil {
				_ = p.cache.Set(ctx, tx.InscriptionID, body)
			}
			return body, result.ContentType, nil
		}
	}
	return nil, "", fmt.Errorf("no ord envelope found in witness for tx %s", tx.TxID)
}

// newEventID mints the opaque 16-character random id every event is
// keyed by.
func newEventID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}
