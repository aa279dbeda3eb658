// Package dispatcher validates a stored event's envelope and routes it to
// the registered opcode handler, persisting the outcome either way.
package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhiying8710/orc20-indexer/internal/handler"
	"github.com/zhiying8710/orc20-indexer/internal/model"
	"github.com/zhiying8710/orc20-indexer/internal/store"
	"github.com/zhiying8710/orc20-indexer/pkg/logging"
)

// protocolName is the only value "p" may take in a recognized instruction.
const protocolName = "orc-20"

// Dispatcher routes stored events to handlers and persists their outcome.
type Dispatcher struct {
	store    *store.Store
	cfg      handler.Config
	registry map[string]handler.Func
	log      *logging.Logger
}

// New constructs a Dispatcher against s, using the package-level handler
// Registry unless overridden by tests.
func New(s *store.Store, cfg handler.Config, log *logging.Logger) *Dispatcher {
	return &Dispatcher{store: s, cfg: cfg, registry: handler.Registry, log: log}
}

// Dispatch validates e's envelope, invokes its handler if the envelope is
// well-formed, and persists the resulting event. The returned event is
// always the persisted one; a non-nil error means persistence or an
// infrastructure failure, not a business-rule rejection (those live in
// the persisted event's valid/error fields).
func (d *Dispatcher) Dispatch(ctx context.Context, e *model.Event) (*model.Event, error) {
	out, err := d.resolve(ctx, e)
	if err != nil {
		return nil, err
	}
	out.Handled = true
	if err := d.store.UpsertEvent(ctx, out); err != nil {
		return nil, fmt.Errorf("dispatcher: persist event %s: %w", out.ID, err)
	}
	return out, nil
}

// Preview resolves e against its handler without persisting the
// result. The Coordinator's mempool pass calls this with a Dispatcher
// bound to a store.Store.Preview-scoped transaction, so any canonical
// mutation a handler makes is rolled back; the caller then persists
// only the returned event's valid/error verdict against the real
// store.
func (d *Dispatcher) Preview(ctx context.Context, e *model.Event) (*model.Event, error) {
	return d.resolve(ctx, e)
}

func (d *Dispatcher) resolve(ctx context.Context, e *model.Event) (*model.Event, error) {
	if err := validateEnvelope(e); err != "" {
		e.Valid = false
		e.Error = err
		return e, nil
	}

	op := strings.ToLower(e.Operation)
	fn, ok := d.registry[op]
	if !ok {
		e.Valid = false
		e.Error = "unknown op: " + e.Operation
		return e, nil
	}

	original := e.Content
	e.Content = deepCopyContent(original)
	result, err := fn(ctx, e, d.store, d.cfg)
	e.Content = original
	if err != nil {
		if d.log != nil {
			d.log.Error("handler failed", "op", op, "event", e.ID, "err", err)
		}
		return nil, fmt.Errorf("dispatcher: handler %q: %w", op, err)
	}
	return result, nil
}

// validateEnvelope checks the structural rules every instruction must
// satisfy before a handler ever sees it: only p/op/params keys, p must be
// "orc-20", op must be present, params must be non-empty.
func validateEnvelope(e *model.Event) string {
	for k := range e.Content {
		switch k {
		case "p", "op", "params":
		default:
			return "unknown envelope key: " + k
		}
	}

	p, ok := e.Content["p"].(string)
	if !ok || p != protocolName {
		return "unsupported protocol"
	}

	op, ok := e.Content["op"].(string)
	if !ok || op == "" {
		return "missing op"
	}
	e.Operation = strings.ToLower(op)

	params, ok := e.Content["params"].(map[string]interface{})
	if !ok || len(params) == 0 {
		return "params must be a non-empty object"
	}
	return ""
}

// deepCopyContent copies the event's content map one level deep, and the
// nested params map one level deeper, so a handler mutating either cannot
// corrupt the persisted envelope.
func deepCopyContent(content map[string]interface{}) map[string]interface{} {
	if content == nil {
		return nil
	}
	out := make(map[string]interface{}, len(content))
	for k, v := range content {
		if params, ok := v.(map[string]interface{}); ok {
			nested := make(map[string]interface{}, len(params))
			for pk, pv := range params {
				nested[pk] = pv
			}
			out[k] = nested
			continue
		}
		out[k] = v
	}
	return out
}
