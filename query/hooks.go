package query

import "context"

// HookKind identifies which lifecycle point a hook fires at (§4.8.6).
type HookKind int

const (
	HookBeforeCreate HookKind = iota
	HookAfterCreate
	HookBeforeUpdate
	HookAfterUpdate
	HookBeforeDelete
	HookAfterDelete
	HookQueryStart
	HookQueryEnd
	HookQueryError
)

// HookContext is the payload passed to every lifecycle callable, carrying
// whichever fields are relevant to the firing point.
type HookContext struct {
	Table string
	Data  map[string]any
	Where []any
	Result any
	SQL   string
	Args  []any
	Err   error
}

// HookFunc is a single lifecycle callable. Returning a non-nil error aborts
// the surrounding operation (§7 propagation policy: "Hooks that raise abort
// the surrounding operation").
type HookFunc func(ctx context.Context, hc HookContext) error

// SpanFunc starts a tracing span around a terminal SQL execution and
// returns a function that ends it.
type SpanFunc func(ctx context.Context, table, sql string) func()

// Hooks groups every lifecycle collaborator configured for a Builder.
// Any field left nil is simply skipped.
type Hooks struct {
	BeforeCreate HookFunc
	AfterCreate  HookFunc
	BeforeUpdate HookFunc
	AfterUpdate  HookFunc
	BeforeDelete HookFunc
	AfterDelete  HookFunc

	OnQueryStart HookFunc
	OnQueryEnd   HookFunc
	OnQueryError HookFunc

	StartSpan SpanFunc
}

func (h *Hooks) fire(ctx context.Context, kind HookKind, hc HookContext) error {
	if h == nil {
		return nil
	}
	var fn HookFunc
	switch kind {
	case HookBeforeCreate:
		fn = h.BeforeCreate
	case HookAfterCreate:
		fn = h.AfterCreate
	case HookBeforeUpdate:
		fn = h.BeforeUpdate
	case HookAfterUpdate:
		fn = h.AfterUpdate
	case HookBeforeDelete:
		fn = h.BeforeDelete
	case HookAfterDelete:
		fn = h.AfterDelete
	case HookQueryStart:
		fn = h.OnQueryStart
	case HookQueryEnd:
		fn = h.OnQueryEnd
	case HookQueryError:
		fn = h.OnQueryError
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, hc)
}

// runWithHooks wraps a terminal SQL execution with onQueryStart/onQueryEnd/
// onQueryError and startSpan, per §4.8.6.
func runWithHooks(ctx context.Context, h *Hooks, table, sql string, args []any, run func() ([]map[string]any, error)) ([]map[string]any, error) {
	var endSpan func()
	if h != nil && h.StartSpan != nil {
		endSpan = h.StartSpan(ctx, table, sql)
	}
	if h != nil {
		if err := h.fire(ctx, HookQueryStart, HookContext{Table: table, SQL: sql, Args: args}); err != nil {
			if endSpan != nil {
				endSpan()
			}
			return nil, err
		}
	}

	rows, err := run()

	if err != nil {
		if h != nil {
			_ = h.fire(ctx, HookQueryError, HookContext{Table: table, SQL: sql, Args: args, Err: err})
		}
		if endSpan != nil {
			endSpan()
		}
		return nil, err
	}

	if h != nil {
		if herr := h.fire(ctx, HookQueryEnd, HookContext{Table: table, SQL: sql, Args: args, Result: rows}); herr != nil {
			if endSpan != nil {
				endSpan()
			}
			return rows, herr
		}
	}
	if endSpan != nil {
		endSpan()
	}
	return rows, nil
}
