// Package ledger runs every public operation as one store transaction and is
// the only entry point adapters use.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/angganurf/wunderland-sol/internal/addressing"
	"github.com/angganurf/wunderland-sol/internal/domains/contracts"
	"github.com/angganurf/wunderland-sol/internal/metrics"
	"github.com/angganurf/wunderland-sol/internal/store"
	"github.com/angganurf/wunderland-sol/pkg/models"
)

var ErrNilStore = errors.New("ledger: store is required")

type Options struct {
	Program   models.Key
	Policy    contracts.Policy
	Authority contracts.AuthorityVerifier
	// Clock is read once per transaction. Defaults to time.Now.
	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

type Ledger struct {
	store     *store.Store
	program   models.Key
	policy    contracts.Policy
	authority contracts.AuthorityVerifier
	clock     func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Recorder
	addr      addressing.Deriver
}

func New(st *store.Store, opts Options) (*Ledger, error) {
	if st == nil {
		return nil, ErrNilStore
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Authority == nil {
		opts.Authority = contracts.StaticAuthority{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{
		store:     st,
		program:   opts.Program,
		policy:    opts.Policy,
		authority: opts.Authority,
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "ledger"),
		metrics:   opts.Metrics,
		addr:      addressing.New(opts.Program),
	}, nil
}

func (l *Ledger) Program() models.Key { return l.program }
func (l *Ledger) Policy() contracts.Policy { return l.policy }

// Addresses exposes the derivation used for every record of this program.
func (l *Ledger) Addresses() addressing.Deriver { return l.addr }

func (l *Ledger) txContext() contracts.TxContext {
	return contracts.TxContext{Program: l.program, Now: l.clock().Unix(), Policy: l.policy}
}

// run executes fn as one all-or-nothing transaction and reports the outcome.
// attrs are logged with both outcomes. fn may append result attributes, which
// are dropped when the transaction is rejected.
func (l *Ledger) run(ctx context.Context, operation string, attrs []any, fn func(tx *store.Tx, tctx contracts.TxContext, log *[]any) error) error {
	if err := ctx.Err(); err != nil {
		return contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	tctx := l.txContext()
	start := time.Now()
	base := len(attrs)
	var slot uint64
	err := l.store.Update(func(tx *store.Tx) error {
		slot = tx.Slot()
		return fn(tx, tctx, &attrs)
	})
	l.metrics.ObserveOperation(operation, time.Since(start), slot, err)

	if err != nil {
		attrs = append(attrs[:base], "operation", operation, "now", tctx.Now)
		attrs = append(attrs, "category", string(contracts.CategoryOf(err)), "error", err.Error())
		if ledgerErr, ok := contracts.AsLedgerError(err); ok {
			attrs = append(attrs, "code", ledgerErr.Code, "error_name", ledgerErr.Name)
		}
		l.logger.WarnContext(ctx, "ledger operation rejected", attrs...)
		return err
	}
	attrs = append(attrs, "operation", operation, "now", tctx.Now, "slot", slot)
	l.logger.InfoContext(ctx, "ledger operation committed", attrs...)
	return nil
}

// view runs fn against a read-only snapshot.
func (l *Ledger) view(ctx context.Context, fn func(tx *store.Tx, tctx contracts.TxContext) error) error {
	if err := ctx.Err(); err != nil {
		return contracts.WrapCategorizedError(contracts.CategoryInfrastructure, err)
	}
	tctx := l.txContext()
	return l.store.View(func(tx *store.Tx) error { return fn(tx, tctx) })
}
