package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-themis/internal/domain"
)

// ErrUnknownReservation is returned when settling or releasing a
// reservation the guard does not hold.
var ErrUnknownReservation = errors.New("unknown budget reservation")

// Reservation holds estimated tokens against the budget until the call
// completes.
type Reservation struct {
	ID          string
	WorkspaceID string
	Tokens      int64
	At          time.Time
}

func (r *Reservation) entry() Entry {
	return Entry{ID: r.ID, WorkspaceID: r.WorkspaceID, Tokens: r.Tokens, At: r.At}
}

// Remaining is the headroom left under each daily ceiling.
type Remaining struct {
	Global    int64 `json:"global"`
	Workspace int64 `json:"workspace"`
}

// Guard checks and records token usage. All read-then-write sequences run
// under one mutex so concurrent reservations cannot both pass a check that
// only one of them fits.
type Guard struct {
	mu     sync.Mutex
	ledger Ledger
	limits domain.BudgetLimits
	now    func() time.Time
	logger *slog.Logger

	pending map[string]*Reservation
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock injects the time source used for windows and timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithLedger replaces the default in-memory ledger.
func WithLedger(l Ledger) Option {
	return func(g *Guard) { g.ledger = l }
}

// NewGuard validates limits and returns a Guard backed by an in-memory
// ledger unless WithLedger is given.
func NewGuard(limits domain.BudgetLimits, opts ...Option) (*Guard, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid budget limits: %w", err)
	}

	g := &Guard{
		ledger:  NewMemoryLedger(),
		limits:  limits,
		now:     time.Now,
		logger:  slog.Default().With("component", "budget"),
		pending: make(map[string]*Reservation),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CheckBudget reports whether estimatedTokens fits under the global daily
// ceiling and the workspace's ceilings. It reserves nothing.
func (g *Guard) CheckBudget(ctx context.Context, workspaceID string, estimatedTokens int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.check(ctx, workspaceID, estimatedTokens)
	var exceeded domain.BudgetExceededError
	if errors.As(err, &exceeded) {
		return false, nil
	}
	return err == nil, err
}

// RecordUsage appends consumed tokens after a call completes.
func (g *Guard) RecordUsage(ctx context.Context, workspaceID string, tokens int64) error {
	if tokens <= 0 {
		return nil
	}
	return g.ledger.Append(ctx, Entry{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Tokens:      tokens,
		At:          g.now(),
	})
}

// Reserve checks the budget and, if the estimate fits, records it in the
// same critical section. The returned reservation must be settled or
// released. Exceeding a ceiling returns domain.BudgetExceededError.
func (g *Guard) Reserve(ctx context.Context, workspaceID string, estimatedTokens int64) (*Reservation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(ctx, workspaceID, estimatedTokens); err != nil {
		return nil, err
	}

	r := &Reservation{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Tokens:      estimatedTokens,
		At:          g.now(),
	}
	if estimatedTokens > 0 {
		if err := g.ledger.Append(ctx, r.entry()); err != nil {
			return nil, err
		}
	}
	g.pending[r.ID] = r
	return r, nil
}

// Settle replaces a reservation's estimate with the tokens actually used.
func (g *Guard) Settle(ctx context.Context, r *Reservation, actualTokens int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.releaseLocked(ctx, r); err != nil {
		return err
	}
	if actualTokens <= 0 {
		return nil
	}
	return g.ledger.Append(ctx, Entry{
		ID:          r.ID,
		WorkspaceID: r.WorkspaceID,
		Tokens:      actualTokens,
		At:          r.At,
	})
}

// Release drops a reservation without recording usage.
func (g *Guard) Release(ctx context.Context, r *Reservation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releaseLocked(ctx, r)
}

func (g *Guard) releaseLocked(ctx context.Context, r *Reservation) error {
	if r == nil {
		return ErrUnknownReservation
	}
	if _, ok := g.pending[r.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReservation, r.ID)
	}
	delete(g.pending, r.ID)

	if r.Tokens <= 0 {
		return nil
	}
	return g.ledger.Remove(ctx, r.entry())
}

// Pending returns the number of outstanding reservations.
func (g *Guard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Usage returns a workspace's tokens within the period's window. An empty
// workspaceID returns global usage.
func (g *Guard) Usage(ctx context.Context, workspaceID string, period domain.BudgetPeriod) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.prune(ctx, workspaceID); err != nil {
		return 0, err
	}
	return g.ledger.Sum(ctx, workspaceID, g.now().Add(-period.Window()))
}

// Remaining returns the daily headroom globally and for workspaceID,
// floored at zero.
func (g *Guard) Remaining(ctx context.Context, workspaceID string) (Remaining, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.prune(ctx, workspaceID); err != nil {
		return Remaining{}, err
	}
	since := g.now().Add(-domain.BudgetDaily.Window())

	global, err := g.ledger.Sum(ctx, "", since)
	if err != nil {
		return Remaining{}, err
	}
	out := Remaining{Global: max(g.limits.GlobalDailyTokens-global, 0)}

	if workspaceID != "" {
		ws, err := g.ledger.Sum(ctx, workspaceID, since)
		if err != nil {
			return Remaining{}, err
		}
		out.Workspace = max(g.limits.WorkspaceDailyTokens-ws, 0)
	}
	return out, nil
}

// check returns a BudgetExceededError for the first ceiling estimated
// would push past. Callers hold g.mu.
func (g *Guard) check(ctx context.Context, workspaceID string, estimated int64) error {
	if err := g.prune(ctx, workspaceID); err != nil {
		return err
	}
	now := g.now()
	daily := now.Add(-domain.BudgetDaily.Window())

	global, err := g.ledger.Sum(ctx, "", daily)
	if err != nil {
		return err
	}
	if global+estimated > g.limits.GlobalDailyTokens {
		return g.exceeded(domain.ScopeGlobal, domain.BudgetDaily, "", g.limits.GlobalDailyTokens, global, estimated)
	}

	if workspaceID == "" {
		return nil
	}

	ws, err := g.ledger.Sum(ctx, workspaceID, daily)
	if err != nil {
		return err
	}
	if ws+estimated > g.limits.WorkspaceDailyTokens {
		return g.exceeded(domain.ScopeWorkspace, domain.BudgetDaily, workspaceID, g.limits.WorkspaceDailyTokens, ws, estimated)
	}

	if g.limits.WorkspaceMonthlyTokens > 0 {
		monthly, err := g.ledger.Sum(ctx, workspaceID, now.Add(-domain.BudgetMonthly.Window()))
		if err != nil {
			return err
		}
		if monthly+estimated > g.limits.WorkspaceMonthlyTokens {
			return g.exceeded(domain.ScopeWorkspace, domain.BudgetMonthly, workspaceID, g.limits.WorkspaceMonthlyTokens, monthly, estimated)
		}
	}
	return nil
}

func (g *Guard) exceeded(scope domain.BudgetScope, period domain.BudgetPeriod, ws string, limit, current, required int64) error {
	err := domain.NewBudgetExceededError(scope, period, ws, limit, current, required)
	g.logger.Warn("token budget exceeded",
		"scope", scope.String(),
		"period", period.String(),
		"workspace_id", ws,
		"limit", limit,
		"current", current,
		"tokens", required)
	return err
}

func (g *Guard) prune(ctx context.Context, workspaceID string) error {
	return g.ledger.Prune(ctx, workspaceID, g.now().Add(-Retention))
}
