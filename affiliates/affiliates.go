// Package affiliates keeps an in-memory registry of referral partners
// and their accrued commission balances.
package affiliates

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("affiliate not found")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Affiliate is a registered referral partner.
type Affiliate struct {
	ID        string
	Name      string
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// Registry stores affiliates keyed by id.
type Registry struct {
	mu         sync.RWMutex
	affiliates map[string]*Affiliate
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		affiliates: make(map[string]*Affiliate),
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates an affiliate with a generated id and returns it.
func (r *Registry) Register(name string) Affiliate {
	a := &Affiliate{
		ID:        uuid.NewString(),
		Name:      name,
		Balance:   decimal.Zero,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.affiliates[a.ID] = a
	r.mu.Unlock()

	r.logger.Info("affiliate registered",
		zap.String("affiliate_id", a.ID),
		zap.String("name", name))
	return *a
}

// Get returns the affiliate for the given id.
func (r *Registry) Get(id string) (Affiliate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.affiliates[id]
	if !ok {
		return Affiliate{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *a, nil
}

// Credit adds a commission amount to the affiliate's balance.
func (r *Registry) Credit(id string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit must be positive, got %s", ErrInvalidAmount, amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.affiliates[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	a.Balance = a.Balance.Add(amount)

	r.logger.Info("affiliate credited",
		zap.String("affiliate_id", id),
		zap.String("amount", amount.String()),
		zap.String("balance", a.Balance.String()))
	return nil
}

// Balance returns the affiliate's accrued commission balance.
func (r *Registry) Balance(id string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.affiliates[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a.Balance, nil
}
