// Package ico implements the pricing and settlement ledger for token
// sales. Each ICO prices tokens along a configurable bonding curve;
// buys mint into circulating supply and sells return tokens to the
// pool, with payment proof delegated to an external verifier.
package ico

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/icolab/solana-ico-go/curve"
)

const MaxIcoIDLength = 100

// TokenSpec describes the token being sold. Immutable once the ICO is
// registered.
type TokenSpec struct {
	Name        string
	Symbol      string
	TotalSupply uint64 // base units
	Decimals    uint8
}

// ICO is the immutable configuration of one token sale.
type ICO struct {
	ID        string
	Token     TokenSpec
	Curve     curve.Params
	StartTime int64 // unix seconds
	EndTime   int64
	SellFee   decimal.Decimal // fraction of gross value, in [0,1)
}

func (c ICO) validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: ico_id must not be empty", ErrInvalidConfig)
	}
	if len(c.ID) > MaxIcoIDLength {
		return fmt.Errorf("%w: ico_id %q is too long", ErrInvalidConfig, c.ID)
	}
	if c.StartTime >= c.EndTime {
		return fmt.Errorf("%w: ico %q start_time must be before end_time", ErrInvalidConfig, c.ID)
	}
	if c.Token.TotalSupply == 0 {
		return fmt.Errorf("%w: ico %q total_supply must be positive", ErrInvalidConfig, c.ID)
	}
	if c.Token.Decimals > 18 {
		return fmt.Errorf("%w: ico %q decimals must be between 0 and 18", ErrInvalidConfig, c.ID)
	}
	if c.SellFee.IsNegative() || c.SellFee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: ico %q sell_fee_percentage must be in [0,1)", ErrInvalidConfig, c.ID)
	}
	if err := c.Curve.Validate(); err != nil {
		return fmt.Errorf("ico %q: %w", c.ID, err)
	}
	return nil
}

// Phase of an ICO relative to its sale window.
type Phase uint8

const (
	PhasePending Phase = iota
	PhaseActive
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseActive:
		return "active"
	case PhaseClosed:
		return "closed"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

func phaseAt(c ICO, now int64) Phase {
	switch {
	case now < c.StartTime:
		return PhasePending
	case now >= c.EndTime:
		return PhaseClosed
	}
	return PhaseActive
}

// Side of a settlement.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// Receipt records one settled buy or sell.
type Receipt struct {
	ID           string
	IcoID        string
	Side         Side
	Amount       uint64          // base units settled
	UnitPrice    decimal.Decimal // lamports per base unit, at pre-trade supply
	GrossValue   decimal.Decimal // UnitPrice * Amount
	Fee          decimal.Decimal // sell fee deducted, zero for buys
	NetValue     decimal.Decimal // GrossValue - Fee
	MintedSupply uint64          // circulating supply after the trade
	Counterparty solana.PublicKey
	Reference    string // payment or transfer reference
	Timestamp    time.Time
}

// PaymentVerifier proves payments and token returns on chain. The
// ledger treats it as synchronous and authoritative; any timeout is
// owned by the implementation and surfaces here as a failed
// verification.
type PaymentVerifier interface {
	// VerifyPayment checks that reference pays at least
	// requiredLamports to ICO custody and returns the payer.
	VerifyPayment(ctx context.Context, reference string, requiredLamports decimal.Decimal) (solana.PublicKey, error)

	// VerifyTokenTransfer checks that reference returns amount base
	// units of the ICO mint to custody and returns the seller.
	VerifyTokenTransfer(ctx context.Context, reference string, amount uint64) (solana.PublicKey, error)
}

type icoState struct {
	mu     sync.Mutex
	cfg    ICO
	minted uint64
}

// Manager owns the ICO registry and serializes settlement per ICO.
// Mutating operations on the same ICO take that entry's lock; distinct
// ICOs settle in parallel.
type Manager struct {
	mu   sync.RWMutex
	icos map[string]*icoState

	verifier PaymentVerifier
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(verifier PaymentVerifier, opts ...Option) *Manager {
	m := &Manager{
		icos:     make(map[string]*icoState),
		verifier: verifier,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddOrUpdate registers a new ICO or replaces the configuration of an
// existing one. Minted supply survives a configuration update; ICOs
// are never removed.
func (m *Manager) AddOrUpdate(cfg ICO) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.icos[cfg.ID]; ok {
		st.mu.Lock()
		st.cfg = cfg
		st.mu.Unlock()
		m.logger.Info("ico updated", zap.String("ico", cfg.ID))
		return nil
	}
	m.icos[cfg.ID] = &icoState{cfg: cfg}
	m.logger.Info("ico registered",
		zap.String("ico", cfg.ID),
		zap.String("symbol", cfg.Token.Symbol),
		zap.String("curve", cfg.Curve.Type.String()),
		zap.Uint64("total_supply", cfg.Token.TotalSupply),
	)
	return nil
}

func (m *Manager) lookup(icoID string) (*icoState, error) {
	m.mu.RLock()
	st, ok := m.icos[icoID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrIcoNotFound, icoID)
	}
	return st, nil
}

// Get returns a snapshot of the ICO configuration.
func (m *Manager) Get(icoID string) (ICO, error) {
	st, err := m.lookup(icoID)
	if err != nil {
		return ICO{}, err
	}
	st.mu.Lock()
	cfg := st.cfg
	st.mu.Unlock()
	return cfg, nil
}

// IDs lists the registered ICO ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.icos))
	for id := range m.icos {
		ids = append(ids, id)
	}
	return ids
}

// Has reports whether an ICO is registered.
func (m *Manager) Has(icoID string) bool {
	m.mu.RLock()
	_, ok := m.icos[icoID]
	m.mu.RUnlock()
	return ok
}

// MintedSupply returns the circulating supply of an ICO.
func (m *Manager) MintedSupply(icoID string) (uint64, error) {
	st, err := m.lookup(icoID)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	minted := st.minted
	st.mu.Unlock()
	return minted, nil
}

// Phase returns the sale phase of an ICO at the current time.
func (m *Manager) Phase(icoID string) (Phase, error) {
	st, err := m.lookup(icoID)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	cfg := st.cfg
	st.mu.Unlock()
	return phaseAt(cfg, m.now().Unix()), nil
}

// Price returns the current unit price in lamports at the present
// minted supply.
func (m *Manager) Price(icoID string) (decimal.Decimal, error) {
	st, err := m.lookup(icoID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	st.mu.Lock()
	cfg, minted := st.cfg, st.minted
	st.mu.Unlock()
	return curve.PriceAt(cfg.Curve, minted)
}

// Buy settles a token purchase: prices amount base units at the
// current supply, verifies the payment reference covers the total
// cost, then mints. No state changes before the verifier accepts.
func (m *Manager) Buy(ctx context.Context, icoID string, amount uint64, paymentRef string) (*Receipt, error) {
	st, err := m.lookup(icoID)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: ico %q: buy amount must be positive", ErrInvalidAmount, icoID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cfg := st.cfg
	if phase := phaseAt(cfg, m.now().Unix()); phase != PhaseActive {
		return nil, fmt.Errorf("%w: ico %q is %s", ErrIcoNotActive, icoID, phase)
	}
	if amount > cfg.Token.TotalSupply-st.minted {
		return nil, fmt.Errorf("%w: ico %q: minted %d + %d exceeds total supply %d",
			ErrSupplyExceeded, icoID, st.minted, amount, cfg.Token.TotalSupply)
	}

	unit, err := curve.PriceAt(cfg.Curve, st.minted)
	if err != nil {
		return nil, err
	}
	total := unit.Mul(decimal.NewFromUint64(amount))

	payer, err := m.verifier.VerifyPayment(ctx, paymentRef, total)
	if err != nil {
		return nil, fmt.Errorf("%w: ico %q: %s", ErrPaymentVerification, icoID, err)
	}

	st.minted += amount

	r := &Receipt{
		ID:           uuid.New().String(),
		IcoID:        icoID,
		Side:         SideBuy,
		Amount:       amount,
		UnitPrice:    unit,
		GrossValue:   total,
		Fee:          decimal.Zero,
		NetValue:     total,
		MintedSupply: st.minted,
		Counterparty: payer,
		Reference:    paymentRef,
		Timestamp:    m.now(),
	}
	m.logger.Info("buy settled",
		zap.String("ico", icoID),
		zap.Uint64("amount", amount),
		zap.String("unit_price", unit.String()),
		zap.String("total_cost", total.String()),
		zap.Uint64("minted_supply", st.minted),
		zap.Stringer("payer", payer),
	)
	return r, nil
}

// Sell settles a token sale back to the pool. The unit price reflects
// the supply before the sell; the configured fee is deducted from the
// gross value. The transfer reference must prove the seller returned
// the tokens to custody before supply is decremented.
func (m *Manager) Sell(ctx context.Context, icoID string, amount uint64, transferRef string) (*Receipt, error) {
	st, err := m.lookup(icoID)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: ico %q: sell amount must be positive", ErrInvalidAmount, icoID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	cfg := st.cfg
	if phase := phaseAt(cfg, m.now().Unix()); phase != PhaseActive {
		return nil, fmt.Errorf("%w: ico %q is %s", ErrIcoNotActive, icoID, phase)
	}
	if amount > st.minted {
		return nil, fmt.Errorf("%w: ico %q: cannot sell %d with minted supply %d",
			ErrInsufficientSupply, icoID, amount, st.minted)
	}

	unit, err := curve.PriceAt(cfg.Curve, st.minted)
	if err != nil {
		return nil, err
	}
	gross := unit.Mul(decimal.NewFromUint64(amount))
	fee := gross.Mul(cfg.SellFee)
	net := gross.Sub(fee)

	seller, err := m.verifier.VerifyTokenTransfer(ctx, transferRef, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: ico %q: %s", ErrPaymentVerification, icoID, err)
	}

	st.minted -= amount

	r := &Receipt{
		ID:           uuid.New().String(),
		IcoID:        icoID,
		Side:         SideSell,
		Amount:       amount,
		UnitPrice:    unit,
		GrossValue:   gross,
		Fee:          fee,
		NetValue:     net,
		MintedSupply: st.minted,
		Counterparty: seller,
		Reference:    transferRef,
		Timestamp:    m.now(),
	}
	m.logger.Info("sell settled",
		zap.String("ico", icoID),
		zap.Uint64("amount", amount),
		zap.String("unit_price", unit.String()),
		zap.String("fee", fee.String()),
		zap.String("payout", net.String()),
		zap.Uint64("minted_supply", st.minted),
		zap.Stringer("seller", seller),
	)
	return r, nil
}
