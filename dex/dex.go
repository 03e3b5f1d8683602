// Package dex implements the per-ICO secondary order book. Orders are
// standing resale offers filled by explicit counterparty execution;
// trades move already-minted tokens between holders and never touch
// the ICO's minted supply.
package dex

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrIcoNotFound        = errors.New("ico not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrOrderNotFound      = errors.New("order not found")
	ErrUnauthorized       = errors.New("not the order owner")
	ErrOrderNotCancellable = errors.New("order not cancellable")
	ErrOrderNotTradable   = errors.New("order not tradable")
)

// Status of an order.
type Status uint8

const (
	StatusOpen Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Order is a resting resale offer. Cancelled and filled orders stay in
// the book for audit; they are never physically removed.
type Order struct {
	ID           uint64 // unique within an ICO, assigned from 1
	IcoID        string
	Owner        solana.PublicKey
	Amount       uint64          // base units offered
	Price        decimal.Decimal // lamports per base unit
	Status       Status
	FilledAmount uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Remaining returns the unfilled part of the offer.
func (o Order) Remaining() uint64 {
	return o.Amount - o.FilledAmount
}

// IcoChecker is the narrow view of the ledger the book needs: whether
// an ICO id is known. ico.Manager satisfies it.
type IcoChecker interface {
	Has(icoID string) bool
}

type shard struct {
	mu     sync.Mutex
	nextID uint64
	orders map[uint64]*Order
}

// Book holds one order shard per ICO. Mutations on the same ICO are
// serialized by the shard lock; distinct ICOs trade in parallel.
type Book struct {
	mu     sync.RWMutex
	shards map[string]*shard

	icos   IcoChecker
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Book)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Book) { b.logger = logger }
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

func NewBook(icos IcoChecker, opts ...Option) *Book {
	b := &Book{
		shards: make(map[string]*shard),
		icos:   icos,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Book) shardFor(icoID string, create bool) (*shard, error) {
	b.mu.RLock()
	s, ok := b.shards[icoID]
	b.mu.RUnlock()
	if ok {
		return s, nil
	}
	if !b.icos.Has(icoID) {
		return nil, fmt.Errorf("%w: %q", ErrIcoNotFound, icoID)
	}
	if !create {
		return nil, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok = b.shards[icoID]; ok {
		return s, nil
	}
	s = &shard{nextID: 1, orders: make(map[uint64]*Order)}
	b.shards[icoID] = s
	return s, nil
}

// CreateOrder appends a new open resale offer and returns its id. No
// matching happens at creation; the book holds standing offers only.
func (b *Book) CreateOrder(icoID string, amount uint64, price decimal.Decimal, owner solana.PublicKey) (uint64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("%w: ico %q: order amount must be positive", ErrInvalidAmount, icoID)
	}
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: ico %q: order price must be positive", ErrInvalidPrice, icoID)
	}

	s, err := b.shardFor(icoID, true)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	now := b.now()
	s.orders[id] = &Order{
		ID:        id,
		IcoID:     icoID,
		Owner:     owner,
		Amount:    amount,
		Price:     price,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	b.logger.Info("order created",
		zap.String("ico", icoID),
		zap.Uint64("order", id),
		zap.Uint64("amount", amount),
		zap.String("price", price.String()),
		zap.Stringer("owner", owner),
	)
	return id, nil
}

// CancelOrder cancels a resting order. Only the owner may cancel, and
// only while the order is open or partially filled.
func (b *Book) CancelOrder(icoID string, orderID uint64, owner solana.PublicKey) error {
	s, err := b.shardFor(icoID, false)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("%w: ico %q order %d", ErrOrderNotFound, icoID, orderID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: ico %q order %d", ErrOrderNotFound, icoID, orderID)
	}
	if !o.Owner.Equals(owner) {
		return fmt.Errorf("%w: ico %q order %d", ErrUnauthorized, icoID, orderID)
	}
	if o.Status == StatusFilled || o.Status == StatusCancelled {
		return fmt.Errorf("%w: ico %q order %d is %s", ErrOrderNotCancellable, icoID, orderID, o.Status)
	}

	o.Status = StatusCancelled
	o.UpdatedAt = b.now()
	b.logger.Info("order cancelled", zap.String("ico", icoID), zap.Uint64("order", orderID))
	return nil
}

// ExecuteOrder fills amount base units of a resting order on behalf of
// buyer. The caller names the exact order and quantity; there is no
// cross-order matching. Any counterparty may fill, the buyer does not
// have to own the order.
func (b *Book) ExecuteOrder(icoID string, orderID uint64, buyer solana.PublicKey, amount uint64) error {
	s, err := b.shardFor(icoID, false)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("%w: ico %q order %d", ErrOrderNotFound, icoID, orderID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: ico %q order %d", ErrOrderNotFound, icoID, orderID)
	}
	if o.Status == StatusFilled || o.Status == StatusCancelled {
		return fmt.Errorf("%w: ico %q order %d is %s", ErrOrderNotTradable, icoID, orderID, o.Status)
	}
	if amount == 0 {
		return fmt.Errorf("%w: ico %q order %d: fill amount must be positive", ErrInvalidAmount, icoID, orderID)
	}
	if amount > o.Remaining() {
		return fmt.Errorf("%w: ico %q order %d: fill %d exceeds remaining %d",
			ErrInvalidAmount, icoID, orderID, amount, o.Remaining())
	}

	o.FilledAmount += amount
	if o.FilledAmount == o.Amount {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
	o.UpdatedAt = b.now()

	b.logger.Info("order executed",
		zap.String("ico", icoID),
		zap.Uint64("order", orderID),
		zap.Uint64("amount", amount),
		zap.Uint64("filled", o.FilledAmount),
		zap.String("status", o.Status.String()),
		zap.Stringer("buyer", buyer),
	)
	return nil
}

// Order returns a snapshot of one order.
func (b *Book) Order(icoID string, orderID uint64) (Order, error) {
	s, err := b.shardFor(icoID, false)
	if err != nil {
		return Order{}, err
	}
	if s == nil {
		return Order{}, fmt.Errorf("%w: ico %q order %d", ErrOrderNotFound, icoID, orderID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, fmt.Errorf("%w: ico %q order %d", ErrOrderNotFound, icoID, orderID)
	}
	return *o, nil
}

// Orders returns a snapshot of every order for an ICO in id order,
// cancelled and filled ones included.
func (b *Book) Orders(icoID string) ([]Order, error) {
	s, err := b.shardFor(icoID, false)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, 0, len(s.orders))
	for id := uint64(1); id < s.nextID; id++ {
		if o, ok := s.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}
