package affiliates

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	ts := time.Unix(5_000, 0)
	r := NewRegistry(WithClock(func() time.Time { return ts }))

	a := r.Register("partner-one")
	require.NotEmpty(t, a.ID)
	assert.Equal(t, "partner-one", a.Name)
	assert.True(t, a.Balance.IsZero())
	assert.Equal(t, ts, a.CreatedAt)

	got, err := r.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestGetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUniqueIDs(t *testing.T) {
	r := NewRegistry()

	a := r.Register("a")
	b := r.Register("b")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreditAndBalance(t *testing.T) {
	r := NewRegistry()
	a := r.Register("partner")

	require.NoError(t, r.Credit(a.ID, decimal.NewFromInt(100)))
	require.NoError(t, r.Credit(a.ID, decimal.NewFromInt(50)))

	bal, err := r.Balance(a.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(150)), "balance %s", bal)
}

func TestCreditValidation(t *testing.T) {
	r := NewRegistry()
	a := r.Register("partner")

	assert.ErrorIs(t, r.Credit(a.ID, decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, r.Credit(a.ID, decimal.NewFromInt(-1)), ErrInvalidAmount)
	assert.ErrorIs(t, r.Credit("missing", decimal.NewFromInt(1)), ErrNotFound)

	bal, err := r.Balance(a.ID)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestConcurrentCredits(t *testing.T) {
	r := NewRegistry()
	a := r.Register("partner")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Credit(a.ID, decimal.NewFromInt(1))
		}()
	}
	wg.Wait()

	bal, err := r.Balance(a.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(50)), "balance %s", bal)
}
