package curve

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedPrice(t *testing.T) {
	p := Params{Type: TypeFixed, FixedPrice: decimal.NewFromInt(10000)}
	require.NoError(t, p.Validate())

	for _, supply := range []uint64{0, 1, 100, 1_000_000} {
		price, err := PriceAt(p, supply)
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(10000)), "supply %d: got %s", supply, price)
	}
}

func TestLinearPrice(t *testing.T) {
	p := Params{
		Type:         TypeLinear,
		InitialPrice: decimal.NewFromInt(100),
		Slope:        decimal.NewFromFloat(0.5),
	}
	require.NoError(t, p.Validate())

	for _, tc := range []struct {
		supply uint64
		want   string
	}{
		{0, "100"},
		{1, "100.5"},
		{200, "200"},
		{1000, "600"},
	} {
		price, err := PriceAt(p, tc.supply)
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.RequireFromString(tc.want)),
			"supply %d: want %s got %s", tc.supply, tc.want, price)
	}
}

func TestExponentialPrice(t *testing.T) {
	p := Params{
		Type:         TypeExponential,
		InitialPrice: decimal.NewFromInt(100),
		GrowthRate:   decimal.NewFromFloat(0.1),
	}
	require.NoError(t, p.Validate())

	price, err := PriceAt(p, 0)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(100)))

	price, err = PriceAt(p, 10)
	require.NoError(t, err)
	// 100 * 1.1^10 ~= 259.37
	f, _ := price.Float64()
	assert.InDelta(t, 259.374246, f, 1e-4)
}

func TestExponentialOverflow(t *testing.T) {
	p := Params{
		Type:         TypeExponential,
		InitialPrice: decimal.NewFromInt(1),
		GrowthRate:   decimal.NewFromInt(1),
	}
	_, err := PriceAt(p, 1_000_000)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestSigmoidPrice(t *testing.T) {
	p := Params{
		Type:           TypeSigmoid,
		MidpointSupply: decimal.NewFromInt(500),
		Steepness:      decimal.NewFromFloat(0.01),
		MaxPrice:       decimal.NewFromInt(1000),
	}
	require.NoError(t, p.Validate())

	// at the midpoint the price is exactly half of max_price
	price, err := PriceAt(p, 500)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(500)), "got %s", price)

	// far below the midpoint the price saturates low but stays positive
	low, err := PriceAt(p, 0)
	require.NoError(t, err)
	assert.True(t, low.IsPositive())
	assert.True(t, low.LessThan(price))

	// far above the midpoint the price approaches max_price
	high, err := PriceAt(p, 1_000_000)
	require.NoError(t, err)
	assert.True(t, high.GreaterThan(price))
	assert.True(t, high.LessThanOrEqual(decimal.NewFromInt(1000)))
}

func TestCustomFormulaPrice(t *testing.T) {
	p := Params{
		Type:         TypeCustom,
		InitialPrice: decimal.NewFromInt(100),
		Slope:        decimal.NewFromFloat(0.5),
		Formula:      "initial_price + slope * total_tokens_minted",
	}
	require.NoError(t, p.Validate())

	price, err := PriceAt(p, 200)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(200)), "got %s", price)
}

func TestCustomFormulaNegativePrice(t *testing.T) {
	p := Params{
		Type:         TypeCustom,
		InitialPrice: decimal.NewFromInt(100),
		Formula:      "initial_price - 200",
	}
	require.NoError(t, p.Validate())

	_, err := PriceAt(p, 0)
	require.ErrorIs(t, err, ErrInvalidCurve)
}

func TestPriceAtDeterministic(t *testing.T) {
	params := []Params{
		{Type: TypeFixed, FixedPrice: decimal.NewFromInt(42)},
		{Type: TypeLinear, InitialPrice: decimal.NewFromInt(10), Slope: decimal.NewFromFloat(0.25)},
		{Type: TypeExponential, InitialPrice: decimal.NewFromInt(10), GrowthRate: decimal.NewFromFloat(0.05)},
		{Type: TypeSigmoid, MidpointSupply: decimal.NewFromInt(100), Steepness: decimal.NewFromFloat(0.1), MaxPrice: decimal.NewFromInt(999)},
		{Type: TypeCustom, InitialPrice: decimal.NewFromInt(10), GrowthRate: decimal.NewFromFloat(0.05), Formula: "initial_price * (1 + growth_rate) ^ 2"},
	}
	for _, p := range params {
		for _, supply := range []uint64{0, 7, 1234} {
			a, err := PriceAt(p, supply)
			require.NoError(t, err, "curve %s supply %d", p.Type, supply)
			b, err := PriceAt(p, supply)
			require.NoError(t, err)
			assert.True(t, a.Equal(b), "curve %s supply %d: %s != %s", p.Type, supply, a, b)
		}
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	for _, p := range []Params{
		{Type: TypeFixed},
		{Type: TypeLinear, InitialPrice: decimal.NewFromInt(1)},
		{Type: TypeExponential, GrowthRate: decimal.NewFromFloat(0.1)},
		{Type: TypeSigmoid, MidpointSupply: decimal.NewFromInt(10)},
		{Type: TypeCustom},
		{Type: Type(99)},
	} {
		err := p.Validate()
		assert.Error(t, err, "params %+v", p)
	}
}

func TestParseType(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Type
	}{
		{"fixed", TypeFixed},
		{"linear", TypeLinear},
		{"exponential", TypeExponential},
		{"sigmoid", TypeSigmoid},
		{"custom", TypeCustom},
	} {
		got, err := ParseType(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.in, got.String())
	}

	_, err := ParseType("parabolic")
	require.ErrorIs(t, err, ErrInvalidCurve)
}
