package curve

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurve = errors.New("invalid curve")
	ErrOverflow     = errors.New("curve price overflow")
	ErrFormula      = errors.New("formula error")
)

type Type uint8

const (
	TypeFixed Type = iota
	TypeLinear
	TypeExponential
	TypeSigmoid
	TypeCustom
)

func (t Type) String() string {
	switch t {
	case TypeFixed:
		return "fixed"
	case TypeLinear:
		return "linear"
	case TypeExponential:
		return "exponential"
	case TypeSigmoid:
		return "sigmoid"
	case TypeCustom:
		return "custom"
	}
	return fmt.Sprintf("curve(%d)", uint8(t))
}

func ParseType(s string) (Type, error) {
	switch s {
	case "fixed":
		return TypeFixed, nil
	case "linear":
		return TypeLinear, nil
	case "exponential":
		return TypeExponential, nil
	case "sigmoid":
		return TypeSigmoid, nil
	case "custom":
		return TypeCustom, nil
	}
	return 0, fmt.Errorf("%w: unknown curve type %q", ErrInvalidCurve, s)
}

// Params holds the bonding curve configuration for one ICO. The variant
// tag is fixed at creation time; only the fields of the active variant
// may be set.
type Params struct {
	Type Type

	// fixed
	FixedPrice decimal.Decimal

	// linear, exponential and custom
	InitialPrice decimal.Decimal

	// linear
	Slope decimal.Decimal

	// exponential
	GrowthRate decimal.Decimal

	// sigmoid
	MidpointSupply decimal.Decimal
	Steepness      decimal.Decimal
	MaxPrice       decimal.Decimal

	// custom
	Formula string
}

// Validate checks that exactly the fields required by the active variant
// are populated and positive.
func (p Params) Validate() error {
	switch p.Type {
	case TypeFixed:
		if !p.FixedPrice.IsPositive() {
			return fmt.Errorf("%w: fixed curve requires a positive fixed_price", ErrInvalidCurve)
		}
	case TypeLinear:
		if !p.InitialPrice.IsPositive() || !p.Slope.IsPositive() {
			return fmt.Errorf("%w: linear curve requires positive initial_price and slope", ErrInvalidCurve)
		}
	case TypeExponential:
		if !p.InitialPrice.IsPositive() || !p.GrowthRate.IsPositive() {
			return fmt.Errorf("%w: exponential curve requires positive initial_price and growth_rate", ErrInvalidCurve)
		}
	case TypeSigmoid:
		if !p.MidpointSupply.IsPositive() || !p.Steepness.IsPositive() || !p.MaxPrice.IsPositive() {
			return fmt.Errorf("%w: sigmoid curve requires positive midpoint_supply, steepness and max_price", ErrInvalidCurve)
		}
	case TypeCustom:
		if p.Formula == "" {
			return fmt.Errorf("%w: custom curve requires a formula", ErrInvalidCurve)
		}
		if _, err := Eval(p.Formula, map[string]float64{
			"initial_price":       1,
			"slope":               1,
			"growth_rate":         1,
			"total_tokens_minted": 0,
		}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown curve type %d", ErrInvalidCurve, uint8(p.Type))
	}
	return nil
}

// maxPriceLn caps ln(price) for the exponential curve. Anything beyond
// it would never represent a meaningful lamport price.
const maxPriceLn = 69.0 // ln(1e30)

// expClamp keeps the sigmoid exponent inside float64 range so extreme
// supplies saturate toward 0 or max_price instead of producing ±Inf.
const expClamp = 700.0

// PriceAt returns the unit price in lamports at the given cumulative
// minted supply. It is pure and deterministic; a computed price that is
// zero or negative fails with ErrInvalidCurve.
func PriceAt(p Params, minted uint64) (decimal.Decimal, error) {
	var price decimal.Decimal

	switch p.Type {
	case TypeFixed:
		price = p.FixedPrice

	case TypeLinear:
		price = p.InitialPrice.Add(p.Slope.Mul(decimal.NewFromUint64(minted)))

	case TypeExponential:
		initial, _ := p.InitialPrice.Float64()
		growth, _ := p.GrowthRate.Float64()
		ln := math.Log(initial) + float64(minted)*math.Log1p(growth)
		if ln > maxPriceLn {
			return decimal.Decimal{}, fmt.Errorf("%w: exponential curve at supply %d", ErrOverflow, minted)
		}
		price = decimal.NewFromFloat(initial * math.Pow(1+growth, float64(minted)))

	case TypeSigmoid:
		mid, _ := p.MidpointSupply.Float64()
		steep, _ := p.Steepness.Float64()
		arg := -steep * (float64(minted) - mid)
		if arg > expClamp {
			arg = expClamp
		} else if arg < -expClamp {
			arg = -expClamp
		}
		denom := decimal.NewFromFloat(1 + math.Exp(arg))
		price = p.MaxPrice.Div(denom)

	case TypeCustom:
		initial, _ := p.InitialPrice.Float64()
		slope, _ := p.Slope.Float64()
		growth, _ := p.GrowthRate.Float64()
		v, err := Eval(p.Formula, map[string]float64{
			"initial_price":       initial,
			"slope":               slope,
			"growth_rate":         growth,
			"total_tokens_minted": float64(minted),
		})
		if err != nil {
			return decimal.Decimal{}, err
		}
		price = decimal.NewFromFloat(v)

	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unknown curve type %d", ErrInvalidCurve, uint8(p.Type))
	}

	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s curve produced non-positive price %s at supply %d",
			ErrInvalidCurve, p.Type, price, minted)
	}
	return price, nil
}
