package ico

import "github.com/shopspring/decimal"

// Holder discount tiers by held base units.
var discountTiers = []struct {
	threshold uint64
	rate      decimal.Decimal
}{
	{100_000, decimal.NewFromFloat(0.10)},
	{10_000, decimal.NewFromFloat(0.05)},
	{1_000, decimal.NewFromFloat(0.01)},
}

// Discount returns the discount rate a holder of heldAmount base units
// qualifies for. Pure lookup against a fixed tier table; no state is
// touched beyond checking the ICO exists.
func (m *Manager) Discount(icoID string, heldAmount uint64) (decimal.Decimal, error) {
	if _, err := m.lookup(icoID); err != nil {
		return decimal.Decimal{}, err
	}
	for _, tier := range discountTiers {
		if heldAmount >= tier.threshold {
			return tier.rate, nil
		}
	}
	return decimal.Zero, nil
}
