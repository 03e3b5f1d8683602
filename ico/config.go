package ico

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/icolab/solana-ico-go/curve"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenConfig is the token section of an ICO config document.
type TokenConfig struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply uint64 `json:"total_supply"`
	Decimals    uint8  `json:"decimals"`
}

// IcoConfig is the sale section of an ICO config document. Curve
// fields are optional; which ones must be set depends on curve_type.
type IcoConfig struct {
	IcoID          string          `json:"ico_id"`
	StartTime      int64           `json:"start_time"`
	EndTime        int64           `json:"end_time"`
	CurveType      string          `json:"curve_type"`
	FixedPrice     decimal.Decimal `json:"fixed_price,omitempty"`
	InitialPrice   decimal.Decimal `json:"initial_price,omitempty"`
	Slope          decimal.Decimal `json:"slope,omitempty"`
	GrowthRate     decimal.Decimal `json:"growth_rate,omitempty"`
	MidpointSupply decimal.Decimal `json:"midpoint_supply,omitempty"`
	Steepness      decimal.Decimal `json:"steepness,omitempty"`
	MaxPrice       decimal.Decimal `json:"max_price,omitempty"`
	CustomFormula  string          `json:"custom_formula,omitempty"`
	SellFee        decimal.Decimal `json:"sell_fee_percentage"`
}

// ConfigFile is one <ico_id>.json document.
type ConfigFile struct {
	Token TokenConfig `json:"token"`
	Ico   IcoConfig   `json:"ico"`
}

// ToICO converts a config document into a validated ICO.
func (f ConfigFile) ToICO() (ICO, error) {
	ct, err := curve.ParseType(f.Ico.CurveType)
	if err != nil {
		return ICO{}, fmt.Errorf("%w: ico %q: %s", ErrInvalidConfig, f.Ico.IcoID, err)
	}
	cfg := ICO{
		ID: f.Ico.IcoID,
		Token: TokenSpec{
			Name:        f.Token.Name,
			Symbol:      f.Token.Symbol,
			TotalSupply: f.Token.TotalSupply,
			Decimals:    f.Token.Decimals,
		},
		Curve: curve.Params{
			Type:           ct,
			FixedPrice:     f.Ico.FixedPrice,
			InitialPrice:   f.Ico.InitialPrice,
			Slope:          f.Ico.Slope,
			GrowthRate:     f.Ico.GrowthRate,
			MidpointSupply: f.Ico.MidpointSupply,
			Steepness:      f.Ico.Steepness,
			MaxPrice:       f.Ico.MaxPrice,
			Formula:        f.Ico.CustomFormula,
		},
		StartTime: f.Ico.StartTime,
		EndTime:   f.Ico.EndTime,
		SellFee:   f.Ico.SellFee,
	}
	if err := cfg.validate(); err != nil {
		return ICO{}, err
	}
	return cfg, nil
}

func configFromICO(cfg ICO) ConfigFile {
	return ConfigFile{
		Token: TokenConfig{
			Name:        cfg.Token.Name,
			Symbol:      cfg.Token.Symbol,
			TotalSupply: cfg.Token.TotalSupply,
			Decimals:    cfg.Token.Decimals,
		},
		Ico: IcoConfig{
			IcoID:          cfg.ID,
			StartTime:      cfg.StartTime,
			EndTime:        cfg.EndTime,
			CurveType:      cfg.Curve.Type.String(),
			FixedPrice:     cfg.Curve.FixedPrice,
			InitialPrice:   cfg.Curve.InitialPrice,
			Slope:          cfg.Curve.Slope,
			GrowthRate:     cfg.Curve.GrowthRate,
			MidpointSupply: cfg.Curve.MidpointSupply,
			Steepness:      cfg.Curve.Steepness,
			MaxPrice:       cfg.Curve.MaxPrice,
			CustomFormula:  cfg.Curve.Formula,
			SellFee:        cfg.SellFee,
		},
	}
}

// LoadDir registers every ICO described by a <ico_id>.json file in
// dir. Files whose ico_id does not match the filename, duplicate ids
// and malformed documents are skipped with a warning. Returns the
// number of ICOs loaded.
func (m *Manager) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading ico config dir: %w", err)
	}

	loaded := 0
	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn("skipping unreadable ico config", zap.String("path", path), zap.Error(err))
			continue
		}
		var f ConfigFile
		if err := json.Unmarshal(data, &f); err != nil {
			m.logger.Warn("skipping malformed ico config", zap.String("path", path), zap.Error(err))
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), ".json")
		if f.Ico.IcoID != stem {
			m.logger.Warn("skipping ico config with id mismatch",
				zap.String("path", path),
				zap.String("expected", stem),
				zap.String("found", f.Ico.IcoID),
			)
			continue
		}
		if _, dup := seen[f.Ico.IcoID]; dup {
			m.logger.Warn("skipping duplicate ico id", zap.String("path", path), zap.String("ico", f.Ico.IcoID))
			continue
		}

		cfg, err := f.ToICO()
		if err != nil {
			m.logger.Warn("skipping invalid ico config", zap.String("path", path), zap.Error(err))
			continue
		}
		if err := m.AddOrUpdate(cfg); err != nil {
			m.logger.Warn("skipping ico config", zap.String("path", path), zap.Error(err))
			continue
		}
		seen[f.Ico.IcoID] = struct{}{}
		loaded++
	}

	m.logger.Info("ico configs loaded", zap.String("dir", dir), zap.Int("count", loaded))
	return loaded, nil
}

// Save writes the configuration of a registered ICO to
// dir/<ico_id>.json, creating dir if needed.
func (m *Manager) Save(dir, icoID string) error {
	cfg, err := m.Get(icoID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ico config dir: %w", err)
	}

	data, err := json.MarshalIndent(configFromICO(cfg), "", "    ")
	if err != nil {
		return fmt.Errorf("encoding ico config %q: %w", icoID, err)
	}
	path := filepath.Join(dir, icoID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing ico config %q: %w", icoID, err)
	}
	m.logger.Info("ico config saved", zap.String("ico", icoID), zap.String("path", path))
	return nil
}
