package ico

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icolab/solana-ico-go/curve"
)

const mainIcoJSON = `{
    "token": {
        "name": "MCP Token",
        "symbol": "MCPT",
        "total_supply": 1000000,
        "decimals": 9
    },
    "ico": {
        "ico_id": "main_ico",
        "start_time": 1000,
        "end_time": 10000,
        "curve_type": "fixed",
        "fixed_price": 10000,
        "sell_fee_percentage": 0.02
    }
}`

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "main_ico.json", mainIcoJSON)
	writeConfig(t, dir, "notes.txt", "ignored")

	m := NewManager(&stubVerifier{}, WithClock(fixedClock(5_000)))
	loaded, err := m.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	cfg, err := m.Get("main_ico")
	require.NoError(t, err)
	assert.Equal(t, "MCPT", cfg.Token.Symbol)
	assert.Equal(t, curve.TypeFixed, cfg.Curve.Type)
	assert.True(t, cfg.Curve.FixedPrice.Equal(decimal.NewFromInt(10_000)))
	assert.True(t, cfg.SellFee.Equal(decimal.NewFromFloat(0.02)))
}

func TestLoadDirSkipsIDMismatch(t *testing.T) {
	dir := t.TempDir()
	// filename stem does not match ico_id inside the document
	writeConfig(t, dir, "other_name.json", mainIcoJSON)

	m := NewManager(&stubVerifier{})
	loaded, err := m.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded)
	assert.False(t, m.Has("main_ico"))
}

func TestLoadDirSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "broken.json", "{not json")
	writeConfig(t, dir, "main_ico.json", mainIcoJSON)

	m := NewManager(&stubVerifier{})
	loaded, err := m.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
}

func TestLoadDirMissing(t *testing.T) {
	m := NewManager(&stubVerifier{})
	_, err := m.LoadDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v := &stubVerifier{payer: solana.NewWallet().PublicKey()}
	m := NewManager(v, WithClock(fixedClock(5_000)))

	cfg := testICO("saved_ico")
	cfg.Curve = curve.Params{
		Type:         curve.TypeLinear,
		InitialPrice: decimal.NewFromInt(100),
		Slope:        decimal.NewFromFloat(0.5),
	}
	require.NoError(t, m.AddOrUpdate(cfg))
	require.NoError(t, m.Save(dir, "saved_ico"))

	reloaded := NewManager(v, WithClock(func() time.Time { return time.Unix(5_000, 0) }))
	loaded, err := reloaded.LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 1, loaded)

	got, err := reloaded.Get("saved_ico")
	require.NoError(t, err)
	assert.Equal(t, cfg.Token, got.Token)
	assert.Equal(t, curve.TypeLinear, got.Curve.Type)
	assert.True(t, got.Curve.InitialPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, got.Curve.Slope.Equal(decimal.NewFromFloat(0.5)))
}

func TestSaveUnknownIco(t *testing.T) {
	m := NewManager(&stubVerifier{})
	assert.ErrorIs(t, m.Save(t.TempDir(), "no_such_ico"), ErrIcoNotFound)
}
