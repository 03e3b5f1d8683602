package solana

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"
)

// tokenAccountLayout mirrors the on-chain SPL token account record.
type tokenAccountLayout struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	DelegateOption  uint32
	Delegate        solana.PublicKey
	State           uint8
	IsNativeOption  uint32
	IsNative        uint64
	DelegatedAmount uint64
	CloseAuthOption uint32
	CloseAuthority  solana.PublicKey
}

// TokenAccountFor derives the associated token account holding the ICO
// mint for the given wallet.
func (v *Verifier) TokenAccountFor(wallet solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(wallet, v.mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("deriving token account for %s: %w", wallet, err)
	}
	return ata, nil
}

// TokenBalance returns the base-unit balance of a token account by
// decoding its raw account data.
func (v *Verifier) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := v.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: v.commitment,
	})
	if err != nil {
		return 0, fmt.Errorf("fetching token account %s: %w", account, err)
	}
	if res == nil || res.Value == nil {
		return 0, fmt.Errorf("token account %s not found", account)
	}

	var layout tokenAccountLayout
	if err := bin.NewBinDecoder(res.Value.Data.GetBinary()).Decode(&layout); err != nil {
		return 0, fmt.Errorf("decoding token account %s: %w", account, err)
	}
	if !layout.Mint.Equals(v.mint) {
		return 0, fmt.Errorf("token account %s holds mint %s, want %s", account, layout.Mint, v.mint)
	}
	return layout.Amount, nil
}

// HolderBalance sums the wallet's balance of the ICO mint across all
// of its token accounts, using the parsed account representation.
func (v *Verifier) HolderBalance(ctx context.Context, wallet solana.PublicKey) (uint64, error) {
	res, err := v.client.GetTokenAccountsByOwner(ctx, wallet,
		&rpc.GetTokenAccountsConfig{ProgramId: &solana.TokenProgramID},
		&rpc.GetTokenAccountsOpts{
			Commitment: v.commitment,
			Encoding:   solana.EncodingJSONParsed,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("fetching token accounts of %s: %w", wallet, err)
	}

	var total uint64
	for _, acc := range res.Value {
		amount, ok := parsedTokenAmount(acc.Account.Data.GetRawJSON(), v.mint)
		if !ok {
			continue
		}
		total += amount
	}
	return total, nil
}

// parsedTokenAmount extracts the base-unit amount from a jsonParsed
// token account payload, requiring the expected mint.
func parsedTokenAmount(data []byte, mint solana.PublicKey) (uint64, bool) {
	if gjson.GetBytes(data, "parsed.info.mint").String() != mint.String() {
		return 0, false
	}
	amount := gjson.GetBytes(data, "parsed.info.tokenAmount.amount")
	if !amount.Exists() {
		return 0, false
	}
	return amount.Uint(), true
}
