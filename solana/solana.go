// Package solana verifies payments and token returns against the
// chain. It implements the external verifier collaborator consumed by
// the ico ledger: fetch the referenced transaction, check it moved the
// required lamports or token amount into ICO custody, and report the
// counterparty.
package solana

import (
	"errors"

	"github.com/shopspring/decimal"
)

const LamportsPerSOL = 1_000_000_000

var (
	ErrInvalidReference = errors.New("invalid transaction reference")
	ErrTxNotFound       = errors.New("transaction not found")
	ErrTxFailed         = errors.New("transaction failed on-chain")
	ErrNotATransfer     = errors.New("transaction is not a transfer")
	ErrWrongDestination = errors.New("transfer destination is not ico custody")
	ErrInsufficient     = errors.New("transfer amount insufficient")
)

// LamportsToSOL converts base units to whole SOL for display.
func LamportsToSOL(lamports decimal.Decimal) decimal.Decimal {
	return lamports.Div(decimal.NewFromInt(LamportsPerSOL))
}

// SOLToLamports converts whole SOL to base units, truncating any
// fraction below one lamport.
func SOLToLamports(sol decimal.Decimal) decimal.Decimal {
	return sol.Mul(decimal.NewFromInt(LamportsPerSOL)).Truncate(0)
}
