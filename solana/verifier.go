package solana

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// systemTransferIndex is the system program's transfer instruction tag.
const systemTransferIndex = 2

const (
	tokenTransferTag        = 3
	tokenTransferCheckedTag = 12
)

var maxTxVersion uint64 = 0

// Verifier checks payment and token-return references against the
// chain through a Solana RPC node. It is synchronous; the caller owns
// any deadline through ctx.
type Verifier struct {
	client     *rpc.Client
	custody    solana.PublicKey // wallet receiving SOL payments
	mint       solana.PublicKey // token mint sold by the ICO
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

type Option func(*Verifier)

func WithCommitment(c rpc.CommitmentType) Option {
	return func(v *Verifier) { v.commitment = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

func NewVerifier(client *rpc.Client, custody, mint solana.PublicKey, opts ...Option) *Verifier {
	v := &Verifier{
		client:     client,
		custody:    custody,
		mint:       mint,
		commitment: rpc.CommitmentConfirmed,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) fetch(ctx context.Context, reference string) (*solana.Transaction, error) {
	sig, err := solana.SignatureFromBase58(reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidReference, err)
	}

	res, err := v.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     v.commitment,
		MaxSupportedTransactionVersion: &maxTxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrTxNotFound, reference, err)
	}
	if res == nil || res.Transaction == nil {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, reference)
	}
	if res.Meta != nil && res.Meta.Err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTxFailed, reference, res.Meta.Err)
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrTxNotFound, reference, err)
	}
	return tx, nil
}

// VerifyPayment checks that reference is a confirmed system-program
// transfer of at least requiredLamports into ICO custody and returns
// the payer.
func (v *Verifier) VerifyPayment(ctx context.Context, reference string, requiredLamports decimal.Decimal) (solana.PublicKey, error) {
	tx, err := v.fetch(ctx, reference)
	if err != nil {
		return solana.PublicKey{}, err
	}

	from, to, lamports, err := ParseSystemTransfer(tx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !to.Equals(v.custody) {
		return solana.PublicKey{}, fmt.Errorf("%w: expected %s, got %s", ErrWrongDestination, v.custody, to)
	}
	paid := decimal.NewFromUint64(lamports)
	if paid.LessThan(requiredLamports) {
		return solana.PublicKey{}, fmt.Errorf("%w: required %s lamports, received %s",
			ErrInsufficient, requiredLamports, paid)
	}

	v.logger.Info("payment verified",
		zap.String("reference", reference),
		zap.Stringer("payer", from),
		zap.Uint64("lamports", lamports),
	)
	return from, nil
}

// VerifyTokenTransfer checks that reference is a confirmed SPL token
// transfer of at least amount base units of the ICO mint into the
// custody token account and returns the seller.
func (v *Verifier) VerifyTokenTransfer(ctx context.Context, reference string, amount uint64) (solana.PublicKey, error) {
	tx, err := v.fetch(ctx, reference)
	if err != nil {
		return solana.PublicKey{}, err
	}

	transfer, err := ParseTokenTransfer(tx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	custodyATA, _, err := solana.FindAssociatedTokenAddress(v.custody, v.mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("deriving custody token account: %w", err)
	}
	if !transfer.Destination.Equals(custodyATA) {
		return solana.PublicKey{}, fmt.Errorf("%w: expected %s, got %s",
			ErrWrongDestination, custodyATA, transfer.Destination)
	}
	// transfer_checked carries the mint; plain transfer does not
	if !transfer.Mint.IsZero() && !transfer.Mint.Equals(v.mint) {
		return solana.PublicKey{}, fmt.Errorf("%w: wrong mint %s", ErrNotATransfer, transfer.Mint)
	}
	if transfer.Amount < amount {
		return solana.PublicKey{}, fmt.Errorf("%w: required %d base units, received %d",
			ErrInsufficient, amount, transfer.Amount)
	}

	v.logger.Info("token return verified",
		zap.String("reference", reference),
		zap.Stringer("seller", transfer.Owner),
		zap.Uint64("amount", transfer.Amount),
	)
	return transfer.Owner, nil
}

// TokenTransfer is a decoded SPL transfer or transfer_checked
// instruction.
type TokenTransfer struct {
	Source      solana.PublicKey
	Destination solana.PublicKey
	Owner       solana.PublicKey
	Mint        solana.PublicKey // zero for the unchecked variant
	Amount      uint64
}

// ParseSystemTransfer finds the first system-program transfer in tx
// and returns its funding account, recipient and lamports.
func ParseSystemTransfer(tx *solana.Transaction) (from, to solana.PublicKey, lamports uint64, err error) {
	msg := &tx.Message
	for _, ix := range msg.Instructions {
		program, ok := accountAt(msg, ix.ProgramIDIndex)
		if !ok || !program.Equals(solana.SystemProgramID) {
			continue
		}
		var payload struct {
			Instruction uint32
			Lamports    uint64
		}
		if decErr := bin.NewBinDecoder(ix.Data).Decode(&payload); decErr != nil {
			continue
		}
		if payload.Instruction != systemTransferIndex || len(ix.Accounts) < 2 {
			continue
		}
		from, _ = accountAt(msg, ix.Accounts[0])
		to, _ = accountAt(msg, ix.Accounts[1])
		return from, to, payload.Lamports, nil
	}
	return solana.PublicKey{}, solana.PublicKey{}, 0,
		fmt.Errorf("%w: no system transfer instruction", ErrNotATransfer)
}

// ParseTokenTransfer finds the first SPL token transfer or
// transfer_checked instruction in tx.
func ParseTokenTransfer(tx *solana.Transaction) (TokenTransfer, error) {
	msg := &tx.Message
	for _, ix := range msg.Instructions {
		program, ok := accountAt(msg, ix.ProgramIDIndex)
		if !ok || !program.Equals(solana.TokenProgramID) {
			continue
		}
		if len(ix.Data) < 9 {
			continue
		}

		var out TokenTransfer
		switch ix.Data[0] {
		case tokenTransferTag: // source, destination, owner
			if len(ix.Accounts) < 3 {
				continue
			}
			out.Source, _ = accountAt(msg, ix.Accounts[0])
			out.Destination, _ = accountAt(msg, ix.Accounts[1])
			out.Owner, _ = accountAt(msg, ix.Accounts[2])
		case tokenTransferCheckedTag: // source, mint, destination, owner
			if len(ix.Accounts) < 4 {
				continue
			}
			out.Source, _ = accountAt(msg, ix.Accounts[0])
			out.Mint, _ = accountAt(msg, ix.Accounts[1])
			out.Destination, _ = accountAt(msg, ix.Accounts[2])
			out.Owner, _ = accountAt(msg, ix.Accounts[3])
		default:
			continue
		}

		var payload struct {
			Tag    uint8
			Amount uint64
		}
		if err := bin.NewBinDecoder(ix.Data).Decode(&payload); err != nil {
			continue
		}
		out.Amount = payload.Amount
		return out, nil
	}
	return TokenTransfer{}, fmt.Errorf("%w: no token transfer instruction", ErrNotATransfer)
}

func accountAt(msg *solana.Message, idx uint16) (solana.PublicKey, bool) {
	if int(idx) >= len(msg.AccountKeys) {
		return solana.PublicKey{}, false
	}
	return msg.AccountKeys[idx], true
}
