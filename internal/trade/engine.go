// Package trade implements the client side of the auction-house protocol:
// listing, offering, settlement, and cancellation, plus the read-only house
// and escrow views. All derivations happen locally; the ledger is consulted
// only for account state.
package trade

import (
	"context"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solhaus/marketplace/internal/broadcast"
)

// DefaultProgramID is the auction-house program deployed on mainnet and the
// public test clusters.
var DefaultProgramID = solana.MustPublicKeyFromBase58("Er4qqGJpN9CkQWeUp1P87aWYzkCqd4NbbKi8vtoNfPUJ")

// DefaultMetadataProgramID is the token-metadata program.
var DefaultMetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

const nativeDecimals = 9

// LedgerClient is the read-only RPC surface the engine needs. *rpc.Client
// satisfies it.
type LedgerClient interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetTokenSupply(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
	GetTokenLargestAccounts(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenLargestAccountsResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Caster submits signed instruction sets and waits for confirmation.
// *broadcast.Broadcaster satisfies it.
type Caster interface {
	Broadcast(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey, signers []solana.PrivateKey) (*broadcast.Receipt, error)
}

// Config selects the programs and read commitment the engine works against.
type Config struct {
	ProgramID         solana.PublicKey
	MetadataProgramID solana.PublicKey
	Commitment        rpc.CommitmentType
}

type Engine struct {
	client LedgerClient
	caster Caster
	cfg    Config
	log    *slog.Logger
}

func NewEngine(client LedgerClient, caster Caster, cfg Config, log *slog.Logger) *Engine {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = DefaultProgramID
	}
	if cfg.MetadataProgramID.IsZero() {
		cfg.MetadataProgramID = DefaultMetadataProgramID
	}
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	return &Engine{
		client: client,
		caster: caster,
		cfg:    cfg,
		log:    log,
	}
}

// TradeResult reports a broadcast order mutation together with the trade
// state it created or consumed and the native amounts actually encoded.
type TradeResult struct {
	Receipt    *broadcast.Receipt
	TradeState solana.PublicKey
	Price      uint64
	Size       uint64
}
