// Package wallet loads signing keys and funds accounts on test clusters.
package wallet

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"

	"github.com/solhaus/marketplace/internal/broadcast"
)

// Load reads a keypair in the standard keygen JSON format. A leading "~" in
// the path expands to the user's home directory.
func Load(path string) (solana.PrivateKey, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolve home directory")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load keypair %s", path)
	}
	return key, nil
}

// FundingClient is the RPC surface needed to request and inspect funds.
// *rpc.Client satisfies it.
type FundingClient interface {
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Confirmer waits for a signature to reach commitment. *broadcast.Broadcaster
// satisfies it.
type Confirmer interface {
	Confirm(ctx context.Context, signature solana.Signature) (*broadcast.Receipt, error)
}

// Airdrop requests test-cluster funds and waits for the grant to confirm.
func Airdrop(ctx context.Context, client FundingClient, confirmer Confirmer, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (*broadcast.Receipt, error) {
	signature, err := client.RequestAirdrop(ctx, account, lamports, commitment)
	if err != nil {
		return nil, errors.Wrapf(err, "request airdrop for %s", account)
	}
	receipt, err := confirmer.Confirm(ctx, signature)
	if err != nil {
		return nil, errors.Wrapf(err, "confirm airdrop %s", signature)
	}
	return receipt, nil
}

// Balance returns the lamport balance of an account.
func Balance(ctx context.Context, client FundingClient, account solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := client.GetBalance(ctx, account, commitment)
	if err != nil {
		return 0, errors.Wrapf(err, "fetch balance of %s", account)
	}
	return result.Value, nil
}

// TokenBalance returns the raw token balance of the owner's associated token
// account for the mint. A missing account reads as zero.
func TokenBalance(ctx context.Context, client FundingClient, owner, mint solana.PublicKey, commitment rpc.CommitmentType) (string, error) {
	account, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return "", errors.Wrapf(err, "derive token account of %s", owner)
	}
	result, err := client.GetTokenAccountBalance(ctx, account, commitment)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return "0", nil
		}
		return "", errors.Wrapf(err, "fetch token balance of %s", account)
	}
	return result.Value.Amount, nil
}
