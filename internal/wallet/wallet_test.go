package wallet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solhaus/marketplace/internal/broadcast"
)

func writeKeygenFile(t *testing.T, key solana.PrivateKey) string {
	t.Helper()
	parts := make([]string, len(key))
	for i, b := range key {
		parts[i] = fmt.Sprintf("%d", b)
	}
	path := filepath.Join(t.TempDir(), "id.json")
	content := "[" + strings.Join(parts, ",") + "]"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write keygen file: %v", err)
	}
	return path
}

func TestLoadKeygenFile(t *testing.T) {
	want := solana.NewWallet().PrivateKey
	path := writeKeygenFile(t, want)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load keypair: %v", err)
	}
	if !got.PublicKey().Equals(want.PublicKey()) {
		t.Errorf("loaded key %s, want %s", got.PublicKey(), want.PublicKey())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing keypair file")
	}
}

type fakeFunding struct {
	signature solana.Signature
	requests  int
}

func (f *fakeFunding) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error) {
	f.requests++
	return f.signature, nil
}

func (f *fakeFunding) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: 1_000_000}, nil
}

func (f *fakeFunding) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	return nil, rpc.ErrNotFound
}

type fakeConfirmer struct {
	confirmed solana.Signature
}

func (f *fakeConfirmer) Confirm(ctx context.Context, signature solana.Signature) (*broadcast.Receipt, error) {
	f.confirmed = signature
	return &broadcast.Receipt{Signature: signature, Slot: 5}, nil
}

func TestAirdropConfirmsGrant(t *testing.T) {
	funding := &fakeFunding{signature: solana.Signature{7}}
	confirmer := &fakeConfirmer{}

	receipt, err := Airdrop(context.Background(), funding, confirmer, solana.NewWallet().PublicKey(), 1_000_000_000, rpc.CommitmentConfirmed)
	if err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	if funding.requests != 1 {
		t.Errorf("expected one airdrop request, got %d", funding.requests)
	}
	if confirmer.confirmed != funding.signature {
		t.Errorf("confirmed %s, want %s", confirmer.confirmed, funding.signature)
	}
	if receipt.Slot != 5 {
		t.Errorf("receipt slot %d, want 5", receipt.Slot)
	}
}

func TestTokenBalanceMissingAccountReadsZero(t *testing.T) {
	balance, err := TokenBalance(context.Background(), &fakeFunding{}, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance != "0" {
		t.Errorf("balance %q, want \"0\"", balance)
	}
}
