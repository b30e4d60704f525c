// Package pda derives the program-owned addresses the auction-house program
// expects as instruction inputs. Seed order is part of the wire contract:
// reordering any tuple silently yields a different, non-interoperable address.
package pda

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	prefixAuctionHouse = "auction_house"
	prefixFeePayer     = "fee_payer"
	prefixTreasury     = "treasury"
	prefixSigner       = "signer"
	prefixMetadata     = "metadata"
)

// ErrDerivationExhausted means no bump byte pushed the derivation off the
// ed25519 curve. It indicates a programming or protocol-version mismatch and
// must never be retried.
var ErrDerivationExhausted = errors.New("program address derivation exhausted")

// TradeStateSeeds is the full seven-field seed tuple identifying one standing
// order. Two orders collide only if every field matches exactly.
type TradeStateSeeds struct {
	Wallet       solana.PublicKey
	AuctionHouse solana.PublicKey
	TokenAccount solana.PublicKey
	TreasuryMint solana.PublicKey
	TokenMint    solana.PublicKey
	Price        uint64
	Size         uint64
}

// DeriveAuctionHouse returns the house PDA for a creator and treasury mint.
func DeriveAuctionHouse(programID, creator, treasuryMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive(programID, [][]byte{
		[]byte(prefixAuctionHouse),
		creator.Bytes(),
		treasuryMint.Bytes(),
	})
}

// DeriveFeeAccount returns the house fee-escrow PDA.
func DeriveFeeAccount(programID, auctionHouse solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive(programID, [][]byte{
		[]byte(prefixAuctionHouse),
		auctionHouse.Bytes(),
		[]byte(prefixFeePayer),
	})
}

// DeriveTreasury returns the house treasury PDA.
func DeriveTreasury(programID, auctionHouse solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive(programID, [][]byte{
		[]byte(prefixAuctionHouse),
		auctionHouse.Bytes(),
		[]byte(prefixTreasury),
	})
}

// DeriveProgramAsSigner returns the PDA the program signs transfers with.
func DeriveProgramAsSigner(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive(programID, [][]byte{
		[]byte(prefixAuctionHouse),
		[]byte(prefixSigner),
	})
}

// DeriveBuyerEscrow returns the escrow PDA holding a buyer's locked funds.
// One per (house, wallet) pair, reused across all of the buyer's offers.
func DeriveBuyerEscrow(programID, auctionHouse, wallet solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive(programID, [][]byte{
		[]byte(prefixAuctionHouse),
		auctionHouse.Bytes(),
		wallet.Bytes(),
	})
}

// DeriveTradeState returns the trade-state PDA that is the order itself.
func DeriveTradeState(programID solana.PublicKey, seeds TradeStateSeeds) (solana.PublicKey, uint8, error) {
	return derive(programID, [][]byte{
		[]byte(prefixAuctionHouse),
		seeds.Wallet.Bytes(),
		seeds.AuctionHouse.Bytes(),
		seeds.TokenAccount.Bytes(),
		seeds.TreasuryMint.Bytes(),
		seeds.TokenMint.Bytes(),
		u64LE(seeds.Price),
		u64LE(seeds.Size),
	})
}

// DeriveFreeTradeState is DeriveTradeState with the price forced to zero,
// the price-agnostic cancellation handle used after a sale clears.
func DeriveFreeTradeState(programID solana.PublicKey, seeds TradeStateSeeds) (solana.PublicKey, uint8, error) {
	seeds.Price = 0
	return DeriveTradeState(programID, seeds)
}

// DeriveMetadata returns the token-metadata PDA for a mint under the given
// metadata program.
func DeriveMetadata(metadataProgramID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return derive(metadataProgramID, [][]byte{
		[]byte(prefixMetadata),
		metadataProgramID.Bytes(),
		mint.Bytes(),
	})
}

func derive(programID solana.PublicKey, seeds [][]byte) (solana.PublicKey, uint8, error) {
	key, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: program %s: %v", ErrDerivationExhausted, programID, err)
	}
	return key, bump, nil
}

func u64LE(value uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return buf
}
