package auctionhouse

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var auctionHouseAccountDiscriminator = accountDiscriminator("AuctionHouse")

// AuctionHouse mirrors the on-chain house configuration record. Field order
// matches the program's account layout; do not reorder.
type AuctionHouse struct {
	AuctionHouseFeeAccount        solana.PublicKey
	AuctionHouseTreasury          solana.PublicKey
	TreasuryWithdrawalDestination solana.PublicKey
	FeeWithdrawalDestination      solana.PublicKey
	TreasuryMint                  solana.PublicKey
	Authority                     solana.PublicKey
	Creator                       solana.PublicKey
	Bump                          uint8
	TreasuryBump                  uint8
	FeePayerBump                  uint8
	SellerFeeBasisPoints          uint16
	RequiresSignOff               bool
	CanChangeSalePrice            bool
	EscrowPaymentBump             uint8
	HasAuctioneer                 bool
	AuctioneerPdaBump             uint8
}

// DecodeAuctionHouse parses raw account data into an AuctionHouse record,
// verifying the anchor account discriminator first.
func DecodeAuctionHouse(data []byte) (*AuctionHouse, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("auction house account data too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], auctionHouseAccountDiscriminator[:]) {
		return nil, fmt.Errorf("auction house account discriminator mismatch")
	}

	var house AuctionHouse
	if err := bin.NewBorshDecoder(data[8:]).Decode(&house); err != nil {
		return nil, fmt.Errorf("decode auction house account: %w", err)
	}
	return &house, nil
}
