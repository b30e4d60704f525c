package auctionhouse

import (
	"bytes"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var testProgramID = solana.MustPublicKeyFromBase58("Er4qqGJpN9CkQWeUp1P87aWYzkCqd4NbbKi8vtoNfPUJ")

func TestDecodeAuctionHouse(t *testing.T) {
	want := AuctionHouse{
		AuctionHouseFeeAccount:        solana.NewWallet().PublicKey(),
		AuctionHouseTreasury:          solana.NewWallet().PublicKey(),
		TreasuryWithdrawalDestination: solana.NewWallet().PublicKey(),
		FeeWithdrawalDestination:      solana.NewWallet().PublicKey(),
		TreasuryMint:                  solana.SolMint,
		Authority:                     solana.NewWallet().PublicKey(),
		Creator:                       solana.NewWallet().PublicKey(),
		Bump:                          254,
		TreasuryBump:                  253,
		FeePayerBump:                  252,
		SellerFeeBasisPoints:          250,
		RequiresSignOff:               true,
		CanChangeSalePrice:            false,
	}

	var body bytes.Buffer
	if err := bin.NewBorshEncoder(&body).Encode(want); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	data := append(auctionHouseAccountDiscriminator[:], body.Bytes()...)

	got, err := DecodeAuctionHouse(data)
	if err != nil {
		t.Fatalf("decode auction house: %v", err)
	}
	if *got != want {
		t.Errorf("decoded house mismatch:\n got %+v\nwant %+v", *got, want)
	}
}

func TestDecodeAuctionHouseRejectsWrongDiscriminator(t *testing.T) {
	data := make([]byte, 200)
	if _, err := DecodeAuctionHouse(data); err == nil {
		t.Fatal("expected discriminator mismatch error")
	}
	if _, err := DecodeAuctionHouse(data[:4]); err == nil {
		t.Fatal("expected short-data error")
	}
}

func TestSellInstructionLayout(t *testing.T) {
	accounts := SellAccounts{
		Wallet:                 solana.NewWallet().PublicKey(),
		TokenAccount:           solana.NewWallet().PublicKey(),
		Metadata:               solana.NewWallet().PublicKey(),
		Authority:              solana.NewWallet().PublicKey(),
		AuctionHouse:           solana.NewWallet().PublicKey(),
		AuctionHouseFeeAccount: solana.NewWallet().PublicKey(),
		SellerTradeState:       solana.NewWallet().PublicKey(),
		FreeSellerTradeState:   solana.NewWallet().PublicKey(),
		ProgramAsSigner:        solana.NewWallet().PublicKey(),
	}
	args := SellArgs{
		TradeStateBump:      255,
		FreeTradeStateBump:  254,
		ProgramAsSignerBump: 253,
		BuyerPrice:          1_500_000_000,
		TokenSize:           1,
	}

	ix := NewSellInstruction(testProgramID, accounts, args)

	if !ix.ProgramID().Equals(testProgramID) {
		t.Errorf("program id %s, want %s", ix.ProgramID(), testProgramID)
	}

	wantOrder := []solana.PublicKey{
		accounts.Wallet,
		accounts.TokenAccount,
		accounts.Metadata,
		accounts.Authority,
		accounts.AuctionHouse,
		accounts.AuctionHouseFeeAccount,
		accounts.SellerTradeState,
		accounts.FreeSellerTradeState,
		solana.TokenProgramID,
		solana.SystemProgramID,
		accounts.ProgramAsSigner,
		solana.SysVarRentPubkey,
	}
	metas := ix.Accounts()
	if len(metas) != len(wantOrder) {
		t.Fatalf("account count %d, want %d", len(metas), len(wantOrder))
	}
	for i, meta := range metas {
		if !meta.PublicKey.Equals(wantOrder[i]) {
			t.Errorf("account %d is %s, want %s", i, meta.PublicKey, wantOrder[i])
		}
	}
	if !metas[0].IsSigner || !metas[0].IsWritable {
		t.Error("wallet must be a writable signer")
	}
	for _, i := range []int{1, 5, 6, 7} {
		if !metas[i].IsWritable {
			t.Errorf("account %d (%s) must be writable", i, metas[i].PublicKey)
		}
	}

	data, err := ix.Data()
	if err != nil {
		t.Fatalf("instruction data: %v", err)
	}
	if !bytes.Equal(data[:8], sellDiscriminator[:]) {
		t.Error("sell discriminator mismatch")
	}
	if data[8] != args.TradeStateBump || data[9] != args.FreeTradeStateBump || data[10] != args.ProgramAsSignerBump {
		t.Error("bump bytes out of order")
	}
	if price := binary.LittleEndian.Uint64(data[11:19]); price != args.BuyerPrice {
		t.Errorf("encoded price %d, want %d", price, args.BuyerPrice)
	}
	if size := binary.LittleEndian.Uint64(data[19:27]); size != args.TokenSize {
		t.Errorf("encoded size %d, want %d", size, args.TokenSize)
	}
}

func TestExecuteSaleAppendsCreators(t *testing.T) {
	accounts := ExecuteSaleAccounts{
		Buyer:  solana.NewWallet().PublicKey(),
		Seller: solana.NewWallet().PublicKey(),
	}
	creators := []solana.PublicKey{
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
		solana.NewWallet().PublicKey(),
	}

	ix := NewExecuteSaleInstruction(testProgramID, accounts, ExecuteSaleArgs{}, creators)

	metas := ix.Accounts()
	base := len(metas) - len(creators)
	for i, creator := range creators {
		meta := metas[base+i]
		if !meta.PublicKey.Equals(creator) {
			t.Errorf("creator %d is %s, want %s", i, meta.PublicKey, creator)
		}
		if !meta.IsWritable || meta.IsSigner {
			t.Errorf("creator %d must be writable and not a signer", i)
		}
	}
}

func TestBuyTransferAuthoritySignerFlag(t *testing.T) {
	native := NewBuyInstruction(testProgramID, BuyAccounts{TransferAuthority: solana.SystemProgramID}, BuyArgs{})
	if native.Accounts()[2].IsSigner {
		t.Error("native buy must not mark the transfer authority as signer")
	}

	delegate := solana.NewWallet().PublicKey()
	spl := NewBuyInstruction(testProgramID, BuyAccounts{TransferAuthority: delegate, TransferAuthoritySigns: true}, BuyArgs{})
	if !spl.Accounts()[2].IsSigner {
		t.Error("SPL buy must mark the delegate transfer authority as signer")
	}
}
