// Package auctionhouse encodes auction-house program instructions and decodes
// its accounts. Account orders and argument layouts are part of the program's
// wire contract; builders take the program id explicitly so no package state
// has to be mutated per cluster.
package auctionhouse

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

var (
	createAuctionHouseDiscriminator = instructionDiscriminator("create_auction_house")
	sellDiscriminator               = instructionDiscriminator("sell")
	buyDiscriminator                = instructionDiscriminator("buy")
	executeSaleDiscriminator        = instructionDiscriminator("execute_sale")
	cancelDiscriminator             = instructionDiscriminator("cancel")
)

type CreateAuctionHouseArgs struct {
	Bump                 uint8
	FeePayerBump         uint8
	TreasuryBump         uint8
	SellerFeeBasisPoints uint16
	RequiresSignOff      bool
	CanChangeSalePrice   bool
}

type CreateAuctionHouseAccounts struct {
	TreasuryMint                       solana.PublicKey
	Payer                              solana.PublicKey
	Authority                          solana.PublicKey
	FeeWithdrawalDestination           solana.PublicKey
	TreasuryWithdrawalDestination      solana.PublicKey
	TreasuryWithdrawalDestinationOwner solana.PublicKey
	AuctionHouse                       solana.PublicKey
	AuctionHouseFeeAccount             solana.PublicKey
	AuctionHouseTreasury               solana.PublicKey
}

func NewCreateAuctionHouseInstruction(programID solana.PublicKey, accounts CreateAuctionHouseAccounts, args CreateAuctionHouseArgs) solana.Instruction {
	data := newInstructionData(createAuctionHouseDiscriminator)
	data = append(data, args.Bump, args.FeePayerBump, args.TreasuryBump)
	data = appendU16(data, args.SellerFeeBasisPoints)
	data = appendBool(data, args.RequiresSignOff)
	data = appendBool(data, args.CanChangeSalePrice)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.TreasuryMint, false, false),
		solana.NewAccountMeta(accounts.Payer, true, true),
		solana.NewAccountMeta(accounts.Authority, false, false),
		solana.NewAccountMeta(accounts.FeeWithdrawalDestination, true, false),
		solana.NewAccountMeta(accounts.TreasuryWithdrawalDestination, true, false),
		solana.NewAccountMeta(accounts.TreasuryWithdrawalDestinationOwner, false, false),
		solana.NewAccountMeta(accounts.AuctionHouse, true, false),
		solana.NewAccountMeta(accounts.AuctionHouseFeeAccount, true, false),
		solana.NewAccountMeta(accounts.AuctionHouseTreasury, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}

	return solana.NewInstruction(programID, metas, data)
}

type SellArgs struct {
	TradeStateBump      uint8
	FreeTradeStateBump  uint8
	ProgramAsSignerBump uint8
	BuyerPrice          uint64
	TokenSize           uint64
}

type SellAccounts struct {
	Wallet                 solana.PublicKey
	TokenAccount           solana.PublicKey
	Metadata               solana.PublicKey
	Authority              solana.PublicKey
	AuctionHouse           solana.PublicKey
	AuctionHouseFeeAccount solana.PublicKey
	SellerTradeState       solana.PublicKey
	FreeSellerTradeState   solana.PublicKey
	ProgramAsSigner        solana.PublicKey
}

func NewSellInstruction(programID solana.PublicKey, accounts SellAccounts, args SellArgs) solana.Instruction {
	data := newInstructionData(sellDiscriminator)
	data = append(data, args.TradeStateBump, args.FreeTradeStateBump, args.ProgramAsSignerBump)
	data = appendU64(data, args.BuyerPrice)
	data = appendU64(data, args.TokenSize)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Wallet, true, true),
		solana.NewAccountMeta(accounts.TokenAccount, true, false),
		solana.NewAccountMeta(accounts.Metadata, false, false),
		solana.NewAccountMeta(accounts.Authority, false, false),
		solana.NewAccountMeta(accounts.AuctionHouse, false, false),
		solana.NewAccountMeta(accounts.AuctionHouseFeeAccount, true, false),
		solana.NewAccountMeta(accounts.SellerTradeState, true, false),
		solana.NewAccountMeta(accounts.FreeSellerTradeState, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(accounts.ProgramAsSigner, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}

	return solana.NewInstruction(programID, metas, data)
}

type BuyArgs struct {
	TradeStateBump    uint8
	EscrowPaymentBump uint8
	BuyerPrice        uint64
	TokenSize         uint64
}

type BuyAccounts struct {
	Wallet            solana.PublicKey
	PaymentAccount    solana.PublicKey
	TransferAuthority solana.PublicKey
	// TransferAuthoritySigns is set when payment is an SPL token and an
	// ephemeral delegate co-signs the approve/buy/revoke bracket.
	TransferAuthoritySigns bool
	TreasuryMint           solana.PublicKey
	TokenAccount           solana.PublicKey
	Metadata               solana.PublicKey
	Authority              solana.PublicKey
	EscrowPaymentAccount   solana.PublicKey
	AuctionHouse           solana.PublicKey
	AuctionHouseFeeAccount solana.PublicKey
	BuyerTradeState        solana.PublicKey
}

func NewBuyInstruction(programID solana.PublicKey, accounts BuyAccounts, args BuyArgs) solana.Instruction {
	data := newInstructionData(buyDiscriminator)
	data = append(data, args.TradeStateBump, args.EscrowPaymentBump)
	data = appendU64(data, args.BuyerPrice)
	data = appendU64(data, args.TokenSize)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Wallet, false, true),
		solana.NewAccountMeta(accounts.PaymentAccount, true, false),
		solana.NewAccountMeta(accounts.TransferAuthority, false, accounts.TransferAuthoritySigns),
		solana.NewAccountMeta(accounts.TreasuryMint, false, false),
		solana.NewAccountMeta(accounts.TokenAccount, false, false),
		solana.NewAccountMeta(accounts.Metadata, false, false),
		solana.NewAccountMeta(accounts.Authority, false, false),
		solana.NewAccountMeta(accounts.EscrowPaymentAccount, true, false),
		solana.NewAccountMeta(accounts.AuctionHouse, false, false),
		solana.NewAccountMeta(accounts.AuctionHouseFeeAccount, true, false),
		solana.NewAccountMeta(accounts.BuyerTradeState, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}

	return solana.NewInstruction(programID, metas, data)
}

type ExecuteSaleArgs struct {
	EscrowPaymentBump    uint8
	FreeTradeStateBump   uint8
	ProgramAsSignerBump  uint8
	SellerTradeStateBump uint8
	BuyerPrice           uint64
	TokenSize            uint64
}

type ExecuteSaleAccounts struct {
	Buyer                       solana.PublicKey
	Seller                      solana.PublicKey
	TokenAccount                solana.PublicKey
	TokenMint                   solana.PublicKey
	Metadata                    solana.PublicKey
	TreasuryMint                solana.PublicKey
	EscrowPaymentAccount        solana.PublicKey
	SellerPaymentReceiptAccount solana.PublicKey
	BuyerReceiptTokenAccount    solana.PublicKey
	Authority                   solana.PublicKey
	AuctionHouse                solana.PublicKey
	AuctionHouseFeeAccount      solana.PublicKey
	AuctionHouseTreasury        solana.PublicKey
	BuyerTradeState             solana.PublicKey
	SellerTradeState            solana.PublicKey
	FreeTradeState              solana.PublicKey
	ProgramAsSigner             solana.PublicKey
}

// NewExecuteSaleInstruction builds the settle instruction. Royalty creators go
// last as writable, non-signer remaining accounts in metadata order.
func NewExecuteSaleInstruction(programID solana.PublicKey, accounts ExecuteSaleAccounts, args ExecuteSaleArgs, creatorAccounts []solana.PublicKey) solana.Instruction {
	data := newInstructionData(executeSaleDiscriminator)
	data = append(data, args.EscrowPaymentBump, args.FreeTradeStateBump, args.ProgramAsSignerBump, args.SellerTradeStateBump)
	data = appendU64(data, args.BuyerPrice)
	data = appendU64(data, args.TokenSize)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Buyer, true, false),
		solana.NewAccountMeta(accounts.Seller, true, false),
		solana.NewAccountMeta(accounts.TokenAccount, true, false),
		solana.NewAccountMeta(accounts.TokenMint, false, false),
		solana.NewAccountMeta(accounts.Metadata, false, false),
		solana.NewAccountMeta(accounts.TreasuryMint, false, false),
		solana.NewAccountMeta(accounts.EscrowPaymentAccount, true, false),
		solana.NewAccountMeta(accounts.SellerPaymentReceiptAccount, true, false),
		solana.NewAccountMeta(accounts.BuyerReceiptTokenAccount, true, false),
		solana.NewAccountMeta(accounts.Authority, false, false),
		solana.NewAccountMeta(accounts.AuctionHouse, false, false),
		solana.NewAccountMeta(accounts.AuctionHouseFeeAccount, true, false),
		solana.NewAccountMeta(accounts.AuctionHouseTreasury, true, false),
		solana.NewAccountMeta(accounts.BuyerTradeState, true, false),
		solana.NewAccountMeta(accounts.SellerTradeState, true, false),
		solana.NewAccountMeta(accounts.FreeTradeState, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(accounts.ProgramAsSigner, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	for _, creator := range creatorAccounts {
		metas = append(metas, solana.NewAccountMeta(creator, true, false))
	}

	return solana.NewInstruction(programID, metas, data)
}

type CancelArgs struct {
	BuyerPrice uint64
	TokenSize  uint64
}

type CancelAccounts struct {
	Wallet                 solana.PublicKey
	TokenAccount           solana.PublicKey
	TokenMint              solana.PublicKey
	Authority              solana.PublicKey
	AuctionHouse           solana.PublicKey
	AuctionHouseFeeAccount solana.PublicKey
	TradeState             solana.PublicKey
}

func NewCancelInstruction(programID solana.PublicKey, accounts CancelAccounts, args CancelArgs) solana.Instruction {
	data := newInstructionData(cancelDiscriminator)
	data = appendU64(data, args.BuyerPrice)
	data = appendU64(data, args.TokenSize)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Wallet, true, true),
		solana.NewAccountMeta(accounts.TokenAccount, true, false),
		solana.NewAccountMeta(accounts.TokenMint, false, false),
		solana.NewAccountMeta(accounts.Authority, false, false),
		solana.NewAccountMeta(accounts.AuctionHouse, false, false),
		solana.NewAccountMeta(accounts.AuctionHouseFeeAccount, true, false),
		solana.NewAccountMeta(accounts.TradeState, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(programID, metas, data)
}

func newInstructionData(disc [8]byte) []byte {
	data := make([]byte, 0, 8+32)
	return append(data, disc[:]...)
}

func appendU64(data []byte, value uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return append(data, buf...)
}

func appendU16(data []byte, value uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return append(data, buf...)
}

func appendBool(data []byte, value bool) []byte {
	if value {
		return append(data, 1)
	}
	return append(data, 0)
}
