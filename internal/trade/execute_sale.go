package trade

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/solhaus/marketplace/internal/anchor/auctionhouse"
	"github.com/solhaus/marketplace/internal/pda"
)

// ExecuteSaleParams matches a standing listing with a standing offer at the
// agreed price. TokenAccount is optional; it defaults to the seller's
// associated token account for the mint.
type ExecuteSaleParams struct {
	House        solana.PublicKey
	Mint         solana.PublicKey
	Buyer        solana.PublicKey
	Seller       solana.PublicKey
	TokenAccount solana.PublicKey
	Price        decimal.Decimal
	Size         decimal.Decimal
}

// ExecuteSale settles a matched trade: asset to the buyer's token account,
// escrowed funds to the seller, royalties to the metadata creators, fees to
// the house. Both trade states are recomputed locally at the agreed price; a
// mismatch with what was listed or offered is rejected by the ledger.
func (e *Engine) ExecuteSale(ctx context.Context, payer solana.PrivateKey, params ExecuteSaleParams) (*TradeResult, error) {
	h, err := e.loadHouse(ctx, params.House)
	if err != nil {
		return nil, err
	}
	price, size, err := e.nativeAmounts(ctx, h, params.Mint, params.Price, params.Size)
	if err != nil {
		return nil, err
	}

	tokenAccount := params.TokenAccount
	if tokenAccount.IsZero() {
		tokenAccount, _, err = solana.FindAssociatedTokenAddress(params.Seller, params.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive seller token account: %w", err)
		}
	}

	metadata, _, err := pda.DeriveMetadata(e.cfg.MetadataProgramID, params.Mint)
	if err != nil {
		return nil, err
	}
	creators, err := e.metadataCreators(ctx, params.Mint)
	if err != nil {
		return nil, err
	}
	creatorAccounts, err := creatorRemainingAccounts(creators, h)
	if err != nil {
		return nil, err
	}

	escrow, escrowBump, err := pda.DeriveBuyerEscrow(e.cfg.ProgramID, h.Address, params.Buyer)
	if err != nil {
		return nil, err
	}
	programAsSigner, programAsSignerBump, err := pda.DeriveProgramAsSigner(e.cfg.ProgramID)
	if err != nil {
		return nil, err
	}

	sellerSeeds := pda.TradeStateSeeds{
		Wallet:       params.Seller,
		AuctionHouse: h.Address,
		TokenAccount: tokenAccount,
		TreasuryMint: h.Account.TreasuryMint,
		TokenMint:    params.Mint,
		Price:        price,
		Size:         size,
	}
	sellerTradeState, sellerTradeStateBump, err := pda.DeriveTradeState(e.cfg.ProgramID, sellerSeeds)
	if err != nil {
		return nil, err
	}
	freeTradeState, freeTradeStateBump, err := pda.DeriveFreeTradeState(e.cfg.ProgramID, sellerSeeds)
	if err != nil {
		return nil, err
	}
	buyerSeeds := sellerSeeds
	buyerSeeds.Wallet = params.Buyer
	buyerTradeState, _, err := pda.DeriveTradeState(e.cfg.ProgramID, buyerSeeds)
	if err != nil {
		return nil, err
	}

	buyerReceiptTokenAccount, _, err := solana.FindAssociatedTokenAddress(params.Buyer, params.Mint)
	if err != nil {
		return nil, fmt.Errorf("derive buyer receipt token account: %w", err)
	}
	sellerPaymentReceipt := params.Seller
	if !h.isNative() {
		sellerPaymentReceipt, _, err = solana.FindAssociatedTokenAddress(params.Seller, h.Account.TreasuryMint)
		if err != nil {
			return nil, fmt.Errorf("derive seller payment account: %w", err)
		}
	}

	instruction := auctionhouse.NewExecuteSaleInstruction(e.cfg.ProgramID, auctionhouse.ExecuteSaleAccounts{
		Buyer:                       params.Buyer,
		Seller:                      params.Seller,
		TokenAccount:                tokenAccount,
		TokenMint:                   params.Mint,
		Metadata:                    metadata,
		TreasuryMint:                h.Account.TreasuryMint,
		EscrowPaymentAccount:        escrow,
		SellerPaymentReceiptAccount: sellerPaymentReceipt,
		BuyerReceiptTokenAccount:    buyerReceiptTokenAccount,
		Authority:                   h.Account.Authority,
		AuctionHouse:                h.Address,
		AuctionHouseFeeAccount:      h.Account.AuctionHouseFeeAccount,
		AuctionHouseTreasury:        h.Account.AuctionHouseTreasury,
		BuyerTradeState:             buyerTradeState,
		SellerTradeState:            sellerTradeState,
		FreeTradeState:              freeTradeState,
		ProgramAsSigner:             programAsSigner,
	}, auctionhouse.ExecuteSaleArgs{
		EscrowPaymentBump:    escrowBump,
		FreeTradeStateBump:   freeTradeStateBump,
		ProgramAsSignerBump:  programAsSignerBump,
		SellerTradeStateBump: sellerTradeStateBump,
		BuyerPrice:           price,
		TokenSize:            size,
	}, creatorAccounts)

	e.log.Info("settling sale",
		"house", h.Address, "mint", params.Mint,
		"buyer", params.Buyer, "seller", params.Seller,
		"price", price, "size", size, "creators", len(creators))

	receipt, err := e.caster.Broadcast(ctx, []solana.Instruction{instruction}, payer.PublicKey(), []solana.PrivateKey{payer})
	if err != nil {
		return nil, err
	}
	return &TradeResult{Receipt: receipt, TradeState: sellerTradeState, Price: price, Size: size}, nil
}
