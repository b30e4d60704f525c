package trade

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/solhaus/marketplace/internal/anchor/auctionhouse"
	"github.com/solhaus/marketplace/internal/pda"
)

// SellParams describes a listing. TokenAccount is optional; it defaults to
// the seller's associated token account for the mint.
type SellParams struct {
	House        solana.PublicKey
	Mint         solana.PublicKey
	TokenAccount solana.PublicKey
	Price        decimal.Decimal
	Size         decimal.Decimal
}

// Sell lists Size units of the asset at Price, creating the seller trade
// state. The asset stays in the seller's token account; the program only
// records a delegated standing order.
func (e *Engine) Sell(ctx context.Context, seller solana.PrivateKey, params SellParams) (*TradeResult, error) {
	wallet := seller.PublicKey()

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
		tokenAccount, _, err = solana.FindAssociatedTokenAddress(wallet, params.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive seller token account: %w", err)
		}
	}

	metadata, _, err := pda.DeriveMetadata(e.cfg.MetadataProgramID, params.Mint)
	if err != nil {
		return nil, err
	}
	programAsSigner, programAsSignerBump, err := pda.DeriveProgramAsSigner(e.cfg.ProgramID)
	if err != nil {
		return nil, err
	}

	seeds := pda.TradeStateSeeds{
		Wallet:       wallet,
		AuctionHouse: h.Address,
		TokenAccount: tokenAccount,
		TreasuryMint: h.Account.TreasuryMint,
		TokenMint:    params.Mint,
		Price:        price,
		Size:         size,
	}
	tradeState, tradeStateBump, err := pda.DeriveTradeState(e.cfg.ProgramID, seeds)
	if err != nil {
		return nil, err
	}
	freeTradeState, freeTradeStateBump, err := pda.DeriveFreeTradeState(e.cfg.ProgramID, seeds)
	if err != nil {
		return nil, err
	}

	instruction := auctionhouse.NewSellInstruction(e.cfg.ProgramID, auctionhouse.SellAccounts{
		Wallet:                 wallet,
		TokenAccount:           tokenAccount,
		Metadata:               metadata,
		Authority:              h.Account.Authority,
		AuctionHouse:           h.Address,
		AuctionHouseFeeAccount: h.Account.AuctionHouseFeeAccount,
		SellerTradeState:       tradeState,
		FreeSellerTradeState:   freeTradeState,
		ProgramAsSigner:        programAsSigner,
	}, auctionhouse.SellArgs{
		TradeStateBump:      tradeStateBump,
		FreeTradeStateBump:  freeTradeStateBump,
		ProgramAsSignerBump: programAsSignerBump,
		BuyerPrice:          price,
		TokenSize:           size,
	})

	e.log.Info("listing asset",
		"house", h.Address, "mint", params.Mint, "seller", wallet,
		"price", price, "size", size, "trade_state", tradeState)

	receipt, err := e.caster.Broadcast(ctx, []solana.Instruction{instruction}, wallet, []solana.PrivateKey{seller})
	if err != nil {
		return nil, err
	}
	return &TradeResult{Receipt: receipt, TradeState: tradeState, Price: price, Size: size}, nil
}

// nativeAmounts converts a decimal price and size into native units: price at
// the treasury-mint decimals, size at the asset-mint decimals.
func (e *Engine) nativeAmounts(ctx context.Context, h *houseContext, mint solana.PublicKey, price, size decimal.Decimal) (uint64, uint64, error) {
	priceDecimals, err := e.treasuryDecimals(ctx, h)
	if err != nil {
		return 0, 0, err
	}
	nativePrice, err := ToNativeAmount(price, priceDecimals)
	if err != nil {
		return 0, 0, fmt.Errorf("price: %w", err)
	}
	sizeDecimals, err := e.mintDecimals(ctx, mint)
	if err != nil {
		return 0, 0, err
	}
	nativeSize, err := ToNativeAmount(size, sizeDecimals)
	if err != nil {
		return 0, 0, fmt.Errorf("size: %w", err)
	}
	return nativePrice, nativeSize, nil
}
