package trade

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/solhaus/marketplace/internal/anchor/auctionhouse"
	"github.com/solhaus/marketplace/internal/pda"
)

// CancelParams identifies the order to withdraw. Price and Size must match
// the original listing or offer exactly; the recomputed trade state otherwise
// points at nothing and the ledger rejects the call. TokenAccount is
// optional; it defaults to the wallet's associated token account.
type CancelParams struct {
	House        solana.PublicKey
	Mint         solana.PublicKey
	TokenAccount solana.PublicKey
	Price        decimal.Decimal
	Size         decimal.Decimal
}

// Cancel withdraws the wallet's standing order at the given price and size.
// A rejection from the ledger is surfaced as-is; cancelling an already
// settled or never-created order is not retried.
func (e *Engine) Cancel(ctx context.Context, wallet solana.PrivateKey, params CancelParams) (*TradeResult, error) {
	owner := wallet.PublicKey()

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
		tokenAccount, _, err = solana.FindAssociatedTokenAddress(owner, params.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive token account: %w", err)
		}
	}

	tradeState, _, err := pda.DeriveTradeState(e.cfg.ProgramID, pda.TradeStateSeeds{
		Wallet:       owner,
		AuctionHouse: h.Address,
		TokenAccount: tokenAccount,
		TreasuryMint: h.Account.TreasuryMint,
		TokenMint:    params.Mint,
		Price:        price,
		Size:         size,
	})
	if err != nil {
		return nil, err
	}

	instruction := auctionhouse.NewCancelInstruction(e.cfg.ProgramID, auctionhouse.CancelAccounts{
		Wallet:                 owner,
		TokenAccount:           tokenAccount,
		TokenMint:              params.Mint,
		Authority:              h.Account.Authority,
		AuctionHouse:           h.Address,
		AuctionHouseFeeAccount: h.Account.AuctionHouseFeeAccount,
		TradeState:             tradeState,
	}, auctionhouse.CancelArgs{
		BuyerPrice: price,
		TokenSize:  size,
	})

	e.log.Info("cancelling order",
		"house", h.Address, "mint", params.Mint, "wallet", owner,
		"price", price, "size", size, "trade_state", tradeState)

	receipt, err := e.caster.Broadcast(ctx, []solana.Instruction{instruction}, owner, []solana.PrivateKey{wallet})
	if err != nil {
		return nil, err
	}
	return &TradeResult{Receipt: receipt, TradeState: tradeState, Price: price, Size: size}, nil
}
