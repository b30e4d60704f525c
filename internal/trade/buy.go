package trade

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/shopspring/decimal"

	"github.com/solhaus/marketplace/internal/anchor/auctionhouse"
	"github.com/solhaus/marketplace/internal/pda"
)

// BuyParams describes an offer. TokenAccount is optional; it defaults to the
// mint's single positive-balance holder.
type BuyParams struct {
	House        solana.PublicKey
	Mint         solana.PublicKey
	TokenAccount solana.PublicKey
	Price        decimal.Decimal
	Size         decimal.Decimal
}

// Buy places an offer for Size units at Price, creating the buyer trade state
// and topping the buyer's escrow up to the offered amount. For an SPL
// treasury mint the payment is pulled through an ephemeral delegate, bracketed
// by approve and revoke in the same transaction.
func (e *Engine) Buy(ctx context.Context, buyer solana.PrivateKey, params BuyParams) (*TradeResult, error) {
	wallet := buyer.PublicKey()

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
		tokenAccount, err = e.resolveTokenAccount(ctx, params.Mint)
		if err != nil {
			return nil, err
		}
	}

	metadata, _, err := pda.DeriveMetadata(e.cfg.MetadataProgramID, params.Mint)
	if err != nil {
		return nil, err
	}
	escrow, escrowBump, err := pda.DeriveBuyerEscrow(e.cfg.ProgramID, h.Address, wallet)
	if err != nil {
		return nil, err
	}
	tradeState, tradeStateBump, err := pda.DeriveTradeState(e.cfg.ProgramID, pda.TradeStateSeeds{
		Wallet:       wallet,
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

	accounts := auctionhouse.BuyAccounts{
		Wallet:                 wallet,
		PaymentAccount:         wallet,
		TransferAuthority:      solana.SystemProgramID,
		TreasuryMint:           h.Account.TreasuryMint,
		TokenAccount:           tokenAccount,
		Metadata:               metadata,
		Authority:              h.Account.Authority,
		EscrowPaymentAccount:   escrow,
		AuctionHouse:           h.Address,
		AuctionHouseFeeAccount: h.Account.AuctionHouseFeeAccount,
		BuyerTradeState:        tradeState,
	}
	args := auctionhouse.BuyArgs{
		TradeStateBump:    tradeStateBump,
		EscrowPaymentBump: escrowBump,
		BuyerPrice:        price,
		TokenSize:         size,
	}

	var instructions []solana.Instruction
	signers := []solana.PrivateKey{buyer}

	if h.isNative() {
		instructions = []solana.Instruction{auctionhouse.NewBuyInstruction(e.cfg.ProgramID, accounts, args)}
	} else {
		paymentAccount, _, err := solana.FindAssociatedTokenAddress(wallet, h.Account.TreasuryMint)
		if err != nil {
			return nil, fmt.Errorf("derive buyer payment account: %w", err)
		}
		delegate := solana.NewWallet()

		approve, err := token.NewApproveInstructionBuilder().
			SetAmount(price).
			SetSourceAccount(paymentAccount).
			SetDelegateAccount(delegate.PublicKey()).
			SetOwnerAccount(wallet).
			ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("build approve instruction: %w", err)
		}
		revoke, err := token.NewRevokeInstructionBuilder().
			SetSourceAccount(paymentAccount).
			SetOwnerAccount(wallet).
			ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("build revoke instruction: %w", err)
		}

		accounts.PaymentAccount = paymentAccount
		accounts.TransferAuthority = delegate.PublicKey()
		accounts.TransferAuthoritySigns = true

		instructions = []solana.Instruction{
			approve,
			auctionhouse.NewBuyInstruction(e.cfg.ProgramID, accounts, args),
			revoke,
		}
		signers = append(signers, delegate.PrivateKey)
	}

	e.log.Info("placing offer",
		"house", h.Address, "mint", params.Mint, "buyer", wallet,
		"price", price, "size", size, "trade_state", tradeState, "escrow", escrow)

	receipt, err := e.caster.Broadcast(ctx, instructions, wallet, signers)
	if err != nil {
		return nil, err
	}
	return &TradeResult{Receipt: receipt, TradeState: tradeState, Price: price, Size: size}, nil
}
