package trade

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solhaus/marketplace/internal/anchor/auctionhouse"
	"github.com/solhaus/marketplace/internal/broadcast"
	"github.com/solhaus/marketplace/internal/pda"
)

// CreateHouseParams configures one-time house setup. Zero-value fields fall
// back to the payer's key and the native mint.
type CreateHouseParams struct {
	TreasuryMint                  solana.PublicKey
	Authority                     solana.PublicKey
	FeeWithdrawalDestination      solana.PublicKey
	TreasuryWithdrawalDestination solana.PublicKey
	SellerFeeBasisPoints          uint16
	RequiresSignOff               bool
	CanChangeSalePrice            bool
}

// HouseCreation reports a newly derived and broadcast house.
type HouseCreation struct {
	Receipt    *broadcast.Receipt
	House      solana.PublicKey
	FeeAccount solana.PublicKey
	Treasury   solana.PublicKey
}

// CreateHouse derives and creates the house, fee, and treasury accounts for
// the payer as house creator.
func (e *Engine) CreateHouse(ctx context.Context, payer solana.PrivateKey, params CreateHouseParams) (*HouseCreation, error) {
	wallet := payer.PublicKey()
	treasuryMint := params.TreasuryMint
	if treasuryMint.IsZero() {
		treasuryMint = solana.SolMint
	}
	authority := params.Authority
	if authority.IsZero() {
		authority = wallet
	}
	feeWithdrawal := params.FeeWithdrawalDestination
	if feeWithdrawal.IsZero() {
		feeWithdrawal = wallet
	}
	treasuryWithdrawalOwner := params.TreasuryWithdrawalDestination
	if treasuryWithdrawalOwner.IsZero() {
		treasuryWithdrawalOwner = wallet
	}

	// SPL treasuries pay out into the owner's associated token account; a
	// native treasury pays the owner wallet directly.
	treasuryWithdrawal := treasuryWithdrawalOwner
	if !treasuryMint.Equals(solana.SolMint) {
		ata, _, err := solana.FindAssociatedTokenAddress(treasuryWithdrawalOwner, treasuryMint)
		if err != nil {
			return nil, fmt.Errorf("derive treasury withdrawal account: %w", err)
		}
		treasuryWithdrawal = ata
	}

	house, houseBump, err := pda.DeriveAuctionHouse(e.cfg.ProgramID, authority, treasuryMint)
	if err != nil {
		return nil, err
	}
	feeAccount, feeBump, err := pda.DeriveFeeAccount(e.cfg.ProgramID, house)
	if err != nil {
		return nil, err
	}
	treasury, treasuryBump, err := pda.DeriveTreasury(e.cfg.ProgramID, house)
	if err != nil {
		return nil, err
	}

	instruction := auctionhouse.NewCreateAuctionHouseInstruction(e.cfg.ProgramID, auctionhouse.CreateAuctionHouseAccounts{
		TreasuryMint:                       treasuryMint,
		Payer:                              wallet,
		Authority:                          authority,
		FeeWithdrawalDestination:           feeWithdrawal,
		TreasuryWithdrawalDestination:      treasuryWithdrawal,
		TreasuryWithdrawalDestinationOwner: treasuryWithdrawalOwner,
		AuctionHouse:                       house,
		AuctionHouseFeeAccount:             feeAccount,
		AuctionHouseTreasury:               treasury,
	}, auctionhouse.CreateAuctionHouseArgs{
		Bump:                 houseBump,
		FeePayerBump:         feeBump,
		TreasuryBump:         treasuryBump,
		SellerFeeBasisPoints: params.SellerFeeBasisPoints,
		RequiresSignOff:      params.RequiresSignOff,
		CanChangeSalePrice:   params.CanChangeSalePrice,
	})

	e.log.Info("creating auction house",
		"house", house, "authority", authority, "treasury_mint", treasuryMint,
		"seller_fee_bps", params.SellerFeeBasisPoints)

	receipt, err := e.caster.Broadcast(ctx, []solana.Instruction{instruction}, wallet, []solana.PrivateKey{payer})
	if err != nil {
		return nil, err
	}
	return &HouseCreation{
		Receipt:    receipt,
		House:      house,
		FeeAccount: feeAccount,
		Treasury:   treasury,
	}, nil
}

// HouseInfo is the read-only view of a house and its operational balances.
type HouseInfo struct {
	Address              solana.PublicKey
	TreasuryMint         solana.PublicKey
	Authority            solana.PublicKey
	Creator              solana.PublicKey
	FeeAccount           solana.PublicKey
	Treasury             solana.PublicKey
	SellerFeeBasisPoints uint16
	RequiresSignOff      bool
	CanChangeSalePrice   bool
	FeeBalance           uint64
	TreasuryBalance      uint64
}

// ShowHouse loads a house account and its fee and treasury balances.
func (e *Engine) ShowHouse(ctx context.Context, house solana.PublicKey) (*HouseInfo, error) {
	h, err := e.loadHouse(ctx, house)
	if err != nil {
		return nil, err
	}

	feeBalance, err := e.lamports(ctx, h.Account.AuctionHouseFeeAccount)
	if err != nil {
		return nil, fmt.Errorf("fetch fee account balance: %w", err)
	}
	treasuryBalance, err := e.fundsBalance(ctx, h, h.Account.AuctionHouseTreasury)
	if err != nil {
		return nil, fmt.Errorf("fetch treasury balance: %w", err)
	}

	return &HouseInfo{
		Address:              h.Address,
		TreasuryMint:         h.Account.TreasuryMint,
		Authority:            h.Account.Authority,
		Creator:              h.Account.Creator,
		FeeAccount:           h.Account.AuctionHouseFeeAccount,
		Treasury:             h.Account.AuctionHouseTreasury,
		SellerFeeBasisPoints: h.Account.SellerFeeBasisPoints,
		RequiresSignOff:      h.Account.RequiresSignOff,
		CanChangeSalePrice:   h.Account.CanChangeSalePrice,
		FeeBalance:           feeBalance,
		TreasuryBalance:      treasuryBalance,
	}, nil
}

// EscrowInfo is the read-only view of a buyer's escrow under one house.
type EscrowInfo struct {
	Address solana.PublicKey
	Balance uint64
}

// ShowEscrow derives a wallet's escrow under the house and reads its balance
// in native units of the treasury mint. A missing escrow reads as zero.
func (e *Engine) ShowEscrow(ctx context.Context, house, wallet solana.PublicKey) (*EscrowInfo, error) {
	h, err := e.loadHouse(ctx, house)
	if err != nil {
		return nil, err
	}
	escrow, _, err := pda.DeriveBuyerEscrow(e.cfg.ProgramID, h.Address, wallet)
	if err != nil {
		return nil, err
	}
	balance, err := e.fundsBalance(ctx, h, escrow)
	if err != nil {
		return nil, fmt.Errorf("fetch escrow balance: %w", err)
	}
	return &EscrowInfo{Address: escrow, Balance: balance}, nil
}

func (e *Engine) lamports(ctx context.Context, account solana.PublicKey) (uint64, error) {
	result, err := e.client.GetBalance(ctx, account, e.cfg.Commitment)
	if err != nil {
		return 0, err
	}
	return result.Value, nil
}

// fundsBalance reads an account balance in the house's payment units:
// lamports for a native treasury mint, token units otherwise.
func (e *Engine) fundsBalance(ctx context.Context, h *houseContext, account solana.PublicKey) (uint64, error) {
	if h.isNative() {
		return e.lamports(ctx, account)
	}
	result, err := e.client.GetTokenAccountBalance(ctx, account, e.cfg.Commitment)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseUint(result.Value.Amount, 10, 64)
}
