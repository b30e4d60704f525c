package trade

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"

	bin "github.com/gagliardetto/binary"
	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solhaus/marketplace/internal/anchor/auctionhouse"
	"github.com/solhaus/marketplace/internal/broadcast"
	"github.com/solhaus/marketplace/internal/pda"
)

type fakeLedger struct {
	accounts      map[solana.PublicKey]*rpc.Account
	decimals      map[solana.PublicKey]uint8
	holders       map[solana.PublicKey][]*rpc.TokenLargestAccountsResult
	lamports      map[solana.PublicKey]uint64
	tokenBalances map[solana.PublicKey]uint64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts:      make(map[solana.PublicKey]*rpc.Account),
		decimals:      make(map[solana.PublicKey]uint8),
		holders:       make(map[solana.PublicKey][]*rpc.TokenLargestAccountsResult),
		lamports:      make(map[solana.PublicKey]uint64),
		tokenBalances: make(map[solana.PublicKey]uint64),
	}
}

// setAccount installs raw account data, round-tripped through the RPC wire
// shape so DataBytesOrJSON decodes the same way it does off a live node.
func (l *fakeLedger) setAccount(t *testing.T, key solana.PublicKey, data []byte) {
	t.Helper()
	payload := fmt.Sprintf(`{"lamports":1,"owner":"11111111111111111111111111111111","data":[%q,"base64"],"executable":false,"rentEpoch":0}`,
		base64.StdEncoding.EncodeToString(data))
	var account rpc.Account
	require.NoError(t, json.Unmarshal([]byte(payload), &account))
	l.accounts[key] = &account
}

func (l *fakeLedger) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	value, ok := l.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: value}, nil
}

func (l *fakeLedger) GetTokenSupply(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error) {
	decimals, ok := l.decimals[mint]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetTokenSupplyResult{
		Value: &rpc.UiTokenAmount{Amount: "1", Decimals: decimals},
	}, nil
}

func (l *fakeLedger) GetTokenLargestAccounts(ctx context.Context, mint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenLargestAccountsResult, error) {
	return &rpc.GetTokenLargestAccountsResult{Value: l.holders[mint]}, nil
}

func holder(address solana.PublicKey, amount string) *rpc.TokenLargestAccountsResult {
	return &rpc.TokenLargestAccountsResult{
		Address:       address,
		UiTokenAmount: rpc.UiTokenAmount{Amount: amount},
	}
}

func (l *fakeLedger) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: l.lamports[account]}, nil
}

func (l *fakeLedger) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	balance, ok := l.tokenBalances[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetTokenAccountBalanceResult{
		Value: &rpc.UiTokenAmount{Amount: strconv.FormatUint(balance, 10)},
	}, nil
}

type fakeCaster struct {
	instructions []solana.Instruction
	payer        solana.PublicKey
	signers      []solana.PrivateKey
	calls        int
}

func (c *fakeCaster) Broadcast(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey, signers []solana.PrivateKey) (*broadcast.Receipt, error) {
	c.instructions = instructions
	c.payer = payer
	c.signers = signers
	c.calls++
	return &broadcast.Receipt{Signature: solana.Signature{1}, Slot: 99}, nil
}

func houseAccountBytes(t *testing.T, account auctionhouse.AuctionHouse) []byte {
	t.Helper()
	var body bytes.Buffer
	require.NoError(t, bin.NewBorshEncoder(&body).Encode(account))
	disc := sha256.Sum256([]byte("account:AuctionHouse"))
	return append(disc[:8], body.Bytes()...)
}

func metadataAccountBytes(t *testing.T, mint solana.PublicKey, creators []token_metadata.Creator) []byte {
	t.Helper()
	metadata := token_metadata.Metadata{
		UpdateAuthority: solana.NewWallet().PublicKey(),
		Mint:            mint,
		Data: token_metadata.Data{
			Name:                 "Asset",
			Symbol:               "AST",
			Uri:                  "https://example.invalid/asset.json",
			SellerFeeBasisPoints: 500,
		},
	}
	if len(creators) > 0 {
		metadata.Data.Creators = &creators
	}
	var body bytes.Buffer
	require.NoError(t, bin.NewBorshEncoder(&body).Encode(metadata))
	return body.Bytes()
}

// testHouse installs a house account on the fake ledger and returns its
// address and decoded form.
func testHouse(t *testing.T, ledger *fakeLedger, treasuryMint solana.PublicKey) (solana.PublicKey, auctionhouse.AuctionHouse) {
	t.Helper()
	authority := solana.NewWallet().PublicKey()
	house, _, err := pda.DeriveAuctionHouse(DefaultProgramID, authority, treasuryMint)
	require.NoError(t, err)
	fee, _, err := pda.DeriveFeeAccount(DefaultProgramID, house)
	require.NoError(t, err)
	treasury, _, err := pda.DeriveTreasury(DefaultProgramID, house)
	require.NoError(t, err)

	account := auctionhouse.AuctionHouse{
		AuctionHouseFeeAccount: fee,
		AuctionHouseTreasury:   treasury,
		TreasuryMint:           treasuryMint,
		Authority:              authority,
		Creator:                authority,
		SellerFeeBasisPoints:   200,
	}
	ledger.setAccount(t, house, houseAccountBytes(t, account))
	return house, account
}

func testEngine(ledger *fakeLedger, caster *fakeCaster) *Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(ledger, caster, Config{}, log)
}

func TestSellBuyCancelDeriveConsistentTradeStates(t *testing.T) {
	ledger := newFakeLedger()
	caster := &fakeCaster{}
	engine := testEngine(ledger, caster)

	house, _ := testHouse(t, ledger, solana.SolMint)
	mint := solana.NewWallet().PublicKey()
	ledger.decimals[mint] = 0

	seller := solana.NewWallet()
	sellerAta, _, err := solana.FindAssociatedTokenAddress(seller.PublicKey(), mint)
	require.NoError(t, err)
	ledger.holders[mint] = []*rpc.TokenLargestAccountsResult{holder(sellerAta, "1")}

	price := decimal.RequireFromString("1.5")
	size := decimal.RequireFromString("1")

	sold, err := engine.Sell(context.Background(), seller.PrivateKey, SellParams{
		House: house, Mint: mint, Price: price, Size: size,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1_500_000_000), sold.Price)
	require.Equal(t, uint64(1), sold.Size)
	require.Len(t, caster.instructions, 1)
	require.Equal(t, seller.PublicKey(), caster.payer)

	buyer := solana.NewWallet()
	bought, err := engine.Buy(context.Background(), buyer.PrivateKey, BuyParams{
		House: house, Mint: mint, Price: price, Size: size,
	})
	require.NoError(t, err)
	require.Len(t, caster.instructions, 1, "native offer needs no delegate bracket")
	require.NotEqual(t, sold.TradeState, bought.TradeState, "buyer and seller trade states must differ")

	escrow, _, err := pda.DeriveBuyerEscrow(DefaultProgramID, house, buyer.PublicKey())
	require.NoError(t, err)
	require.NotEqual(t, escrow, sold.TradeState)
	require.NotEqual(t, escrow, bought.TradeState)

	cancelled, err := engine.Cancel(context.Background(), seller.PrivateKey, CancelParams{
		House: house, Mint: mint, TokenAccount: sellerAta, Price: price, Size: size,
	})
	require.NoError(t, err)
	require.Equal(t, sold.TradeState, cancelled.TradeState, "cancel must recompute the listing's trade state")
}

func TestBuyBracketsSplPaymentWithDelegate(t *testing.T) {
	ledger := newFakeLedger()
	caster := &fakeCaster{}
	engine := testEngine(ledger, caster)

	treasuryMint := solana.NewWallet().PublicKey()
	ledger.decimals[treasuryMint] = 6
	house, _ := testHouse(t, ledger, treasuryMint)

	mint := solana.NewWallet().PublicKey()
	ledger.decimals[mint] = 0
	ledger.holders[mint] = []*rpc.TokenLargestAccountsResult{
		holder(solana.NewWallet().PublicKey(), "1"),
	}

	buyer := solana.NewWallet()
	result, err := engine.Buy(context.Background(), buyer.PrivateKey, BuyParams{
		House: house, Mint: mint,
		Price: decimal.RequireFromString("2.5"),
		Size:  decimal.RequireFromString("1"),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2_500_000), result.Price, "price scales at treasury mint decimals")
	require.Len(t, caster.instructions, 3, "approve, buy, revoke")
	require.Len(t, caster.signers, 2, "buyer plus ephemeral delegate")
}

func TestBuyTokenAccountResolution(t *testing.T) {
	ledger := newFakeLedger()
	caster := &fakeCaster{}
	engine := testEngine(ledger, caster)

	house, _ := testHouse(t, ledger, solana.SolMint)
	mint := solana.NewWallet().PublicKey()
	ledger.decimals[mint] = 0

	buyer := solana.NewWallet()
	params := BuyParams{
		House: house, Mint: mint,
		Price: decimal.RequireFromString("1"),
		Size:  decimal.RequireFromString("1"),
	}

	_, err := engine.Buy(context.Background(), buyer.PrivateKey, params)
	require.ErrorIs(t, err, ErrAssetNotFound, "no positive holder")

	ledger.holders[mint] = []*rpc.TokenLargestAccountsResult{
		holder(solana.NewWallet().PublicKey(), "1"),
		holder(solana.NewWallet().PublicKey(), "2"),
	}
	_, err = engine.Buy(context.Background(), buyer.PrivateKey, params)
	require.ErrorIs(t, err, ErrAmbiguousTokenAccount)

	ledger.holders[mint] = []*rpc.TokenLargestAccountsResult{
		holder(solana.NewWallet().PublicKey(), "1"),
		holder(solana.NewWallet().PublicKey(), "0"),
	}
	_, err = engine.Buy(context.Background(), buyer.PrivateKey, params)
	require.NoError(t, err, "zero-balance holders are ignored")
}

func TestExecuteSaleAppendsCreatorAccounts(t *testing.T) {
	ledger := newFakeLedger()
	caster := &fakeCaster{}
	engine := testEngine(ledger, caster)

	mint := solana.NewWallet().PublicKey()
	ledger.decimals[mint] = 0
	creators := []token_metadata.Creator{
		{Address: solana.NewWallet().PublicKey(), Verified: true, Share: 60},
		{Address: solana.NewWallet().PublicKey(), Share: 40},
	}
	metadataKey, _, err := pda.DeriveMetadata(DefaultMetadataProgramID, mint)
	require.NoError(t, err)
	ledger.setAccount(t, metadataKey, metadataAccountBytes(t, mint, creators))

	seller := solana.NewWallet().PublicKey()
	buyer := solana.NewWallet().PublicKey()
	payer := solana.NewWallet()
	params := ExecuteSaleParams{
		Mint: mint, Buyer: buyer, Seller: seller,
		Price: decimal.RequireFromString("1"),
		Size:  decimal.RequireFromString("1"),
	}

	nativeHouse, _ := testHouse(t, ledger, solana.SolMint)
	params.House = nativeHouse
	_, err = engine.ExecuteSale(context.Background(), payer.PrivateKey, params)
	require.NoError(t, err)
	require.Len(t, caster.instructions, 1)
	nativeMetas := caster.instructions[0].Accounts()

	treasuryMint := solana.NewWallet().PublicKey()
	ledger.decimals[treasuryMint] = 6
	splHouse, _ := testHouse(t, ledger, treasuryMint)
	params.House = splHouse
	_, err = engine.ExecuteSale(context.Background(), payer.PrivateKey, params)
	require.NoError(t, err)
	splMetas := caster.instructions[0].Accounts()

	require.Equal(t, len(nativeMetas)+len(creators), len(splMetas),
		"an SPL settlement adds one payment account per creator")
	for _, meta := range splMetas[len(splMetas)-2*len(creators):] {
		require.True(t, meta.IsWritable)
		require.False(t, meta.IsSigner)
	}
}

func TestShowHouseAndEscrow(t *testing.T) {
	ledger := newFakeLedger()
	caster := &fakeCaster{}
	engine := testEngine(ledger, caster)

	house, account := testHouse(t, ledger, solana.SolMint)
	ledger.lamports[account.AuctionHouseFeeAccount] = 7_000
	ledger.lamports[account.AuctionHouseTreasury] = 11_000

	info, err := engine.ShowHouse(context.Background(), house)
	require.NoError(t, err)
	require.Equal(t, account.Authority, info.Authority)
	require.Equal(t, uint16(200), info.SellerFeeBasisPoints)
	require.Equal(t, uint64(7_000), info.FeeBalance)
	require.Equal(t, uint64(11_000), info.TreasuryBalance)

	wallet := solana.NewWallet().PublicKey()
	escrowKey, _, err := pda.DeriveBuyerEscrow(DefaultProgramID, house, wallet)
	require.NoError(t, err)
	ledger.lamports[escrowKey] = 42

	escrow, err := engine.ShowEscrow(context.Background(), house, wallet)
	require.NoError(t, err)
	require.Equal(t, escrowKey, escrow.Address)
	require.Equal(t, uint64(42), escrow.Balance)
}

func TestShowEscrowMissingSplAccountReadsZero(t *testing.T) {
	ledger := newFakeLedger()
	engine := testEngine(ledger, &fakeCaster{})

	treasuryMint := solana.NewWallet().PublicKey()
	house, _ := testHouse(t, ledger, treasuryMint)

	escrow, err := engine.ShowEscrow(context.Background(), house, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.Zero(t, escrow.Balance)
}

func TestOperationsAgainstMissingHouse(t *testing.T) {
	ledger := newFakeLedger()
	engine := testEngine(ledger, &fakeCaster{})

	missing := solana.NewWallet().PublicKey()
	_, err := engine.ShowHouse(context.Background(), missing)
	require.ErrorIs(t, err, ErrHouseNotFound)

	_, err = engine.Sell(context.Background(), solana.NewWallet().PrivateKey, SellParams{
		House: missing, Mint: solana.NewWallet().PublicKey(),
		Price: decimal.New(1, 0), Size: decimal.New(1, 0),
	})
	require.ErrorIs(t, err, ErrHouseNotFound)
}

func TestCreateHouseDerivesAccounts(t *testing.T) {
	ledger := newFakeLedger()
	caster := &fakeCaster{}
	engine := testEngine(ledger, caster)

	payer := solana.NewWallet()
	created, err := engine.CreateHouse(context.Background(), payer.PrivateKey, CreateHouseParams{
		SellerFeeBasisPoints: 250,
	})
	require.NoError(t, err)

	wantHouse, _, err := pda.DeriveAuctionHouse(DefaultProgramID, payer.PublicKey(), solana.SolMint)
	require.NoError(t, err)
	require.Equal(t, wantHouse, created.House)
	require.Len(t, caster.instructions, 1)
	require.Equal(t, payer.PublicKey(), caster.payer)
}
