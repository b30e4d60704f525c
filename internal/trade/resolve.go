package trade

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	bin "github.com/gagliardetto/binary"
	token_metadata "github.com/gagliardetto/metaplex-go/clients/token-metadata"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/solhaus/marketplace/internal/anchor/auctionhouse"
	"github.com/solhaus/marketplace/internal/pda"
)

// houseContext carries a loaded house account together with the facts every
// operation needs about it.
type houseContext struct {
	Address solana.PublicKey
	Account *auctionhouse.AuctionHouse
}

func (h *houseContext) isNative() bool {
	return h.Account.TreasuryMint.Equals(solana.SolMint)
}

// treasuryDecimals returns the decimal count of the house payment mint.
func (e *Engine) treasuryDecimals(ctx context.Context, h *houseContext) (uint8, error) {
	if h.isNative() {
		return nativeDecimals, nil
	}
	return e.mintDecimals(ctx, h.Account.TreasuryMint)
}

func (e *Engine) loadHouse(ctx context.Context, house solana.PublicKey) (*houseContext, error) {
	data, err := e.accountData(ctx, house)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrHouseNotFound, house)
		}
		return nil, fmt.Errorf("fetch auction house %s: %w", house, err)
	}
	account, err := auctionhouse.DecodeAuctionHouse(data)
	if err != nil {
		return nil, fmt.Errorf("auction house %s: %w", house, err)
	}
	return &houseContext{Address: house, Account: account}, nil
}

func (e *Engine) accountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	result, err := e.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: e.cfg.Commitment,
	})
	if err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, rpc.ErrNotFound
	}
	return result.Value.Data.GetBinary(), nil
}

func (e *Engine) mintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	supply, err := e.client.GetTokenSupply(ctx, mint, e.cfg.Commitment)
	if err != nil {
		return 0, fmt.Errorf("fetch supply of mint %s: %w", mint, err)
	}
	return supply.Value.Decimals, nil
}

// resolveTokenAccount locates the single account holding the asset. The
// lookup only stands when exactly one holder has a positive balance, which is
// the common case for NFTs and escrowed one-of-ones.
func (e *Engine) resolveTokenAccount(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, error) {
	largest, err := e.client.GetTokenLargestAccounts(ctx, mint, e.cfg.Commitment)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("list holders of mint %s: %w", mint, err)
	}

	var holders []solana.PublicKey
	for _, entry := range largest.Value {
		amount, err := strconv.ParseUint(entry.Amount, 10, 64)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("parse holder balance %q of mint %s: %w", entry.Amount, mint, err)
		}
		if amount > 0 {
			holders = append(holders, entry.Address)
		}
	}
	switch len(holders) {
	case 0:
		return solana.PublicKey{}, fmt.Errorf("%w: mint %s has no holder", ErrAssetNotFound, mint)
	case 1:
		return holders[0], nil
	default:
		return solana.PublicKey{}, fmt.Errorf("%w: mint %s has %d holders", ErrAmbiguousTokenAccount, mint, len(holders))
	}
}

// metadataCreators returns the verified royalty recipients of a mint, in
// metadata order. A mint without a metadata account is not tradeable here.
func (e *Engine) metadataCreators(ctx context.Context, mint solana.PublicKey) ([]token_metadata.Creator, error) {
	metadataKey, _, err := pda.DeriveMetadata(e.cfg.MetadataProgramID, mint)
	if err != nil {
		return nil, err
	}
	data, err := e.accountData(ctx, metadataKey)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: mint %s has no metadata", ErrAssetNotFound, mint)
		}
		return nil, fmt.Errorf("fetch metadata of mint %s: %w", mint, err)
	}

	var metadata token_metadata.Metadata
	if err := bin.NewBorshDecoder(data).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("%w: mint %s: %v", ErrMetadataUndecodable, mint, err)
	}
	if metadata.Data.Creators == nil {
		return nil, nil
	}
	return *metadata.Data.Creators, nil
}

// creatorRemainingAccounts flattens creators into the remaining-accounts list
// settlement expects: each creator wallet, followed by the creator's payment
// token account when the house settles in an SPL token.
func creatorRemainingAccounts(creators []token_metadata.Creator, h *houseContext) ([]solana.PublicKey, error) {
	accounts := make([]solana.PublicKey, 0, len(creators)*2)
	for _, creator := range creators {
		accounts = append(accounts, creator.Address)
		if !h.isNative() {
			ata, _, err := solana.FindAssociatedTokenAddress(creator.Address, h.Account.TreasuryMint)
			if err != nil {
				return nil, fmt.Errorf("derive payment account of creator %s: %w", creator.Address, err)
			}
			accounts = append(accounts, ata)
		}
	}
	return accounts, nil
}
