package trade

import "errors"

var (
	// ErrHouseNotFound means no auction-house account exists at the derived
	// or supplied address.
	ErrHouseNotFound = errors.New("auction house account not found")

	// ErrAssetNotFound means the mint has no holder with a positive balance,
	// or its metadata account is missing.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAmbiguousTokenAccount means more than one account holds a positive
	// balance of the mint, so the holding account must be given explicitly.
	ErrAmbiguousTokenAccount = errors.New("ambiguous token account for mint")

	// ErrMetadataUndecodable means the metadata account exists but its data
	// does not parse.
	ErrMetadataUndecodable = errors.New("token metadata undecodable")

	// ErrAmountOutOfRange means a decimal amount is negative or does not fit
	// a u64 once scaled to native units.
	ErrAmountOutOfRange = errors.New("amount out of range")
)
