package auctionhouse

import "crypto/sha256"

// Anchor sighash preimages. Instructions hash "global:<name>", accounts hash
// "account:<Name>"; the first 8 bytes are the on-wire discriminator.
func instructionDiscriminator(name string) [8]byte {
	return discriminator("global:" + name)
}

func accountDiscriminator(name string) [8]byte {
	return discriminator("account:" + name)
}

func discriminator(preimage string) [8]byte {
	hash := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}
