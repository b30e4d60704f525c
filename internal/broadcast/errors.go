package broadcast

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrConfirmationTimeout means the signature was neither confirmed nor
	// rejected before the deadline. The transaction may still land.
	ErrConfirmationTimeout = errors.New("confirmation timed out")

	// ErrBroadcastTimeout wraps ErrConfirmationTimeout at the Broadcast
	// boundary: the outcome of the submitted transaction is unknown.
	ErrBroadcastTimeout = errors.New("broadcast timed out with unknown outcome")
)

// TransactionRejectedError reports a transaction the cluster processed and
// failed. Reason carries the raw error object from the RPC node.
type TransactionRejectedError struct {
	Signature solana.Signature
	Reason    interface{}
}

func (e *TransactionRejectedError) Error() string {
	return fmt.Sprintf("transaction %s rejected: %v", e.Signature, e.Reason)
}
