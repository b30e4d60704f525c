package broadcast

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// SignatureSubscriber opens push subscriptions for signature status changes.
type SignatureSubscriber interface {
	SignatureSubscribe(signature solana.Signature, commitment rpc.CommitmentType) (SignatureSubscription, error)
}

// SignatureSubscription yields at most one notification for a signature.
type SignatureSubscription interface {
	Recv(ctx context.Context) (*SignatureNotification, error)
	Unsubscribe()
}

// SignatureNotification is the payload of a signature subscription event.
// A nil Err means the transaction succeeded at Slot.
type SignatureNotification struct {
	Slot uint64
	Err  interface{}
}

// NewWSSubscriber adapts a websocket client to the SignatureSubscriber
// interface used by the confirmation race.
func NewWSSubscriber(client *ws.Client) SignatureSubscriber {
	return &wsSubscriber{client: client}
}

type wsSubscriber struct {
	client *ws.Client
}

func (s *wsSubscriber) SignatureSubscribe(signature solana.Signature, commitment rpc.CommitmentType) (SignatureSubscription, error) {
	sub, err := s.client.SignatureSubscribe(signature, commitment)
	if err != nil {
		return nil, err
	}
	return &wsSubscription{sub: sub}, nil
}

type wsSubscription struct {
	sub *ws.SignatureSubscription
}

func (s *wsSubscription) Recv(ctx context.Context) (*SignatureNotification, error) {
	result, err := s.sub.Recv(ctx)
	if err != nil {
		return nil, err
	}
	return &SignatureNotification{
		Slot: result.Context.Slot,
		Err:  result.Value.Err,
	}, nil
}

func (s *wsSubscription) Unsubscribe() {
	s.sub.Unsubscribe()
}
