// Package broadcast submits transactions and tracks them to a terminal
// outcome. A transaction is serialized and signed once, resubmitted as the
// same bytes on an interval, and confirmed by racing websocket push
// notifications against signature status polling.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	defaultResubmitInterval = 500 * time.Millisecond
	defaultPollInterval     = 2 * time.Second
	defaultTimeout          = 60 * time.Second
)

// SubmitClient is the RPC surface the broadcaster needs. *rpc.Client
// satisfies it.
type SubmitClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendRawTransactionWithOpts(ctx context.Context, transaction []byte, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// RetryPolicy controls resubmission and confirmation timing.
type RetryPolicy struct {
	ResubmitInterval time.Duration
	PollInterval     time.Duration
	Timeout          time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.ResubmitInterval <= 0 {
		p.ResubmitInterval = defaultResubmitInterval
	}
	if p.PollInterval <= 0 {
		p.PollInterval = defaultPollInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	return p
}

// Config holds the broadcaster settings.
type Config struct {
	Commitment    rpc.CommitmentType
	SkipPreflight bool
	Retry         RetryPolicy
}

// Receipt identifies a confirmed transaction.
type Receipt struct {
	Signature solana.Signature
	Slot      uint64
}

// Broadcaster submits and confirms transactions. The subscriber is optional;
// without one the broadcaster confirms by polling alone.
type Broadcaster struct {
	client     SubmitClient
	subscriber SignatureSubscriber
	cfg        Config
	log        *slog.Logger
}

func New(client SubmitClient, subscriber SignatureSubscriber, cfg Config, log *slog.Logger) *Broadcaster {
	if cfg.Commitment == "" {
		cfg.Commitment = rpc.CommitmentConfirmed
	}
	cfg.Retry = cfg.Retry.withDefaults()
	return &Broadcaster{
		client:     client,
		subscriber: subscriber,
		cfg:        cfg,
		log:        log,
	}
}

// Broadcast signs the instructions into a single transaction, submits it, and
// keeps resubmitting the identical serialized bytes until the signature
// reaches a terminal state or the retry timeout elapses. On timeout the
// outcome is unknown; callers must not assume the transaction failed.
func (b *Broadcaster) Broadcast(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey, signers []solana.PrivateKey) (*Receipt, error) {
	recent, err := b.client.GetLatestBlockhash(ctx, b.cfg.Commitment)
	if err != nil {
		return nil, fmt.Errorf("fetch latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}
	signature := tx.Signatures[0]

	if _, err := b.submit(ctx, raw); err != nil {
		return nil, fmt.Errorf("submit transaction %s: %w", signature, err)
	}
	b.log.Info("transaction submitted", "signature", signature, "payer", payer)

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.resubmit(raceCtx, raw, signature)

	receipt, err := b.Confirm(ctx, signature)
	if err != nil {
		if errors.Is(err, ErrConfirmationTimeout) {
			return nil, fmt.Errorf("transaction %s: %w", signature, ErrBroadcastTimeout)
		}
		return nil, err
	}
	return receipt, nil
}

// Confirm races push notification against status polling for an already
// submitted signature, bounded by the retry timeout.
func (b *Broadcaster) Confirm(ctx context.Context, signature solana.Signature) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Retry.Timeout)
	defer cancel()

	type outcome struct {
		receipt *Receipt
		err     error
	}
	// Buffered so the losing goroutine never blocks on its send.
	results := make(chan outcome, 2)

	if b.subscriber != nil {
		go func() {
			receipt, err := b.watchPush(ctx, signature)
			if receipt != nil || err != nil {
				results <- outcome{receipt: receipt, err: err}
			}
		}()
	}
	go func() {
		receipt, err := b.pollStatus(ctx, signature)
		if receipt != nil || err != nil {
			results <- outcome{receipt: receipt, err: err}
		}
	}()

	select {
	case out := <-results:
		if out.err != nil {
			return nil, out.err
		}
		b.log.Info("transaction confirmed", "signature", signature, "slot", out.receipt.Slot)
		return out.receipt, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("transaction %s: %w", signature, ErrConfirmationTimeout)
		}
		return nil, ctx.Err()
	}
}

func (b *Broadcaster) submit(ctx context.Context, raw []byte) (solana.Signature, error) {
	return b.client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		SkipPreflight:       b.cfg.SkipPreflight,
		PreflightCommitment: b.cfg.Commitment,
	})
}

// resubmit re-sends the identical serialized transaction until ctx is
// cancelled. Duplicate submissions of the same signed bytes are idempotent
// on-chain, so send errors here are only logged.
func (b *Broadcaster) resubmit(ctx context.Context, raw []byte, signature solana.Signature) {
	ticker := time.NewTicker(b.cfg.Retry.ResubmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.submit(ctx, raw); err != nil && ctx.Err() == nil {
				b.log.Debug("transaction resubmit failed", "signature", signature, "error", err)
			}
		}
	}
}

// watchPush resolves via a single websocket notification. Subscription
// failures return (nil, nil) so the poller keeps the race alive.
func (b *Broadcaster) watchPush(ctx context.Context, signature solana.Signature) (*Receipt, error) {
	sub, err := b.subscriber.SignatureSubscribe(signature, b.cfg.Commitment)
	if err != nil {
		b.log.Warn("signature subscription failed, falling back to polling", "signature", signature, "error", err)
		return nil, nil
	}
	defer sub.Unsubscribe()

	note, err := sub.Recv(ctx)
	if err != nil {
		if ctx.Err() == nil {
			b.log.Warn("signature subscription closed, falling back to polling", "signature", signature, "error", err)
		}
		return nil, nil
	}
	if note.Err != nil {
		return nil, &TransactionRejectedError{Signature: signature, Reason: note.Err}
	}
	return &Receipt{Signature: signature, Slot: note.Slot}, nil
}

func (b *Broadcaster) pollStatus(ctx context.Context, signature solana.Signature) (*Receipt, error) {
	ticker := time.NewTicker(b.cfg.Retry.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
			result, err := b.client.GetSignatureStatuses(ctx, true, signature)
			if err != nil {
				if ctx.Err() == nil {
					b.log.Debug("signature status poll failed", "signature", signature, "error", err)
				}
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return nil, &TransactionRejectedError{Signature: signature, Reason: status.Err}
			}
			if statusSatisfies(status.ConfirmationStatus, b.cfg.Commitment) {
				return &Receipt{Signature: signature, Slot: status.Slot}, nil
			}
		}
	}
}

// statusSatisfies reports whether an observed confirmation status meets the
// requested commitment on the processed < confirmed < finalized ladder.
func statusSatisfies(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	rank := func(s string) int {
		switch s {
		case string(rpc.CommitmentProcessed):
			return 1
		case string(rpc.CommitmentConfirmed):
			return 2
		case string(rpc.CommitmentFinalized):
			return 3
		default:
			return 0
		}
	}
	return rank(string(status)) >= rank(string(commitment))
}
