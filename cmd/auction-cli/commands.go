package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/solhaus/marketplace/internal/broadcast"
	"github.com/solhaus/marketplace/internal/config"
	"github.com/solhaus/marketplace/internal/receipts"
	"github.com/solhaus/marketplace/internal/trade"
	"github.com/solhaus/marketplace/internal/wallet"
)

type app struct {
	cfg config.CLIConfig
	log *slog.Logger

	rpc     *rpc.Client
	caster  *broadcast.Broadcaster
	engine  *trade.Engine
	journal *receipts.Store
	closers []func()
}

// connect builds the RPC client, broadcaster, engine, and optional journal.
// Without a websocket endpoint the broadcaster confirms by polling alone.
func (a *app) connect(ctx context.Context) error {
	if a.rpc != nil {
		return nil
	}
	a.rpc = rpc.New(a.cfg.RPCURL)

	var subscriber broadcast.SignatureSubscriber
	if a.cfg.WSURL != "" {
		wsClient, err := ws.Connect(ctx, a.cfg.WSURL)
		if err != nil {
			a.log.Warn("websocket connect failed, confirming by polling only", "url", a.cfg.WSURL, "err", err)
		} else {
			subscriber = broadcast.NewWSSubscriber(wsClient)
			a.closers = append(a.closers, wsClient.Close)
		}
	}

	a.caster = broadcast.New(a.rpc, subscriber, broadcast.Config{
		Commitment:    a.cfg.Commitment,
		SkipPreflight: a.cfg.SkipPreflight,
		Retry: broadcast.RetryPolicy{
			ResubmitInterval: a.cfg.ResubmitInterval,
			PollInterval:     a.cfg.StatusPollInterval,
			Timeout:          a.cfg.TxTimeout,
		},
	}, a.log)

	a.engine = trade.NewEngine(a.rpc, a.caster, trade.Config{
		ProgramID:         a.cfg.AuctionHouseProgramID,
		MetadataProgramID: a.cfg.TokenMetadataProgramID,
		Commitment:        a.cfg.Commitment,
	}, a.log)

	if a.cfg.ReceiptsDSN != "" {
		journal, err := receipts.Open(a.cfg.ReceiptsDSN)
		if err != nil {
			return fmt.Errorf("open receipts journal: %w", err)
		}
		a.journal = journal
		a.closers = append(a.closers, func() { _ = journal.Close() })
	}
	return nil
}

func (a *app) close() {
	for _, closeFn := range a.closers {
		closeFn()
	}
}

func (a *app) signer() (solana.PrivateKey, error) {
	return wallet.Load(a.cfg.KeypairPath)
}

func (a *app) record(ctx context.Context, op string, house, mint, owner solana.PublicKey, result *trade.TradeResult) {
	err := a.journal.Record(ctx, receipts.Receipt{
		Op:         op,
		House:      house.String(),
		Mint:       mint.String(),
		Wallet:     owner.String(),
		TradeState: result.TradeState.String(),
		Price:      result.Price,
		Size:       result.Size,
		Signature:  result.Receipt.Signature.String(),
		Slot:       result.Receipt.Slot,
	})
	if err != nil {
		a.log.Warn("failed to journal receipt", "op", op, "err", err)
	}
}

func newRootCmd(cfg config.CLIConfig, log *slog.Logger) *cobra.Command {
	a := &app{cfg: cfg, log: log}

	root := &cobra.Command{
		Use:           "auction-cli",
		Short:         "Trade assets through an on-chain auction house",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}
	root.AddCommand(
		newCreateHouseCmd(a),
		newSellCmd(a),
		newBuyCmd(a),
		newExecuteSaleCmd(a),
		newCancelCmd(a),
		newShowHouseCmd(a),
		newShowEscrowCmd(a),
		newAirdropCmd(a),
	)
	return root
}

// tradeFlags is the flag set shared by the order-mutating commands.
type tradeFlags struct {
	house        string
	mint         string
	tokenAccount string
	price        string
	size         string
}

func (f *tradeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.house, "house", "", "auction house address")
	cmd.Flags().StringVar(&f.mint, "mint", "", "asset mint address")
	cmd.Flags().StringVar(&f.tokenAccount, "token-account", "", "token account holding the asset (derived when omitted)")
	cmd.Flags().StringVar(&f.price, "price", "", "price in treasury-mint units")
	cmd.Flags().StringVar(&f.size, "size", "1", "amount of the asset")
	_ = cmd.MarkFlagRequired("house")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("price")
}

func (f *tradeFlags) parse() (house, mint, tokenAccount solana.PublicKey, price, size decimal.Decimal, err error) {
	if house, err = solana.PublicKeyFromBase58(f.house); err != nil {
		err = fmt.Errorf("invalid --house: %w", err)
		return
	}
	if mint, err = solana.PublicKeyFromBase58(f.mint); err != nil {
		err = fmt.Errorf("invalid --mint: %w", err)
		return
	}
	if f.tokenAccount != "" {
		if tokenAccount, err = solana.PublicKeyFromBase58(f.tokenAccount); err != nil {
			err = fmt.Errorf("invalid --token-account: %w", err)
			return
		}
	}
	if price, err = decimal.NewFromString(f.price); err != nil {
		err = fmt.Errorf("invalid --price: %w", err)
		return
	}
	if size, err = decimal.NewFromString(f.size); err != nil {
		err = fmt.Errorf("invalid --size: %w", err)
	}
	return
}

func optionalPubkey(flag, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, nil
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return pk, nil
}

func newCreateHouseCmd(a *app) *cobra.Command {
	var (
		treasuryMint       string
		authority          string
		feeWithdrawal      string
		treasuryWithdrawal string
		sellerFeeBps       uint16
		requiresSignOff    bool
		canChangeSalePrice bool
	)
	cmd := &cobra.Command{
		Use:   "create-house",
		Short: "Create an auction house with the loaded keypair as payer",
		RunE: func(cmd *cobra.Command, args []string) error {
			payer, err := a.signer()
			if err != nil {
				return err
			}
			params := trade.CreateHouseParams{
				SellerFeeBasisPoints: sellerFeeBps,
				RequiresSignOff:      requiresSignOff,
				CanChangeSalePrice:   canChangeSalePrice,
			}
			if params.TreasuryMint, err = optionalPubkey("treasury-mint", treasuryMint); err != nil {
				return err
			}
			if params.Authority, err = optionalPubkey("authority", authority); err != nil {
				return err
			}
			if params.FeeWithdrawalDestination, err = optionalPubkey("fee-withdrawal", feeWithdrawal); err != nil {
				return err
			}
			if params.TreasuryWithdrawalDestination, err = optionalPubkey("treasury-withdrawal", treasuryWithdrawal); err != nil {
				return err
			}

			created, err := a.engine.CreateHouse(cmd.Context(), payer, params)
			if err != nil {
				return err
			}
			a.log.Info("auction house created",
				"house", created.House, "fee_account", created.FeeAccount, "treasury", created.Treasury,
				"signature", created.Receipt.Signature, "slot", created.Receipt.Slot)
			return nil
		},
	}
	cmd.Flags().StringVar(&treasuryMint, "treasury-mint", "", "treasury mint (native when omitted)")
	cmd.Flags().StringVar(&authority, "authority", "", "house authority (payer when omitted)")
	cmd.Flags().StringVar(&feeWithdrawal, "fee-withdrawal", "", "fee withdrawal destination (payer when omitted)")
	cmd.Flags().StringVar(&treasuryWithdrawal, "treasury-withdrawal", "", "treasury withdrawal owner (payer when omitted)")
	cmd.Flags().Uint16Var(&sellerFeeBps, "seller-fee-bps", 0, "house fee in basis points")
	cmd.Flags().BoolVar(&requiresSignOff, "requires-sign-off", false, "authority must co-sign orders")
	cmd.Flags().BoolVar(&canChangeSalePrice, "can-change-sale-price", false, "authority may reprice free listings")
	return cmd
}

func newSellCmd(a *app) *cobra.Command {
	flags := &tradeFlags{}
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "List an asset at a price",
		RunE: func(cmd *cobra.Command, args []string) error {
			house, mint, tokenAccount, price, size, err := flags.parse()
			if err != nil {
				return err
			}
			seller, err := a.signer()
			if err != nil {
				return err
			}
			result, err := a.engine.Sell(cmd.Context(), seller, trade.SellParams{
				House: house, Mint: mint, TokenAccount: tokenAccount, Price: price, Size: size,
			})
			if err != nil {
				return err
			}
			a.record(cmd.Context(), "sell", house, mint, seller.PublicKey(), result)
			a.log.Info("listing confirmed",
				"trade_state", result.TradeState, "price", result.Price, "size", result.Size,
				"signature", result.Receipt.Signature, "slot", result.Receipt.Slot)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newBuyCmd(a *app) *cobra.Command {
	flags := &tradeFlags{}
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Place an offer and escrow the funds",
		RunE: func(cmd *cobra.Command, args []string) error {
			house, mint, tokenAccount, price, size, err := flags.parse()
			if err != nil {
				return err
			}
			buyer, err := a.signer()
			if err != nil {
				return err
			}
			result, err := a.engine.Buy(cmd.Context(), buyer, trade.BuyParams{
				House: house, Mint: mint, TokenAccount: tokenAccount, Price: price, Size: size,
			})
			if err != nil {
				return err
			}
			a.record(cmd.Context(), "buy", house, mint, buyer.PublicKey(), result)
			a.log.Info("offer confirmed",
				"trade_state", result.TradeState, "price", result.Price, "size", result.Size,
				"signature", result.Receipt.Signature, "slot", result.Receipt.Slot)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newExecuteSaleCmd(a *app) *cobra.Command {
	flags := &tradeFlags{}
	var buyerFlag, sellerFlag string
	cmd := &cobra.Command{
		Use:   "execute-sale",
		Short: "Settle a matched listing and offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			house, mint, tokenAccount, price, size, err := flags.parse()
			if err != nil {
				return err
			}
			buyer, err := optionalPubkey("buyer", buyerFlag)
			if err != nil {
				return err
			}
			seller, err := optionalPubkey("seller", sellerFlag)
			if err != nil {
				return err
			}
			payer, err := a.signer()
			if err != nil {
				return err
			}
			if buyer.IsZero() {
				buyer = payer.PublicKey()
			}
			result, err := a.engine.ExecuteSale(cmd.Context(), payer, trade.ExecuteSaleParams{
				House: house, Mint: mint, Buyer: buyer, Seller: seller,
				TokenAccount: tokenAccount, Price: price, Size: size,
			})
			if err != nil {
				return err
			}
			a.record(cmd.Context(), "execute-sale", house, mint, payer.PublicKey(), result)
			a.log.Info("sale settled",
				"buyer", buyer, "seller", seller, "price", result.Price, "size", result.Size,
				"signature", result.Receipt.Signature, "slot", result.Receipt.Slot)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&buyerFlag, "buyer", "", "buyer wallet (loaded keypair when omitted)")
	cmd.Flags().StringVar(&sellerFlag, "seller", "", "seller wallet")
	_ = cmd.MarkFlagRequired("seller")
	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	flags := &tradeFlags{}
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Withdraw a standing listing or offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			house, mint, tokenAccount, price, size, err := flags.parse()
			if err != nil {
				return err
			}
			owner, err := a.signer()
			if err != nil {
				return err
			}
			result, err := a.engine.Cancel(cmd.Context(), owner, trade.CancelParams{
				House: house, Mint: mint, TokenAccount: tokenAccount, Price: price, Size: size,
			})
			if err != nil {
				return err
			}
			a.record(cmd.Context(), "cancel", house, mint, owner.PublicKey(), result)
			a.log.Info("order cancelled",
				"trade_state", result.TradeState, "price", result.Price, "size", result.Size,
				"signature", result.Receipt.Signature, "slot", result.Receipt.Slot)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newShowHouseCmd(a *app) *cobra.Command {
	var houseFlag string
	cmd := &cobra.Command{
		Use:   "show-house",
		Short: "Show a house's configuration and balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			house, err := solana.PublicKeyFromBase58(houseFlag)
			if err != nil {
				return fmt.Errorf("invalid --house: %w", err)
			}
			info, err := a.engine.ShowHouse(cmd.Context(), house)
			if err != nil {
				return err
			}
			a.log.Info("auction house",
				"house", info.Address, "authority", info.Authority, "creator", info.Creator,
				"treasury_mint", info.TreasuryMint, "fee_account", info.FeeAccount,
				"treasury", info.Treasury, "seller_fee_bps", info.SellerFeeBasisPoints,
				"requires_sign_off", info.RequiresSignOff, "can_change_sale_price", info.CanChangeSalePrice,
				"fee_balance", info.FeeBalance, "treasury_balance", info.TreasuryBalance)
			return nil
		},
	}
	cmd.Flags().StringVar(&houseFlag, "house", "", "auction house address")
	_ = cmd.MarkFlagRequired("house")
	return cmd
}

func newShowEscrowCmd(a *app) *cobra.Command {
	var houseFlag, walletFlag string
	cmd := &cobra.Command{
		Use:   "show-escrow",
		Short: "Show a wallet's escrow balance under a house",
		RunE: func(cmd *cobra.Command, args []string) error {
			house, err := solana.PublicKeyFromBase58(houseFlag)
			if err != nil {
				return fmt.Errorf("invalid --house: %w", err)
			}
			owner, err := optionalPubkey("wallet", walletFlag)
			if err != nil {
				return err
			}
			if owner.IsZero() {
				key, err := a.signer()
				if err != nil {
					return err
				}
				owner = key.PublicKey()
			}
			escrow, err := a.engine.ShowEscrow(cmd.Context(), house, owner)
			if err != nil {
				return err
			}
			a.log.Info("buyer escrow",
				"house", house, "wallet", owner, "escrow", escrow.Address, "balance", escrow.Balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&houseFlag, "house", "", "auction house address")
	cmd.Flags().StringVar(&walletFlag, "wallet", "", "buyer wallet (loaded keypair when omitted)")
	_ = cmd.MarkFlagRequired("house")
	return cmd
}

func newAirdropCmd(a *app) *cobra.Command {
	var (
		amount string
		toFlag string
	)
	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Request test-cluster funds and wait for confirmation",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount: %w", err)
			}
			lamports, err := trade.ToNativeAmount(value, 9)
			if err != nil {
				return fmt.Errorf("invalid --amount: %w", err)
			}
			to, err := optionalPubkey("to", toFlag)
			if err != nil {
				return err
			}
			if to.IsZero() {
				key, err := a.signer()
				if err != nil {
					return err
				}
				to = key.PublicKey()
			}
			receipt, err := wallet.Airdrop(cmd.Context(), a.rpc, a.caster, to, lamports, a.cfg.Commitment)
			if err != nil {
				return err
			}
			balance, err := wallet.Balance(cmd.Context(), a.rpc, to, a.cfg.Commitment)
			if err != nil {
				return err
			}
			a.log.Info("airdrop confirmed",
				"to", to, "lamports", lamports, "signature", receipt.Signature,
				"slot", receipt.Slot, "balance", balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "1", "amount in SOL")
	cmd.Flags().StringVar(&toFlag, "to", "", "recipient (loaded keypair when omitted)")
	return cmd
}
