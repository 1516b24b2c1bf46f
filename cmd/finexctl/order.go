package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rickgao/finex-ws/internal/order"
	"github.com/rickgao/finex-ws/internal/wire"
)

type placeOptions struct {
	symbol    string
	side      string
	price     string
	size      string
	orderType string
	flags     int
}

func (o *placeOptions) params() (order.Params, error) {
	side := order.Side(strings.ToLower(o.side))
	if side != order.SideBuy && side != order.SideSell {
		return order.Params{}, fmt.Errorf("--side must be buy or sell, got %q", o.side)
	}

	typ := order.Type(strings.ToLower(o.orderType))
	if typ != order.TypeLimit && typ != order.TypeMarket {
		return order.Params{}, fmt.Errorf("--type must be limit or market, got %q", o.orderType)
	}

	price, err := decimal.NewFromString(o.price)
	if err != nil {
		return order.Params{}, fmt.Errorf("parse --price: %w", err)
	}
	size, err := decimal.NewFromString(o.size)
	if err != nil {
		return order.Params{}, fmt.Errorf("parse --size: %w", err)
	}

	return order.Params{
		Symbol: o.symbol,
		Side:   side,
		Price:  price,
		Size:   size,
		Type:   typ,
		Flags:  o.flags,
	}, nil
}

func newPlaceCmd(root *rootOptions) *cobra.Command {
	opts := &placeOptions{}

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Authenticate and place a signed order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := opts.params()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.authenticate(cmd.Context()); err != nil {
				return err
			}

			res, err := a.client.Place(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("place order: %w", err)
			}
			return writeJSON(cmd, res.Data)
		},
	}
	cmd.Flags().StringVar(&opts.symbol, "symbol", "", "market symbol")
	cmd.Flags().StringVar(&opts.side, "side", "", "buy or sell")
	cmd.Flags().StringVar(&opts.price, "price", "", "limit price")
	cmd.Flags().StringVar(&opts.size, "size", "", "order size")
	cmd.Flags().StringVar(&opts.orderType, "type", string(order.TypeLimit), "limit or market")
	cmd.Flags().IntVar(&opts.flags, "flags", 0, "order flags")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("size")
	return cmd
}

func newCancelCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Send a cancel for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.client.Cancel(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cancel order: %w", err)
			}
			return writeJSON(cmd, res.Data)
		},
	}
}

type verifyOptions struct {
	uuid    string
	meta    string
	timeout time.Duration
}

func (o *verifyOptions) parseMeta() (wire.RawMessage, error) {
	if o.uuid == "" {
		return nil, order.ErrMissingUUID
	}
	var meta wire.RawMessage
	if err := wire.Unmarshal([]byte(o.meta), &meta); err != nil {
		return nil, fmt.Errorf("parse --meta: %w", err)
	}
	return meta, nil
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signed transaction on the auxiliary channel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			meta, err := opts.parseMeta()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.close()

			reply, err := a.client.VerifyTx(cmd.Context(), meta, opts.uuid, order.VerifyOptions{
				RequestTimeout: opts.timeout,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, reply.Data)
		},
	}
	cmd.Flags().StringVar(&opts.uuid, "uuid", "", "transaction uuid")
	cmd.Flags().StringVar(&opts.meta, "meta", "null", "signed transaction JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "reply deadline (default from config)")
	return cmd
}

func newAuthCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Run the authentication handshake and print the session account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.authenticate(cmd.Context()); err != nil {
				return err
			}

			acct, _ := a.client.Session().Account()
			_, keysOK := a.client.Session().Keys()
			return writeJSON(cmd, map[string]any{
				"account":      acct.Name,
				"permission":   acct.Permission,
				"session_keys": keysOK,
			})
		},
	}
}
