// Package console drives an exchange from line-oriented text commands, one
// command per line:
//
//	faucet   <account> <symbol> <amount>
//	deposit  <account> <symbol> <amount>
//	withdraw <account> <symbol> <amount>
//	limit    <account> <symbol> <buy|sell> <amount> <price>
//	market   <account> <symbol> <buy|sell> <amount>
//	orders   <symbol> <buy|sell>
//	depth    <symbol> <buy|sell>
//	balance  <account> <symbol>
//
// Amounts are decimals in whole asset units; prices are integers in quote
// base units per asset base unit. Lines starting with # are ignored.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"dex/internal/common"
	"dex/internal/engine"
	"dex/internal/fixed"
	"dex/internal/token"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("wrong number of arguments")
	ErrNoFaucet       = errors.New("no faucet for asset")
)

type Console struct {
	engine   *engine.Engine
	tokens   map[common.Symbol]*token.Token
	decimals int32
	out      io.Writer
}

func New(eng *engine.Engine, tokens map[common.Symbol]*token.Token, decimals int32, out io.Writer) *Console {
	return &Console{
		engine:   eng,
		tokens:   tokens,
		decimals: decimals,
		out:      out,
	}
}

// Run executes commands from r until EOF or ctx is done. A failing command
// prints its error and does not stop the run.
func (c *Console) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := c.Exec(ctx, line); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// Exec runs a single command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "faucet", "deposit", "withdraw":
		if len(args) != 3 {
			return fmt.Errorf("%w: %s <account> <symbol> <amount>", ErrUsage, cmd)
		}
		account, symbol := common.Account(args[0]), common.Symbol(args[1])
		amount, err := fixed.Parse(args[2], c.decimals)
		if err != nil {
			return err
		}
		return c.transfer(ctx, cmd, account, symbol, amount)

	case "limit":
		if len(args) != 5 {
			return fmt.Errorf("%w: limit <account> <symbol> <buy|sell> <amount> <price>", ErrUsage)
		}
		side, err := parseSide(args[2])
		if err != nil {
			return err
		}
		amount, err := fixed.Parse(args[3], c.decimals)
		if err != nil {
			return err
		}
		price, err := fixed.Parse(args[4], 0)
		if err != nil {
			return err
		}
		id, err := c.engine.CreateLimitOrder(common.Symbol(args[1]), amount, price, side, common.Account(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "order %d accepted\n", id)
		return nil

	case "market":
		if len(args) != 4 {
			return fmt.Errorf("%w: market <account> <symbol> <buy|sell> <amount>", ErrUsage)
		}
		side, err := parseSide(args[2])
		if err != nil {
			return err
		}
		amount, err := fixed.Parse(args[3], c.decimals)
		if err != nil {
			return err
		}
		if err := c.engine.CreateMarketOrder(common.Symbol(args[1]), amount, side, common.Account(args[0])); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "market order executed")
		return nil

	case "orders", "depth":
		if len(args) != 2 {
			return fmt.Errorf("%w: %s <symbol> <buy|sell>", ErrUsage, cmd)
		}
		side, err := parseSide(args[1])
		if err != nil {
			return err
		}
		symbol := common.Symbol(args[0])
		if cmd == "orders" {
			c.printOrders(symbol, side)
		} else {
			c.printDepth(symbol, side)
		}
		return nil

	case "balance":
		if len(args) != 2 {
			return fmt.Errorf("%w: balance <account> <symbol>", ErrUsage)
		}
		account, symbol := common.Account(args[0]), common.Symbol(args[1])
		fmt.Fprintf(c.out, "%s %s: %s (available %s)\n",
			account, symbol,
			c.engine.BalanceOf(account, symbol).Format(c.decimals),
			c.engine.Available(account, symbol).Format(c.decimals))
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}

func (c *Console) transfer(ctx context.Context, cmd string, account common.Account, symbol common.Symbol, amount fixed.Amount) error {
	switch cmd {
	case "faucet":
		tok, ok := c.tokens[symbol]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoFaucet, symbol)
		}
		if err := tok.Faucet(account, amount); err != nil {
			return err
		}
	case "deposit":
		if err := c.engine.Deposit(ctx, amount, symbol, account); err != nil {
			return err
		}
	case "withdraw":
		if err := c.engine.Withdraw(ctx, amount, symbol, account); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "%s %s %s %s ok\n", cmd, account, amount.Format(c.decimals), symbol)
	return nil
}

func (c *Console) printOrders(symbol common.Symbol, side common.Side) {
	orders := c.engine.GetOrders(symbol, side)
	fmt.Fprintf(c.out, "%s %v: %d orders\n", symbol, side, len(orders))
	for _, order := range orders {
		fmt.Fprintf(c.out, "  #%d %s price=%s amount=%s filled=%s\n",
			order.ID, order.Trader, order.Price,
			order.Amount.Format(c.decimals), order.Filled.Format(c.decimals))
	}
}

func (c *Console) printDepth(symbol common.Symbol, side common.Side) {
	levels := c.engine.Depth(symbol, side)
	fmt.Fprintf(c.out, "%s %v: %d levels\n", symbol, side, len(levels))
	for _, level := range levels {
		fmt.Fprintf(c.out, "  %s x %s (%d orders)\n",
			level.PriceLevel, level.Quantity.Format(c.decimals), len(level.Orders))
	}
}

func parseSide(s string) (common.Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return common.Buy, nil
	case "sell":
		return common.Sell, nil
	}
	return 0, fmt.Errorf("%w: %q", engine.ErrInvalidSide, s)
}
