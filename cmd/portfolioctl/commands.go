package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"portfolio-sim-go/internal/auth"
	"portfolio-sim-go/internal/client"
	"portfolio-sim-go/internal/ledger"
	"portfolio-sim-go/internal/market"
	"portfolio-sim-go/internal/models"
	"portfolio-sim-go/internal/portfolio"
)

// API is the part of the server API the commands use. *client.RestClient implements it.
type API interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*models.Profile, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (*models.Profile, error)
	Logout(ctx context.Context) error
	Markets(ctx context.Context) ([]market.Quote, error)
	Portfolio(ctx context.Context) (*portfolio.View, error)
	Transactions(ctx context.Context, limit int) ([]ledger.Transaction, error)
	Invest(ctx context.Context, symbol market.Symbol, amount decimal.Decimal) (*portfolio.Position, error)
	Sell(ctx context.Context, symbol market.Symbol) (*portfolio.Position, error)
	Withdraw(ctx context.Context, amount decimal.Decimal) (*portfolio.View, error)
	Deposit(ctx context.Context) (*client.Notice, error)
	PreviewInvest(ctx context.Context, symbol market.Symbol, amount decimal.Decimal) (*portfolio.InvestPreview, error)
	PreviewInvestPercent(ctx context.Context, symbol market.Symbol, percent decimal.Decimal) (*portfolio.InvestPreview, error)
	Simulator(ctx context.Context, action string) (*client.SimulatorStatus, error)
}

var _ API = (*client.RestClient)(nil)

// Connector builds the API client once a command runs.
type Connector func() (API, error)

// Commands returns every portfolioctl subcommand writing to out.
func Commands(connect Connector, out io.Writer) []subcommands.Command {
	b := base{connect: connect, out: out}
	return []subcommands.Command{
		&marketsCmd{base: b},
		&summaryCmd{base: b},
		&historyCmd{base: b},
		&investCmd{base: b},
		&sellCmd{base: b},
		&withdrawCmd{base: b},
		&depositCmd{base: b},
		&loginCmd{base: b},
		&registerCmd{base: b},
		&logoutCmd{base: b},
		&simulatorCmd{base: b},
	}
}

type base struct {
	connect Connector
	out     io.Writer
}

// run connects and calls fn, reporting any error on stderr.
func (b base) run(fn func(api API) error) subcommands.ExitStatus {
	api, err := b.connect()
	if err == nil {
		err = fn(api)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (b base) table() *tabwriter.Writer {
	return tabwriter.NewWriter(b.out, 0, 4, 2, ' ', 0)
}

type marketsCmd struct{ base }

func (*marketsCmd) Name() string     { return "markets" }
func (*marketsCmd) Synopsis() string { return "list the simulated asset prices" }
func (*marketsCmd) Usage() string {
	return `portfolioctl markets

  Prints every asset with its current price and change percent.
`
}
func (*marketsCmd) SetFlags(*flag.FlagSet) {}

func (c *marketsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(func(api API) error {
		quotes, err := api.Markets(ctx)
		if err != nil {
			return err
		}
		w := c.table()
		fmt.Fprintln(w, "SYMBOL\tNAME\tPRICE\tCHANGE")
		for _, q := range quotes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", q.Symbol, q.Name, q.Price.String(), portfolio.FormatPercent(q.ChangePercent))
		}
		return w.Flush()
	})
}

type summaryCmd struct{ base }

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show balances, profit and holdings" }
func (*summaryCmd) Usage() string {
	return `portfolioctl summary

  Prints the cash balance, portfolio value, profit, withdrawable amount and
  every open position with its allocation.
`
}
func (*summaryCmd) SetFlags(*flag.FlagSet) {}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(func(api API) error {
		view, err := api.Portfolio(ctx)
		if err != nil {
			return err
		}
		return printView(c.out, view)
	})
}

func printView(out io.Writer, view *portfolio.View) error {
	fmt.Fprintf(out, "Cash balance:     %s\n", view.Display.CashBalance)
	fmt.Fprintf(out, "Portfolio value:  %s\n", view.Display.PortfolioValue)
	fmt.Fprintf(out, "Total profit:     %s\n", view.Display.TotalProfit)
	fmt.Fprintf(out, "Withdrawable:     %s\n", view.Display.Withdrawable)
	fmt.Fprintf(out, "Active positions: %d\n", view.ActivePositions)
	if len(view.Holdings) == 0 {
		return nil
	}

	alloc := make(map[market.Symbol]string, len(view.Allocation))
	for _, a := range view.Allocation {
		alloc[a.Symbol] = a.Label
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tQUANTITY\tINVESTED\tVALUE\tP&L\tALLOCATION")
	for _, h := range view.Holdings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", h.Symbol, h.Quantity.StringFixed(8),
			portfolio.FormatUSD(h.CostBasis), portfolio.FormatUSD(h.MarketValue),
			portfolio.FormatUSD(h.UnrealizedPnL), alloc[h.Symbol])
	}
	return w.Flush()
}

type historyCmd struct {
	base
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list recent transactions, newest first" }
func (*historyCmd) Usage() string {
	return `portfolioctl history [-n <count>]
`
}
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 10, "Number of transactions to show.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(func(api API) error {
		txs, err := api.Transactions(ctx, c.limit)
		if err != nil {
			return err
		}
		w := c.table()
		fmt.Fprintln(w, "TIME\tTYPE\tASSET\tAMOUNT\tDESCRIPTION")
		for _, tx := range txs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tx.Timestamp.Local().Format("2006-01-02 15:04:05"),
				tx.Kind, tx.Symbol, portfolio.FormatUSD(tx.Amount), tx.Description)
		}
		return w.Flush()
	})
}

type investCmd struct {
	base
	percent string
	preview bool
}

func (*investCmd) Name() string     { return "invest" }
func (*investCmd) Synopsis() string { return "buy an asset with cash" }
func (*investCmd) Usage() string {
	return `portfolioctl invest [-preview] <symbol> <amount>
portfolioctl invest [-preview] -percent <p> <symbol>

  Spends <amount> USD, or <p> percent of the cash balance, on <symbol> at the
  current price. With -preview nothing is bought.
`
}
func (c *investCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.percent, "percent", "", "Invest this percent of the cash balance instead of an amount.")
	f.BoolVar(&c.preview, "preview", false, "Only show what the investment would buy.")
}

func (c *investCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	want := 2
	if c.percent != "" {
		want = 1
	}
	if f.NArg() != want {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	symbol := parseSymbol(f.Arg(0))
	raw := c.percent
	if raw == "" {
		raw = f.Arg(1)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid amount %q\n", raw)
		return subcommands.ExitUsageError
	}

	return c.run(func(api API) error {
		amount := value
		if c.percent != "" || c.preview {
			var p *portfolio.InvestPreview
			if c.percent != "" {
				p, err = api.PreviewInvestPercent(ctx, symbol, value)
			} else {
				p, err = api.PreviewInvest(ctx, symbol, value)
			}
			if err != nil {
				return err
			}
			if c.preview {
				fmt.Fprintf(c.out, "%s buys %s %s at %s (available %s).\n", portfolio.FormatUSD(p.Amount),
					p.Quantity.StringFixed(portfolio.PreviewQuantityPlaces), symbol, p.Price.String(), portfolio.FormatUSD(p.Available))
				return nil
			}
			amount = p.Amount
		}

		pos, err := api.Invest(ctx, symbol, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Invested %s in %s. Holding %s %s worth %s.\n", portfolio.FormatUSD(amount), symbol,
			pos.Quantity.StringFixed(8), symbol, portfolio.FormatUSD(pos.MarketValue))
		return nil
	})
}

type sellCmd struct{ base }

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell a whole position" }
func (*sellCmd) Usage() string {
	return `portfolioctl sell <symbol>
`
}
func (*sellCmd) SetFlags(*flag.FlagSet) {}

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	symbol := parseSymbol(f.Arg(0))
	return c.run(func(api API) error {
		pos, err := api.Sell(ctx, symbol)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Sold %s for %s (P&L %s).\n", symbol, portfolio.FormatUSD(pos.MarketValue), portfolio.FormatUSD(pos.UnrealizedPnL))
		return nil
	})
}

type withdrawCmd struct{ base }

func (*withdrawCmd) Name() string           { return "withdraw" }
func (*withdrawCmd) Synopsis() string       { return "withdraw profit from the account" }
func (*withdrawCmd) Usage() string          { return "portfolioctl withdraw <amount>\n" }
func (*withdrawCmd) SetFlags(*flag.FlagSet) {}

func (c *withdrawCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	amount, err := decimal.NewFromString(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid amount %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}
	return c.run(func(api API) error {
		view, err := api.Withdraw(ctx, amount)
		if err != nil {
			return err
		}
		return printView(c.out, view)
	})
}

type depositCmd struct{ base }

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "submit a deposit for verification" }
func (*depositCmd) Usage() string {
	return `portfolioctl deposit

  Deposits are verified on the blockchain before they are credited.
`
}
func (*depositCmd) SetFlags(*flag.FlagSet) {}

func (c *depositCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(func(api API) error {
		notice, err := api.Deposit(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: %s\n", notice.Title, notice.Message)
		return nil
	})
}

type loginCmd struct {
	base
	email    string
	password string
	remember bool
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in to the dashboard" }
func (*loginCmd) Usage() string {
	return `portfolioctl login -email <email> [-remember]

  The password is read from -password or the PORTFOLIO_PASSWORD variable.
`
}
func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email.")
	f.StringVar(&c.password, "password", "", "Account password.")
	f.BoolVar(&c.remember, "remember", false, "Keep the session until logout.")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	password := passwordOrEnv(c.password)
	if c.email == "" || password == "" {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	return c.run(func(api API) error {
		user, err := api.Login(ctx, c.email, password, c.remember)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Welcome back, %s!\n", displayName(user))
		return nil
	})
}

type registerCmd struct {
	base
	req auth.RegisterRequest
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account with a welcome bonus" }
func (*registerCmd) Usage() string {
	return `portfolioctl register -first <name> -last <name> -email <email> [-phone <phone>] [-referral <code>]

  The password is read from -password or the PORTFOLIO_PASSWORD variable.
`
}
func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.req.FirstName, "first", "", "First name.")
	f.StringVar(&c.req.LastName, "last", "", "Last name.")
	f.StringVar(&c.req.Email, "email", "", "Email.")
	f.StringVar(&c.req.Phone, "phone", "", "Phone number.")
	f.StringVar(&c.req.Password, "password", "", "Password, at least 8 characters.")
	f.StringVar(&c.req.ReferralCode, "referral", "", "Referral code.")
	f.BoolVar(&c.req.MarketingConsent, "marketing", false, "Accept marketing messages.")
}

func (c *registerCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req := c.req
	req.Password = passwordOrEnv(req.Password)
	req.ConfirmPassword = req.Password
	if err := req.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return c.run(func(api API) error {
		user, err := api.Register(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Welcome, %s! Your account has been credited with %s.\n", displayName(user),
			portfolio.FormatUSD(portfolio.DefaultStartingBonus))
		return nil
	})
}

type logoutCmd struct{ base }

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "end the dashboard session" }
func (*logoutCmd) Usage() string            { return "portfolioctl logout\n" }
func (*logoutCmd) SetFlags(f *flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(func(api API) error {
		if err := api.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Logged out.")
		return nil
	})
}

type simulatorCmd struct{ base }

func (*simulatorCmd) Name() string     { return "simulator" }
func (*simulatorCmd) Synopsis() string { return "show, start or stop the price simulation" }
func (*simulatorCmd) Usage() string {
	return `portfolioctl simulator [status|start|stop]
`
}
func (*simulatorCmd) SetFlags(*flag.FlagSet) {}

func (c *simulatorCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	action := f.Arg(0)
	switch action {
	case "", "status":
		action = ""
	case "start", "stop":
	default:
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	return c.run(func(api API) error {
		status, err := api.Simulator(ctx, action)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Simulator is %s after %d ticks.\n", status.State, status.Ticks)
		return nil
	})
}

func parseSymbol(s string) market.Symbol {
	return market.Symbol(strings.ToUpper(strings.TrimSpace(s)))
}

func passwordOrEnv(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("PORTFOLIO_PASSWORD")
}

func displayName(p *models.Profile) string {
	u := models.User{FirstName: p.FirstName}
	return u.DisplayName()
}
