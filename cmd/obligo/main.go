package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"obligo/internal/allocator"
	"obligo/internal/cli"
	"obligo/internal/core"
	"obligo/internal/ledger"
	"obligo/internal/members"
	"obligo/internal/services"
)

const usage = `Usage: obligo <command> [flags]

Ledger commands (all take -kind bills|policies|goals):
  init                          initialize the ledgers
  create  -kind -name -amount -due [-category] [-every]
                                open an obligation (-every N repeats every N days)
  settle  -kind -id             settle an open obligation
  get     -kind -id             show one obligation
  list    -kind                 list open obligations
  total   -kind                 show cached open count and total

Split commands:
  split-config                  show the current percentage split
  split-set -spend -save -bills -insurance -owner
                                replace the split configuration
  split   -amount               preview the four shares for an amount
  allocate -amount [-sender]    split an amount and open the obligations

Member commands:
  member-add -address -name -role -limit
  member-list
  member-limit -address -limit
`

type app struct {
	ledgers  map[string]*ledger.Ledger
	alloc    *allocator.Allocator
	registry *members.Registry
	wallet   *services.WalletService
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("obligo")

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	store := cli.OpenStore(logger, cfg)
	defer store.Close()
	sink, closeSink := cli.OpenSink(logger, cfg)
	defer closeSink()

	ledgerOpts := []ledger.Option{
		ledger.WithActor(cfg.Actor),
		ledger.WithLeaseTTL(cfg.LeaseTTL),
	}
	a := &app{
		ledgers: map[string]*ledger.Ledger{
			ledger.KindBills:    ledger.New(ledger.KindBills, store, sink, ledgerOpts...),
			ledger.KindPolicies: ledger.New(ledger.KindPolicies, store, sink, ledgerOpts...),
			ledger.KindGoals: ledger.New(ledger.KindGoals, store, sink,
				append(ledgerOpts, ledger.WithFutureDueRequired())...),
		},
		alloc:    allocator.New(store, sink, allocator.WithLeaseTTL(cfg.LeaseTTL)),
		registry: members.NewRegistry(store, sink, members.WithLeaseTTL(cfg.LeaseTTL)),
	}
	a.wallet = services.NewWalletService(
		a.alloc,
		a.ledgers[ledger.KindBills],
		a.ledgers[ledger.KindPolicies],
		a.ledgers[ledger.KindGoals],
		services.WithRegistry(a.registry),
	)

	ctx := context.Background()
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "init":
		return a.initLedgers(ctx)
	case "create":
		return a.create(ctx, args)
	case "settle":
		return a.settle(ctx, args)
	case "get":
		return a.get(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "total":
		return a.total(ctx, args)
	case "split-config":
		return a.splitConfig(ctx)
	case "split-set":
		return a.splitSet(ctx, args)
	case "split":
		return a.split(ctx, args)
	case "allocate":
		return a.allocate(ctx, args)
	case "member-add":
		return a.memberAdd(ctx, args)
	case "member-list":
		return a.memberList(ctx)
	case "member-limit":
		return a.memberLimit(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) ledger(kind string) (*ledger.Ledger, error) {
	l, ok := a.ledgers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q: must be bills, policies or goals", kind)
	}
	return l, nil
}

func (a *app) initLedgers(ctx context.Context) error {
	for kind, l := range a.ledgers {
		if err := l.Initialize(ctx); err != nil {
			if errors.Is(err, ledger.ErrAlreadyInitialized) {
				fmt.Printf("%s: already initialized\n", kind)
				continue
			}
			return fmt.Errorf("initialize %s: %w", kind, err)
		}
		fmt.Printf("%s: initialized\n", kind)
	}
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	kind := fs.String("kind", "", "ledger kind")
	name := fs.String("name", "", "obligation name")
	category := fs.String("category", "", "free-form category")
	amount := fs.String("amount", "", "amount in minor units")
	due := fs.Uint64("due", 0, "due date as unix seconds")
	every := fs.Uint("every", 0, "repeat every N days (0 = one-time)")
	fs.Parse(args)

	l, err := a.ledger(*kind)
	if err != nil {
		return err
	}
	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}

	draft := core.Draft{
		Name:     *name,
		Category: *category,
		Amount:   amt,
		Due:      *due,
	}
	if *every > 0 {
		draft.Recurrence = &core.Recurrence{FrequencyDays: uint32(*every)}
	}

	id, err := l.Create(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Printf("created %s obligation %d\n", *kind, id)
	return nil
}

func (a *app) settle(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	kind := fs.String("kind", "", "ledger kind")
	id := fs.Uint64("id", 0, "obligation id")
	fs.Parse(args)

	l, err := a.ledger(*kind)
	if err != nil {
		return err
	}
	settled, err := l.Settle(ctx, *id)
	if err != nil {
		return err
	}
	if !settled {
		fmt.Printf("%s obligation %d was already settled\n", *kind, *id)
		return nil
	}
	fmt.Printf("settled %s obligation %d\n", *kind, *id)
	return nil
}

func (a *app) get(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	kind := fs.String("kind", "", "ledger kind")
	id := fs.Uint64("id", 0, "obligation id")
	fs.Parse(args)

	l, err := a.ledger(*kind)
	if err != nil {
		return err
	}
	rec, err := l.Get(ctx, *id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no %s obligation %d", *kind, *id)
	}
	printRecord(*rec)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	kind := fs.String("kind", "", "ledger kind")
	fs.Parse(args)

	l, err := a.ledger(*kind)
	if err != nil {
		return err
	}
	open, err := l.ListOpen(ctx)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		fmt.Printf("no open %s obligations\n", *kind)
		return nil
	}
	for _, rec := range open {
		printRecord(rec)
	}
	return nil
}

func (a *app) total(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("total", flag.ExitOnError)
	kind := fs.String("kind", "", "ledger kind")
	fs.Parse(args)

	l, err := a.ledger(*kind)
	if err != nil {
		return err
	}
	agg, err := l.Aggregates(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d open, total %s\n", *kind, agg.OpenCount, agg.TotalOpen)
	return nil
}

func (a *app) splitConfig(ctx context.Context) error {
	cfg, err := a.alloc.Current(ctx)
	if err != nil {
		return err
	}
	owner, ok, err := a.alloc.Owner(ctx)
	if err != nil {
		return err
	}
	if !ok {
		owner = "(default)"
	}
	fmt.Printf("spend %d%%  save %d%%  bills %d%%  insurance %d%%  set by %s\n",
		cfg.Spend, cfg.Save, cfg.Bills, cfg.Insurance, owner)
	return nil
}

func (a *app) splitSet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("split-set", flag.ExitOnError)
	spend := fs.Uint("spend", 0, "spend percentage")
	save := fs.Uint("save", 0, "save percentage")
	bills := fs.Uint("bills", 0, "bills percentage")
	insurance := fs.Uint("insurance", 0, "insurance percentage")
	owner := fs.String("owner", "", "who is setting the configuration")
	fs.Parse(args)

	cfg := core.SplitConfig{
		Spend:     uint32(*spend),
		Save:      uint32(*save),
		Bills:     uint32(*bills),
		Insurance: uint32(*insurance),
	}
	if err := a.alloc.Configure(ctx, cfg, *owner); err != nil {
		return err
	}
	fmt.Println("split configuration updated")
	return nil
}

func (a *app) split(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("split", flag.ExitOnError)
	amount := fs.String("amount", "", "amount in minor units")
	fs.Parse(args)

	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	shares, err := a.alloc.Split(ctx, amt)
	if err != nil {
		return err
	}
	fmt.Printf("spend %s  save %s  bills %s  insurance %s\n",
		shares.Spend, shares.Save, shares.Bills, shares.Insurance)
	return nil
}

func (a *app) allocate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("allocate", flag.ExitOnError)
	amount := fs.String("amount", "", "amount in minor units")
	sender := fs.String("sender", "", "sending member address (optional)")
	fs.Parse(args)

	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	out, err := a.wallet.AllocateRemittance(ctx, *sender, amt)
	if err != nil {
		return err
	}
	fmt.Printf("spend %s  save %s  bills %s  insurance %s\n",
		out.Amounts.Spend, out.Amounts.Save, out.Amounts.Bills, out.Amounts.Insurance)
	if out.BillID != 0 {
		fmt.Printf("opened bills obligation %d\n", out.BillID)
	}
	if out.PolicyID != 0 {
		fmt.Printf("opened insurance obligation %d\n", out.PolicyID)
	}
	if out.GoalID != 0 {
		fmt.Printf("opened savings obligation %d\n", out.GoalID)
	}
	return nil
}

func (a *app) memberAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("member-add", flag.ExitOnError)
	address := fs.String("address", "", "member address")
	name := fs.String("name", "", "member name")
	role := fs.String("role", "", "sender, recipient or admin")
	limit := fs.String("limit", "0", "spending limit in minor units")
	fs.Parse(args)

	lim, err := core.ParseLimit(*limit)
	if err != nil {
		return err
	}
	m := members.Member{
		Address:       *address,
		Name:          *name,
		SpendingLimit: lim,
		Role:          members.Role(*role),
	}
	if err := a.registry.Add(ctx, m); err != nil {
		return err
	}
	fmt.Printf("added member %s\n", *address)
	return nil
}

func (a *app) memberList(ctx context.Context) error {
	list, err := a.registry.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no members registered")
		return nil
	}
	for _, m := range list {
		fmt.Printf("%-20s %-10s limit %-12s %s\n", m.Address, m.Role, m.SpendingLimit, m.Name)
	}
	return nil
}

func (a *app) memberLimit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("member-limit", flag.ExitOnError)
	address := fs.String("address", "", "member address")
	limit := fs.String("limit", "", "new spending limit in minor units")
	fs.Parse(args)

	lim, err := core.ParseLimit(*limit)
	if err != nil {
		return err
	}
	ok, err := a.registry.UpdateSpendingLimit(ctx, *address, lim)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no member %s", *address)
	}
	fmt.Printf("updated limit for %s\n", *address)
	return nil
}

func printRecord(rec core.Record) {
	repeat := "one-time"
	if rec.Recurrence != nil {
		repeat = fmt.Sprintf("every %d days", rec.Recurrence.FrequencyDays)
	}
	fmt.Printf("%4d  %-8s %-12s due %s  %s  %s\n",
		rec.ID,
		rec.State,
		rec.Amount,
		time.Unix(int64(rec.Due), 0).UTC().Format("2006-01-02"),
		repeat,
		rec.Name)
}
