// Command ledger is the command-line front end of the household ledger.
//
//	ledger add -date 15/01/2025 -kind Fixed -category Housing -amount 1200 -desc Rent
//	ledger totals -month 1 -year 2025
//	ledger export -month 1 -year 2025 [-dest report.xlsx | -dest gsheets://<id>]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"household/internal/amqp"
	"household/internal/cli"
	"household/internal/core"
	applog "household/internal/log"
	"household/internal/services"
)

const usage = `usage: ledger <command> [flags]

commands:
  add         record an expense (fixed expenses repeat for 12 months)
  delete      delete one expense row by id
  list        list the expenses of a period
  totals      print income, expenses and balance of a period
  salaries    show or set the two monthly salaries
  income      set the extra income of a period
  category    list, add or delete categories
  export      write the report of a period`

func main() {
	if len(os.Args) < 2 || isHelp(os.Args[1]) {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(applog.ComponentCLI)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	var opts []services.Option
	if cfg.AMQPURL != "" && strings.EqualFold(os.Args[1], "export") {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, exporting synchronously", applog.FieldError, err.Error())
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
		}
	}
	svc, _ := cli.NewLedgerService(ctx, logger, cfg, repo, opts...)

	if err := run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "ledger:", err)
		if errors.Is(err, core.ErrValidation) || errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func isHelp(s string) bool {
	return s == "help" || s == "-h" || s == "--help"
}

// run executes one command against svc and writes its output to out.
func run(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	cmd, rest := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "add":
		return cmdAdd(ctx, svc, rest, out)
	case "delete":
		return cmdDelete(ctx, svc, rest, out)
	case "list":
		return cmdList(ctx, svc, rest, out)
	case "totals":
		return cmdTotals(ctx, svc, rest, out)
	case "salaries":
		return cmdSalaries(ctx, svc, rest, out)
	case "income":
		return cmdIncome(ctx, svc, rest, out)
	case "category":
		return cmdCategory(ctx, svc, rest, out)
	case "export":
		return cmdExport(ctx, svc, rest, out)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// periodFlags registers -month and -year defaulting to the current month.
func periodFlags(fs *flag.FlagSet) (*int, *int) {
	now := time.Now()
	return fs.Int("month", int(now.Month()), "month (1-12)"), fs.Int("year", now.Year(), "year")
}

func cmdAdd(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := newFlagSet("add")
	date := fs.String("date", time.Now().Format("02/01/2006"), "date (dd/mm/yyyy, m/yy, yyyy-mm-dd)")
	kind := fs.String("kind", string(core.Variable), "Fixed or Variable")
	category := fs.String("category", "", "category label")
	desc := fs.String("desc", "", "description")
	amount := fs.String("amount", "", "amount (12.34 or 12,34)")
	months := fs.Int("months", 0, "months a variable expense repeats for")
	if err := parse(fs, args); err != nil {
		return err
	}

	ids, err := svc.AddExpense(ctx, services.ExpenseInput{
		Date:             *date,
		Kind:             *kind,
		Category:         *category,
		Description:      *desc,
		Amount:           *amount,
		RecurrenceMonths: *months,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added %d row(s), first id %d\n", len(ids), ids[0])
	return nil
}

func cmdDelete(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := newFlagSet("delete")
	id := fs.Int64("id", 0, "expense id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("%w: -id is required", core.ErrValidation)
	}
	if err := svc.DeleteExpense(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d\n", *id)
	return nil
}

func cmdList(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := newFlagSet("list")
	month, year := periodFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	rows, err := svc.ExpensesForPeriod(ctx, *month, *year)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tDate\tKind\tCategory\tDescription\tAmount\t")
	for _, e := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			e.ID, e.Date, e.Kind, e.Category, e.Description, core.FormatAmount(e.Amount))
	}
	return tw.Flush()
}

func cmdTotals(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := newFlagSet("totals")
	month, year := periodFlags(fs)
	byCategory := fs.Bool("by-category", false, "also print expenses per category")
	if err := parse(fs, args); err != nil {
		return err
	}
	sum, err := svc.Summary(ctx, *month, *year)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "period   %02d/%d\n", *month, *year)
	fmt.Fprintf(out, "income   %s\n", core.FormatAmount(sum.Income))
	fmt.Fprintf(out, "expenses %s\n", core.FormatAmount(sum.Expense))
	fmt.Fprintf(out, "balance  %s\n", core.FormatAmount(sum.Balance))
	if *byCategory {
		for _, c := range sum.ByCategory {
			fmt.Fprintf(out, "  %-20s %s\n", c.Name, core.FormatAmount(c.Amount))
		}
	}
	return nil
}

func cmdSalaries(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := newFlagSet("salaries")
	primary := fs.String("primary", "", "primary salary")
	secondary := fs.String("secondary", "", "secondary salary")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *primary != "" || *secondary != "" {
		current, err := svc.Salaries(ctx)
		if err != nil {
			return err
		}
		p, s := current.Primary, current.Secondary
		if *primary != "" {
			if p, err = core.ParseAmount(*primary); err != nil {
				return err
			}
		}
		if *secondary != "" {
			if s, err = core.ParseAmount(*secondary); err != nil {
				return err
			}
		}
		if err := svc.SetSalaries(ctx, p, s); err != nil {
			return err
		}
	}

	sal, err := svc.Salaries(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "primary   %s\nsecondary %s\n", core.FormatAmount(sal.Primary), core.FormatAmount(sal.Secondary))
	return nil
}

func cmdIncome(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := newFlagSet("income")
	month, year := periodFlags(fs)
	desc := fs.String("desc", "", "description")
	amount := fs.String("amount", "", "amount")
	if err := parse(fs, args); err != nil {
		return err
	}
	amt, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	inc, err := svc.AddExtraIncome(ctx, *month, *year, *desc, amt)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "extra income %q for %02d/%d set to %s\n", inc.Description, inc.Month, inc.Year, core.FormatAmount(inc.Amount))
	return nil
}

func cmdCategory(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	action := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action, args = args[0], args[1:]
	}
	fs := newFlagSet("category " + action)
	name := fs.String("name", "", "category name")
	icon := fs.String("icon", "", "optional icon")
	if err := parse(fs, args); err != nil {
		return err
	}

	switch action {
	case "add":
		if err := svc.AddCategory(ctx, *name, *icon); err != nil {
			return err
		}
		fmt.Fprintf(out, "added %s\n", strings.TrimSpace(*name))
		return nil
	case "delete":
		if err := svc.DeleteCategory(ctx, *name); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", strings.TrimSpace(*name))
		return nil
	case "list":
		cats, err := svc.Categories(ctx)
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Fprintln(out, c.Label())
		}
		return nil
	}
	return fmt.Errorf("%w: unknown category action %q", errUsage, action)
}

func cmdExport(ctx context.Context, svc *services.LedgerService, args []string, out io.Writer) error {
	fs := newFlagSet("export")
	month, year := periodFlags(fs)
	dest := fs.String("dest", "", "file path or gsheets://<spreadsheet id>")
	async := fs.Bool("async", false, "queue the export for the worker")
	if err := parse(fs, args); err != nil {
		return err
	}

	if *async {
		queued, err := svc.RequestExport(ctx, *month, *year, *dest)
		if err != nil {
			return err
		}
		if queued {
			fmt.Fprintf(out, "export of %02d/%d queued\n", *month, *year)
		} else {
			fmt.Fprintf(out, "no broker configured, report of %02d/%d written\n", *month, *year)
		}
		return nil
	}
	written, err := svc.ExportReport(ctx, *month, *year, *dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "report written to %s\n", written)
	return nil
}
