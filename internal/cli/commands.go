package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"

	"github.com/simaogato/capitalflow-backend/internal/domain"
	"github.com/simaogato/capitalflow-backend/internal/usecase/wacc"
)

type addCmd struct {
	env   *Env
	name  string
	rate  string
	cents string
	date  string
	notes string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a new capital source to the ledger" }
func (*addCmd) Usage() string {
	return `capitalctl add -name <name> -rate <rate> -cents <amount> [-d <date>] [-notes <text>]

  Records an ADDED entry for a new funding source and prints its source id.
  The rate is a decimal fraction (0.14 = 14%), the amount is in cents.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Name of the capital source.")
	f.StringVar(&c.rate, "rate", "", "Annual rate as a decimal fraction, e.g. 0.05.")
	f.StringVar(&c.cents, "cents", "", "Available amount in cents.")
	f.StringVar(&c.date, "d", "", "Effective date (defaults to now).")
	f.StringVar(&c.notes, "notes", "", "Free-form note stored with the entry.")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" || c.rate == "" || c.cents == "" {
		return c.env.usageError("-name, -rate and -cents are required")
	}
	rate, err := domain.ParseRate(c.rate)
	if err != nil {
		return c.env.usageError(err.Error())
	}
	cents, err := domain.ParseCents(c.cents)
	if err != nil {
		return c.env.usageError(err.Error())
	}

	return c.env.run(ctx, func(svc *services) error {
		date, err := parseDate(c.date, svc.history.Now())
		if err != nil {
			return err
		}
		input := domain.NewCapitalSource{Name: c.name, AnnualRate: rate, AvailableCents: cents}
		id, err := svc.history.AddSource(ctx, input, date, c.notes)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.env.stdout(), id)
		return nil
	})
}

type setAmountCmd struct {
	env    *Env
	source string
	cents  string
	date   string
	notes  string
}

func (*setAmountCmd) Name() string     { return "set-amount" }
func (*setAmountCmd) Synopsis() string { return "change the available amount of a capital source" }
func (*setAmountCmd) Usage() string {
	return `capitalctl set-amount -id <source_id> -cents <amount> [-d <date>] [-notes <text>]
`
}

func (c *setAmountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "id", "", "Source id.")
	f.StringVar(&c.cents, "cents", "", "New available amount in cents.")
	f.StringVar(&c.date, "d", "", "Effective date (defaults to now).")
	f.StringVar(&c.notes, "notes", "", "Free-form note stored with the entry.")
}

func (c *setAmountCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.source == "" || c.cents == "" {
		return c.env.usageError("-id and -cents are required")
	}
	cents, err := domain.ParseCents(c.cents)
	if err != nil {
		return c.env.usageError(err.Error())
	}

	return c.env.run(ctx, func(svc *services) error {
		date, err := parseDate(c.date, svc.history.Now())
		if err != nil {
			return err
		}
		return svc.history.UpdateAmount(ctx, domain.SourceID(c.source), cents, date, c.notes)
	})
}

type setRateCmd struct {
	env    *Env
	source string
	rate   string
	date   string
	notes  string
}

func (*setRateCmd) Name() string     { return "set-rate" }
func (*setRateCmd) Synopsis() string { return "change the annual rate of a capital source" }
func (*setRateCmd) Usage() string {
	return `capitalctl set-rate -id <source_id> -rate <rate> [-d <date>] [-notes <text>]
`
}

func (c *setRateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "id", "", "Source id.")
	f.StringVar(&c.rate, "rate", "", "New annual rate as a decimal fraction.")
	f.StringVar(&c.date, "d", "", "Effective date (defaults to now).")
	f.StringVar(&c.notes, "notes", "", "Free-form note stored with the entry.")
}

func (c *setRateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.source == "" || c.rate == "" {
		return c.env.usageError("-id and -rate are required")
	}
	rate, err := domain.ParseRate(c.rate)
	if err != nil {
		return c.env.usageError(err.Error())
	}

	return c.env.run(ctx, func(svc *services) error {
		date, err := parseDate(c.date, svc.history.Now())
		if err != nil {
			return err
		}
		return svc.history.UpdateRate(ctx, domain.SourceID(c.source), rate, date, c.notes)
	})
}

type removeCmd struct {
	env    *Env
	source string
	date   string
	notes  string
}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "remove a capital source from the active set" }
func (*removeCmd) Usage() string {
	return `capitalctl remove -id <source_id> [-d <date>] [-notes <text>]

  The source stays in the history; it is inactive from the effective date on.
`
}

func (c *removeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "id", "", "Source id.")
	f.StringVar(&c.date, "d", "", "Effective date (defaults to now).")
	f.StringVar(&c.notes, "notes", "", "Free-form note stored with the entry.")
}

func (c *removeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.source == "" {
		return c.env.usageError("-id is required")
	}

	return c.env.run(ctx, func(svc *services) error {
		date, err := parseDate(c.date, svc.history.Now())
		if err != nil {
			return err
		}
		return svc.history.RemoveSource(ctx, domain.SourceID(c.source), date, c.notes)
	})
}

type historyCmd struct {
	env    *Env
	source string
	from   string
	to     string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list ledger entries" }
func (*historyCmd) Usage() string {
	return `capitalctl history [-id <source_id>] [-from <date> -to <date>]

  Lists ledger entries ordered by effective date, optionally restricted to one
  source and/or an inclusive date range.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.source, "id", "", "Only show entries of this source.")
	f.StringVar(&c.from, "from", "", "Start of the date range (inclusive).")
	f.StringVar(&c.to, "to", "", "End of the date range (inclusive; a YYYY-MM-DD date covers the whole day).")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.from == "") != (c.to == "") {
		return c.env.usageError("-from and -to must be used together")
	}

	return c.env.run(ctx, func(svc *services) error {
		var (
			entries []domain.CapitalSourceHistoryEntry
			err     error
		)
		if c.from != "" {
			from, err := parseDate(c.from, time.Time{})
			if err != nil {
				return err
			}
			to, err := parseEndDate(c.to)
			if err != nil {
				return err
			}
			entries, err = svc.history.HistoryInRange(ctx, from, to)
			if err != nil {
				return err
			}
		} else {
			entries, err = svc.history.History(ctx)
			if err != nil {
				return err
			}
		}
		if c.source != "" {
			entries = domain.EntriesForSource(entries, domain.SourceID(c.source))
		}

		w := newTable(c.env.stdout())
		fmt.Fprintln(w, "DATE\tSEQ\tACTION\tNAME\tRATE\tAMOUNT\tSOURCE\tNOTES")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.EffectiveDate.Format(time.RFC3339), e.Sequence, e.Action, e.Name,
				percent(e.AnnualRate), e.AvailableCents.Display(c.env.Currency), e.SourceID, e.Notes)
		}
		return w.Flush()
	})
}

type activeCmd struct {
	env  *Env
	date string
}

func (*activeCmd) Name() string     { return "active" }
func (*activeCmd) Synopsis() string { return "list the capital sources active at a date" }
func (*activeCmd) Usage() string {
	return `capitalctl active [-d <date>]
`
}

func (c *activeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "As-of date (defaults to now).")
}

func (c *activeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(svc *services) error {
		asOf, err := parseDate(c.date, svc.history.Now())
		if err != nil {
			return err
		}
		sources, err := svc.history.ActiveSources(ctx, asOf)
		if err != nil {
			return err
		}

		w := newTable(c.env.stdout())
		fmt.Fprintln(w, "NAME\tRATE\tAVAILABLE\tSOURCE")
		for _, s := range sources {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, percent(s.AnnualRate), s.AvailableCents.Display(c.env.Currency), s.SourceID)
		}
		return w.Flush()
	})
}

type waccCmd struct {
	env  *Env
	date string
}

func (*waccCmd) Name() string     { return "wacc" }
func (*waccCmd) Synopsis() string { return "compute the weighted average cost of capital at a date" }
func (*waccCmd) Usage() string {
	return `capitalctl wacc [-d <date>]
`
}

func (c *waccCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "As-of date (defaults to now).")
}

func (c *waccCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(svc *services) error {
		date, err := parseDate(c.date, svc.history.Now())
		if err != nil {
			return err
		}
		snapshot, err := svc.wacc.SnapshotAt(ctx, date)
		if err != nil {
			return err
		}

		w := newTable(c.env.stdout())
		fmt.Fprintf(w, "Date:\t%s\n", snapshot.Date.Format(time.RFC3339))
		fmt.Fprintf(w, "WACC:\t%s\n", percent(snapshot.WACC))
		fmt.Fprintf(w, "Total capital:\t%s\n", snapshot.TotalCapitalCents.Display(c.env.Currency))
		fmt.Fprintf(w, "Sources:\t%d\n", len(snapshot.Sources))
		return w.Flush()
	})
}

// periodFlags are shared by trend and summary
type periodFlags struct {
	period    string
	reference string
	start     string
	end       string
}

func (p *periodFlags) set(f *flag.FlagSet) {
	f.StringVar(&p.period, "p", "monthly", "Period type (monthly, quarterly, yearly, 60-day, 90-day, custom).")
	f.StringVar(&p.reference, "d", "", "Reference date (defaults to now).")
	f.StringVar(&p.start, "s", "", "Start of a custom range.")
	f.StringVar(&p.end, "e", "", "End of a custom range (a YYYY-MM-DD date covers the whole day).")
}

func (p *periodFlags) resolve(now time.Time) (domain.PeriodType, time.Time, *domain.DateRange, error) {
	periodType, err := domain.ParsePeriodType(p.period)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	reference, err := parseDate(p.reference, now)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	if periodType != domain.PeriodCustom {
		return periodType, reference, nil, nil
	}
	if p.start == "" || p.end == "" {
		return "", time.Time{}, nil, fmt.Errorf("%w: custom period needs -s and -e", domain.ErrInvalidPeriod)
	}
	start, err := parseDate(p.start, time.Time{})
	if err != nil {
		return "", time.Time{}, nil, err
	}
	end, err := parseEndDate(p.end)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	custom := domain.NewDateRange(start, end)
	return periodType, reference, &custom, nil
}

type trendCmd struct {
	env *Env
	periodFlags
}

func (*trendCmd) Name() string     { return "trend" }
func (*trendCmd) Synopsis() string { return "show WACC and total capital per period" }
func (*trendCmd) Usage() string {
	return `capitalctl trend [-p <period>] [-d <reference_date>] [-s <start> -e <end>]

  Evaluates WACC at the end of each generated period, oldest first.
`
}

func (c *trendCmd) SetFlags(f *flag.FlagSet) { c.periodFlags.set(f) }

func (c *trendCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(svc *services) error {
		periodType, reference, custom, err := c.resolve(svc.history.Now())
		if err != nil {
			return err
		}
		periods, err := domain.GeneratePeriods(periodType, reference, custom)
		if err != nil {
			return err
		}
		points, err := svc.wacc.Trend(ctx, periods)
		if err != nil {
			return err
		}

		w := newTable(c.env.stdout())
		fmt.Fprintln(w, "PERIOD\tWACC\tTOTAL CAPITAL")
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Period, percent(p.WACC), p.TotalCapitalCents.Display(c.env.Currency))
		}
		return w.Flush()
	})
}

type summaryCmd struct {
	env *Env
	periodFlags
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "summarize WACC over a reporting window" }
func (*summaryCmd) Usage() string {
	return `capitalctl summary [-p <period>] [-d <reference_date>] [-s <start> -e <end>]

  Prints WACC at the start and end of the window and its time-weighted average.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) { c.periodFlags.set(f) }

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.env.run(ctx, func(svc *services) error {
		periodType, reference, custom, err := c.resolve(svc.history.Now())
		if err != nil {
			return err
		}
		summary, err := svc.wacc.PeriodSummary(ctx, periodType, reference, custom)
		if err != nil {
			return err
		}
		printSummary(c.env, summary)
		return nil
	})
}

func printSummary(env *Env, s *wacc.PeriodSummary) {
	w := newTable(env.stdout())
	fmt.Fprintf(w, "From:\t%s\n", s.From.Format(time.RFC3339))
	fmt.Fprintf(w, "To:\t%s\n", s.To.Format(time.RFC3339))
	fmt.Fprintf(w, "Start WACC:\t%s\n", percent(s.Start))
	fmt.Fprintf(w, "End WACC:\t%s\n", percent(s.End))
	fmt.Fprintf(w, "Average WACC:\t%s\n", percent(s.Average))
	_ = w.Flush()
}
