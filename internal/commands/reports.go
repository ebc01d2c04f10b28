package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kuberx/internal/analytics"
	"kuberx/internal/export"
	"kuberx/internal/services"
)

// reportFlags are the analytics knobs shared by the report commands.
type reportFlags struct {
	days      int
	top       int
	rate      float64
	threshold float64
	order     string
	ranges    string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.days, "days", 0, "recent activity window in days (default from config)")
	cmd.Flags().IntVar(&f.top, "top", 0, "number of top borrowers (default from config)")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "monthly interest rate for loans without one, in percent")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "interest to principal ratio that flags a loan, in percent")
	cmd.Flags().StringVar(&f.order, "order", "", "recent activity order: raw or parsed")
	cmd.Flags().StringVar(&f.ranges, "ranges", "", "amount histogram bounds, e.g. 0-5000,5000-10000,10000+")
}

func (f *reportFlags) options(cmd *cobra.Command) (analytics.Options, error) {
	opts := analytics.Options{
		RecentDays: f.days,
		TopN:       f.top,
	}
	if f.days < 0 || f.top < 0 || f.rate < 0 || f.threshold < 0 {
		return opts, fmt.Errorf("numeric flags must not be negative")
	}
	if cmd.Flags().Changed("rate") {
		opts = opts.WithRate(f.rate)
	}
	if cmd.Flags().Changed("threshold") {
		opts = opts.WithThreshold(f.threshold)
	}
	var err error
	if f.order != "" {
		if opts.RecentOrder, err = analytics.ParseRecentOrder(f.order); err != nil {
			return opts, err
		}
	}
	if f.ranges != "" {
		if opts.AmountRanges, err = analytics.ParseAmountRanges(f.ranges); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func newDashboardCommand(open Opener) *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the portfolio dashboard as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), open, func(svc *services.LoanService) error {
				d, err := svc.Dashboard(cmd.Context(), opts)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), d)
			})
		},
	}
	flags.register(cmd)

	return cmd
}

func newInterestCommand(open Opener) *cobra.Command {
	var flags reportFlags
	var asJSON bool
	var all bool

	cmd := &cobra.Command{
		Use:   "interest",
		Short: "List loans whose accrued interest crossed the threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), open, func(svc *services.LoanService) error {
				rep, err := svc.Interest(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), rep)
				}
				loans := rep.AboveThreshold
				if all {
					loans = rep.Loans
				}
				return printInterest(cmd, rep, loans)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "list every analyzed loan, not just those above the threshold")

	return cmd
}

func printInterest(cmd *cobra.Command, rep analytics.InterestReport, loans []analytics.AnalyzedLoan) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tRECORD\tNAME\tWARD\tDATE\tPRINCIPAL\tRATE\tMONTHS\tACCRUED\tRATIO%")
	for _, l := range loans {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.1f\t%.2f\t%.1f\n",
			l.Row, l.RecordID, l.Name, l.Place, l.Date,
			l.Principal, l.Rate, l.MonthsElapsed, l.InterestAccrued, l.RatioPercent)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d loans at or above %.0f%% of principal, %d defaulters\n",
		len(rep.AboveThreshold), len(rep.Loans), rep.ThresholdPercent, len(rep.Defaulters))
	fmt.Fprintf(cmd.OutOrStdout(), "principal %.2f  accrued %.2f  due %.2f\n",
		rep.TotalPrincipal, rep.TotalAccrued, rep.TotalDue)
	return nil
}

func newExportCommand(open Opener) *cobra.Command {
	var flags reportFlags
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dashboard and interest report to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), open, func(svc *services.LoanService) error {
				d, err := svc.Dashboard(cmd.Context(), opts)
				if err != nil {
					return err
				}
				rep, err := svc.Interest(cmd.Context(), opts)
				if err != nil {
					return err
				}

				path := out
				if path == "" {
					path = fmt.Sprintf("kuberx-%s.xlsx", d.GeneratedAt.Format("2006-01-02"))
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating %s: %w", path, err)
				}
				if err := export.Write(f, d, rep); err != nil {
					_ = f.Close()
					return fmt.Errorf("writing workbook: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("closing %s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default kuberx-<date>.xlsx)")

	return cmd
}
