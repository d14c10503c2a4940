// Command dealflow runs the dataset cleaning pipeline, one step at a time or
// end to end, and renders the insights workbook.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dealflow/internal/backfill"
	"dealflow/internal/dataset"
	"dealflow/internal/insights"
	"dealflow/internal/logging"
	"dealflow/internal/pipeline"
	"dealflow/pkg/utils"
)

type rootOptions struct {
	configPath string
	logLevel   string

	cfg    utils.Config
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "dealflow",
		Short:         "Clean and impute the startup investment dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = utils.ConfigPath()
			}
			cfg, err := utils.LoadConfig(path)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			logger, err := logging.Init(cfg.Logging)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Close()
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default: $DEALFLOW_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(newRunCmd(opts))
	for _, name := range pipeline.Steps() {
		root.AddCommand(newStepCmd(opts, name))
	}
	root.AddCommand(newReportCmd(opts))
	return root
}

// pathFlags lets any data path from the config be overridden per invocation.
func pathFlags(cmd *cobra.Command, p *utils.DataConfig) {
	f := cmd.Flags()
	f.StringVar(&p.RawDeals, "raw-deals", "", "raw deals CSV")
	f.StringVar(&p.Deals, "deals", "", "deals CSV (read by most steps, written by roundtype)")
	f.StringVar(&p.Companies, "companies", "", "companies CSV")
	f.StringVar(&p.CompaniesCleaned, "companies-cleaned", "", "cleaned companies CSV read by backfill")
	f.StringVar(&p.Investors, "investors", "", "investors CSV with countries")
	f.StringVar(&p.InvestorsEDA, "investors-eda", "", "investors CSV the tags step enriches")
	f.StringVar(&p.DealInvestors, "deal-investors", "", "deal-investor CSV")
	f.StringVar(&p.CompaniesOut, "companies-out", "", "companies output CSV")
	f.StringVar(&p.DealInvestorsOut, "deal-investors-out", "", "deal-investor output CSV")
	f.StringVar(&p.InvestorsOut, "investors-out", "", "investors output CSV")
}

func mergePaths(base utils.DataConfig, over utils.DataConfig) utils.DataConfig {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&base.RawDeals, over.RawDeals)
	pick(&base.Deals, over.Deals)
	pick(&base.Companies, over.Companies)
	pick(&base.CompaniesCleaned, over.CompaniesCleaned)
	pick(&base.Investors, over.Investors)
	pick(&base.InvestorsEDA, over.InvestorsEDA)
	pick(&base.DealInvestors, over.DealInvestors)
	pick(&base.CompaniesOut, over.CompaniesOut)
	pick(&base.DealInvestorsOut, over.DealInvestorsOut)
	pick(&base.InvestorsOut, over.InvestorsOut)
	pick(&base.InsightsOut, over.InsightsOut)
	return base
}

func (o *rootOptions) runner(over utils.DataConfig, withBackfill bool) (*pipeline.Runner, error) {
	var lookup backfill.Lookup
	if withBackfill {
		bc := o.cfg.Backfill
		bc.Enabled = true
		l, err := backfill.FromConfig(bc, o.logger)
		if err != nil {
			return nil, err
		}
		lookup = l
	}
	data := mergePaths(o.cfg.Data, over)
	r := pipeline.NewRunner(pipeline.PathsFromConfig(data), pipeline.Options{
		Lookup: lookup,
		Delay:  o.cfg.Backfill.Delay,
	}, o.logger)
	return r, nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		over     utils.DataConfig
		withFill bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every step in order and write the final CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			fill := withFill || opts.cfg.Backfill.Enabled
			r, err := opts.runner(over, fill)
			if err != nil {
				return err
			}
			sum, err := r.Run(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd, sum)
			return nil
		},
	}
	pathFlags(cmd, &over)
	cmd.Flags().BoolVar(&withFill, "backfill", false, "look up missing founding dates on the web")
	return cmd
}

var stepHelp = map[string]string{
	pipeline.StepRoundType:   "Classify deals with a placeholder round type by amount",
	pipeline.StepLatestRound: "Fill each company's latest round type and date from its deals",
	pipeline.StepFounded:     "Estimate missing founding dates from the earliest deal",
	pipeline.StepBackfill:    "Look up still-missing founding dates on the web",
	pipeline.StepSanitize:    "Clear company date cells that are not YYYY-MM-DD",
	pipeline.StepCountries:   "Fill investor countries on deal-investor rows",
	pipeline.StepTags:        "Derive investor stages and sectors from their deals",
}

func newStepCmd(opts *rootOptions, name string) *cobra.Command {
	var over utils.DataConfig
	cmd := &cobra.Command{
		Use:   name,
		Short: stepHelp[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.runner(over, name == pipeline.StepBackfill)
			if err != nil {
				return err
			}
			sum, err := r.RunStep(cmd.Context(), name)
			if err != nil {
				return err
			}
			printSummary(cmd, sum)
			return nil
		},
	}
	pathFlags(cmd, &over)
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		out      string
		from, to int
		top      int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the insights workbook from the final CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := insights.Window{From: from, To: to}
			if w.From > w.To {
				return fmt.Errorf("--from %d is after --to %d", from, to)
			}
			if out == "" {
				out = opts.cfg.Data.InsightsOut
			}
			if out == "" {
				return errors.New("no output path: set --out or data.insights_out")
			}
			ds, err := dataset.Load(dataset.FilesFromConfig(opts.cfg.Data))
			if err != nil {
				return err
			}
			rep := insights.Build(ds.Deals, ds.DealInvestors, w, top)
			if err := rep.SaveXLSX(out); err != nil {
				return err
			}
			opts.logger.Info("insights workbook written", "path", out, "deals", rep.Summary.Deals)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "workbook path (default: data.insights_out)")
	cmd.Flags().IntVar(&from, "from", insights.DefaultFromYear, "first year included")
	cmd.Flags().IntVar(&to, "to", insights.DefaultToYear, "last year included")
	cmd.Flags().IntVar(&top, "top", insights.DefaultTopN, "rows in the ranked sheets")
	return cmd
}

func printSummary(cmd *cobra.Command, sum pipeline.Summary) {
	w := cmd.OutOrStdout()
	for _, st := range sum.Steps {
		for _, rep := range st.Reports {
			fmt.Fprintf(w, "%-12s %-16s filled=%d cleared=%d remaining=%d\n",
				rep.Step, rep.Column, rep.Filled, rep.Cleared, rep.Remaining)
		}
	}
	if b := sum.Backfill; b != nil {
		fmt.Fprintf(w, "backfill     lookups=%d found=%d not_found=%d failed=%d\n",
			b.Lookups, b.Found, b.NotFound, b.Failed)
	}
	for _, p := range sum.Outputs {
		fmt.Fprintf(w, "wrote %s\n", p)
	}
}
