package main

import (
	"fmt"
	"os"

	"github.com/pquinter/fisim/internal/calculation"
	"github.com/pquinter/fisim/internal/config"
	"github.com/pquinter/fisim/internal/output"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	inputFile  string
	formatName string
	outputFile string
	verbose    bool

	simulations int
	seed        int64
	stdDev      float64
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fisim",
		Short: "Multi-year personal finance projection engine",
		Long: `fisim projects cash flows, taxes, debt and investable assets over a
multi-year horizon from a YAML plan, deterministically or as a seeded
Monte Carlo batch.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&inputFile, "input", "i", "", "plan file (YAML)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log simulation steps to stderr")
	_ = root.MarkPersistentFlagRequired("input")

	root.AddCommand(newRunCmd(), newMonteCarloCmd())
	return root
}

func logger() calculation.Logger {
	if verbose {
		return calculation.WriterLogger{W: os.Stderr, Verbose: true}
	}
	return calculation.NopLogger{}
}

func loadModel() (*calculation.FinancialModel, error) {
	plan, err := config.NewInputParser().LoadFromFile(inputFile)
	if err != nil {
		return nil, err
	}
	return config.BuildModel(plan, logger())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the projection and report per-year series",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := loadModel()
			if err != nil {
				return err
			}
			if err := model.Run(0); err != nil {
				return err
			}

			formatter, err := output.ByName(formatName)
			if err != nil {
				return err
			}
			data, err := formatter.Format(model.Projection())
			if err != nil {
				return err
			}
			if outputFile != "" {
				return os.WriteFile(outputFile, data, 0644)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", "console", "output format (console, csv)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	return cmd
}

func newMonteCarloCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "Run a seeded Monte Carlo batch and report the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := loadModel()
			if err != nil {
				return err
			}
			// flags override any monte_carlo block in the plan
			if model.Paths() == 1 {
				err := model.EnableMonteCarlo(calculation.MonteCarloConfig{
					NumSimulations: simulations,
					StdDev:         decimal.NewFromFloat(stdDev),
					Seed:           seed,
				})
				if err != nil {
					return err
				}
			}
			if err := model.Run(0); err != nil {
				return err
			}
			summary, err := model.Summarize()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(output.FormatMonteCarloSummary(summary))
			return err
		},
	}
	cmd.Flags().IntVarP(&simulations, "simulations", "n", 1000, "number of simulation paths")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().Float64Var(&stdDev, "stddev", 0.15, "std dev of sampled yearly growth multipliers")
	return cmd
}
