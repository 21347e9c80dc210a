package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"expstat/adapters/report"
	"expstat/adapters/results"
	"expstat/adapters/stats/engine"
	"expstat/app"
	"expstat/domain/experiment"
	"expstat/internal/policy"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "expstat",
		Short: "Experiment design and read-out from the command line",
	}

	rootCmd.AddCommand(
		newDesignCmd(),
		newAnalyzeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDesignCmd() *cobra.Command {
	var (
		metricKind     string
		baselineRate   float64
		baselineMean   float64
		baselineStdDev float64
		mde            float64
		absolute       bool
		alpha          float64
		power          float64
		ratio          float64
		trafficPerDay  int
	)

	cmd := &cobra.Command{
		Use:   "design",
		Short: "Compute required sample size for an experiment design",
		Long: `Compute required per-variant sample size.

Example: expstat design --baseline-rate 0.12 --mde 0.05 --traffic-per-day 4000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			design := experiment.NewDesign()
			design.BaselineRate = baselineRate
			design.BaselineMean = baselineMean
			design.BaselineStdDev = baselineStdDev
			design.MDE = mde
			design.Alpha = alpha
			design.Power = power
			design.AllocationRatio = ratio
			if absolute {
				design.MDEKind = experiment.MDEAbsolute
			}

			calc := engine.NewSampleSizeCalculator()
			units, err := calc.Compute(design, experiment.MetricKind(metricKind))
			if err != nil {
				return err
			}

			output := map[string]any{
				"required_units_per_variant": units,
				"total_units":                units * 2,
			}
			if trafficPerDay > 0 {
				days, err := calc.Duration(units, trafficPerDay)
				if err != nil {
					return err
				}
				output["duration_days"] = days
			}
			return printJSON(cmd, output)
		},
	}

	cmd.Flags().StringVar(&metricKind, "metric", string(experiment.MetricProportion), "metric kind: proportion or continuous")
	cmd.Flags().Float64Var(&baselineRate, "baseline-rate", 0, "baseline conversion rate for proportion metrics")
	cmd.Flags().Float64Var(&baselineMean, "baseline-mean", 0, "baseline mean for continuous metrics")
	cmd.Flags().Float64Var(&baselineStdDev, "baseline-stddev", 0, "baseline standard deviation for continuous metrics")
	cmd.Flags().Float64Var(&mde, "mde", 0, "minimum detectable effect (relative unless --absolute)")
	cmd.Flags().BoolVar(&absolute, "absolute", false, "treat the MDE as an absolute effect")
	cmd.Flags().Float64Var(&alpha, "alpha", experiment.DefaultAlpha, "significance threshold")
	cmd.Flags().Float64Var(&power, "power", experiment.DefaultPower, "statistical power")
	cmd.Flags().Float64Var(&ratio, "ratio", experiment.DefaultAllocationRatio, "treatment:control allocation ratio")
	cmd.Flags().IntVar(&trafficPerDay, "traffic-per-day", 0, "eligible units per day, for duration estimation")

	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		controlName   string
		treatmentName string
		guardrails    []string
		guardrailBad  []string
		alpha         float64
		power         float64
		srmThreshold  float64
		severity      float64
		designMDE     float64
		outDir        string
	)

	cmd := &cobra.Command{
		Use:   "analyze [results-file]",
		Short: "Analyze experiment results and recommend ship/iterate/stop",
		Long: `Analyze a results file (CSV or xlsx with variant,users,conversions columns)
and print the decision with full statistics.

Example: expstat analyze results.csv --guardrail latency=latency.csv --guardrail-bad latency=increase_is_bad`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			primaryTable, err := results.NewDataReader(args[0], "primary").ReadResults()
			if err != nil {
				return err
			}
			primary, err := metricPair(primaryTable, controlName, treatmentName)
			if err != nil {
				return err
			}

			guardrailPairs := map[string]app.MetricPair{}
			for _, spec := range guardrails {
				name, path, ok := strings.Cut(spec, "=")
				if !ok {
					return fmt.Errorf("invalid --guardrail %q, expected name=path", spec)
				}
				table, err := results.NewDataReader(path, name).ReadResults()
				if err != nil {
					return err
				}
				pair, err := metricPair(table, controlName, treatmentName)
				if err != nil {
					return fmt.Errorf("guardrail %q: %w", name, err)
				}
				guardrailPairs[name] = pair
			}

			guardrailPolicy, err := parseGuardrailPolicy(guardrailBad)
			if err != nil {
				return err
			}

			dist := engine.NewDistributions()
			service := app.NewAnalysisService(
				engine.NewSRMChecker(srmThreshold),
				engine.NewSignificanceAnalyzer(alpha),
				policy.NewDecisionPolicy(severity, designMDE, alpha, power, dist),
			)

			runReport, err := service.Run(context.Background(), app.AnalysisRequest{
				Primary:         primary,
				Guardrails:      guardrailPairs,
				GuardrailPolicy: guardrailPolicy,
			})
			if err != nil {
				return err
			}

			renderer := report.NewRenderer(outDir)
			if outDir != "" {
				path, err := renderer.WriteArtifact(
					fmt.Sprintf("analysis-%s.md", runReport.RunID),
					renderer.RenderMarkdown(runReport),
				)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
			}

			return printJSON(cmd, runReport)
		},
	}

	cmd.Flags().StringVar(&controlName, "control", "control", "control variant name")
	cmd.Flags().StringVar(&treatmentName, "treatment", "treatment", "treatment variant name")
	cmd.Flags().StringArrayVar(&guardrails, "guardrail", nil, "guardrail results as name=path, repeatable")
	cmd.Flags().StringArrayVar(&guardrailBad, "guardrail-bad", nil, "guardrail bad direction as name=increase_is_bad[:mde], repeatable")
	cmd.Flags().Float64Var(&alpha, "alpha", experiment.DefaultAlpha, "significance threshold")
	cmd.Flags().Float64Var(&power, "power", experiment.DefaultPower, "power for the inconclusive-case suggestion")
	cmd.Flags().Float64Var(&srmThreshold, "srm-threshold", experiment.DefaultSRMThreshold, "SRM p-value threshold")
	cmd.Flags().Float64Var(&severity, "severity-multiplier", experiment.DefaultSeverityMultiplier, "guardrail severity multiplier")
	cmd.Flags().Float64Var(&designMDE, "design-mde", 0, "fallback MDE for guardrail severity judgments")
	cmd.Flags().StringVar(&outDir, "out", "", "directory for the markdown report artifact")

	return cmd
}

func metricPair(table interface {
	Variant(name string) (experiment.VariantSample, bool)
}, controlName, treatmentName string) (app.MetricPair, error) {
	control, ok := table.Variant(controlName)
	if !ok {
		return app.MetricPair{}, fmt.Errorf("variant %q not found in results", controlName)
	}
	treatment, ok := table.Variant(treatmentName)
	if !ok {
		return app.MetricPair{}, fmt.Errorf("variant %q not found in results", treatmentName)
	}
	return app.MetricPair{Control: control, Treatment: treatment}, nil
}

func parseGuardrailPolicy(specs []string) (map[string]experiment.GuardrailRule, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	rules := make(map[string]experiment.GuardrailRule, len(specs))
	for _, spec := range specs {
		name, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --guardrail-bad %q, expected name=direction[:mde]", spec)
		}

		direction, mdePart, hasMDE := strings.Cut(value, ":")
		rule := experiment.GuardrailRule{Direction: experiment.GuardrailDirection(direction)}
		if rule.Direction != experiment.IncreaseIsBad && rule.Direction != experiment.DecreaseIsBad {
			return nil, fmt.Errorf("invalid guardrail direction %q", direction)
		}
		if hasMDE {
			mde, err := strconv.ParseFloat(mdePart, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid guardrail MDE %q", mdePart)
			}
			rule.MDE = mde
		}
		rules[name] = rule
	}
	return rules, nil
}

func printJSON(cmd *cobra.Command, payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
