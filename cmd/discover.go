package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/chem-advisor/internal/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <product-id>",
	Short: "Find and rank replacements for a catalog product",
	Long: `Loads the original product from the store, gathers a candidate pool from
the catalog and any enabled external sources, scores it and persists the run.

Examples:
  # Replacements for a discontinued product
  discover 3f1c... --reason discontinued

  # Regulatory replacement that must avoid two substances
  discover 3f1c... --reason regulatory --exclude formaldehyde --exclude toluene

  # Full run as JSON
  discover 3f1c... --application coatings --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("discover"); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if err := validateFormat(format); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		req, err := discoverRequest(cmd, args[0])
		if err != nil {
			return err
		}

		run, err := env.Discovery.Discover(ctx, req)
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		if format == "json" {
			return writeJSON(os.Stdout, run)
		}
		formatRunSummary(os.Stderr, run)
		return writeCandidates(os.Stdout, format, run.Candidates)
	},
}

// discoverRequest builds the replacement request from flags.
func discoverRequest(cmd *cobra.Command, productID string) (model.ReplacementRequest, error) {
	f := cmd.Flags()
	reasons, _ := f.GetStringSlice("reason")
	exclude, _ := f.GetStringSlice("exclude")
	apps, _ := f.GetStringSlice("application")
	groups, _ := f.GetStringSlice("functional-group")
	class, _ := f.GetString("chemical-class")
	lowerCost, _ := f.GetBool("prefer-lower-cost")
	requestedBy, _ := f.GetString("requested-by")

	req := model.ReplacementRequest{
		OriginalProductID: productID,
		RequestedBy:       requestedBy,
		Constraints: model.RequestConstraints{
			ChemicalClass:      class,
			Applications:       apps,
			FunctionalGroups:   groups,
			ExcludedSubstances: exclude,
			PreferLowerCost:    lowerCost,
		},
	}
	if f.Changed("max-price-increase") {
		v, _ := f.GetFloat64("max-price-increase")
		req.Constraints.MaxPriceIncrease = &v
	}

	for _, r := range reasons {
		code := model.ReasonCode(r)
		switch code {
		case model.ReasonDiscontinued, model.ReasonRegulatory, model.ReasonCost,
			model.ReasonSupply, model.ReasonPerformance, model.ReasonSustainable:
			req.ReasonCodes = append(req.ReasonCodes, code)
		default:
			return model.ReplacementRequest{}, eris.Errorf("discover: unknown reason %q", r)
		}
	}
	return req, nil
}

// formatRunSummary writes a one-paragraph run summary to w.
func formatRunSummary(w io.Writer, run *model.ReplacementRun) {
	name := run.Request.OriginalProductID
	if run.Original != nil {
		name = run.Original.Name
	}
	_, _ = fmt.Fprintf(w, "Run %s: %s\n", truncateID(run.ID), run.Status)
	_, _ = fmt.Fprintf(w, "Original: %s\n", name)
	_, _ = fmt.Fprintf(w, "Pool: %d candidates, %d ranked\n\n", run.CandidatePool, len(run.Candidates))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addDiscoverFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("reason", nil, "reason codes: discontinued, regulatory, cost, supply, performance, sustainability")
	f.StringSlice("exclude", nil, "substances the replacement must not contain")
	f.StringSlice("application", nil, "required applications")
	f.StringSlice("functional-group", nil, "required functional groups")
	f.String("chemical-class", "", "required chemical class")
	f.Bool("prefer-lower-cost", false, "favor lower cost candidates")
	f.Float64("max-price-increase", 0, "maximum acceptable price increase (percent)")
	f.String("requested-by", "", "requester recorded on the run")
	f.String("format", "table", "output format: table, csv or json")
}

func init() {
	addDiscoverFlags(discoverCmd)
	rootCmd.AddCommand(discoverCmd)
}
