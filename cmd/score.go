package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/model"
	"github.com/sells-group/chem-advisor/internal/replacement"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a candidate pool against an original product",
	Long: `Scores a supplied candidate pool offline, without sourcing or persistence.

The input is a JSON document:

  {
    "original":   {"name": "...", "chemical_name": "...", "category": "..."},
    "candidates": [{"name": "..."}, ...],
    "request":    {"reason_codes": ["regulatory"], "constraints": {...}}
  }

Examples:
  # Score a pool and print a table
  score --input pool.json

  # Use a scoring profile and export CSV
  score --input pool.json --profile profiles/strict.yaml --format csv --output ranked.csv

  # Read from stdin
  cat pool.json | score --input -`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("input", "", "JSON input file, or - for stdin (required)")
	f.String("profile", "", "scoring profile YAML (overrides replacement.profile_path)")
	f.Int("limit", 0, "maximum number of results (0=use replacement.max_results)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv or json")
	_ = scoreCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(scoreCmd)
}

// scoreInput is the offline scoring document.
type scoreInput struct {
	Original   model.Product            `json:"original"`
	Candidates []model.Product          `json:"candidates"`
	Request    model.ReplacementRequest `json:"request"`
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	log := zap.L().With(zap.String("command", "score"))

	inputPath, _ := cmd.Flags().GetString("input")
	profile, _ := cmd.Flags().GetString("profile")
	limit, _ := cmd.Flags().GetInt("limit")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	if err := validateFormat(format); err != nil {
		return err
	}

	if profile != "" {
		cfg.Replacement.ProfilePath = profile
	}
	rc, err := replacementConfig()
	if err != nil {
		return err
	}
	if err := replacement.ValidateConfig(rc); err != nil {
		return err
	}

	in, err := loadScoreInput(inputPath)
	if err != nil {
		return err
	}

	criteria := replacement.BuildCriteria(in.Request, rc.ReasonExclusions)
	ranked, err := replacement.NewEngine(rc).GenerateCandidates(ctx, in.Original, in.Candidates, criteria, in.Request)
	if err != nil {
		return eris.Wrap(err, "score: generate candidates")
	}

	if limit <= 0 {
		limit = rc.MaxResults
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	log.Info("scoring complete",
		zap.String("original", in.Original.Name),
		zap.Int("pool", len(in.Candidates)),
		zap.Int("results", len(ranked)),
	)

	out, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeOut()

	return writeCandidates(out, format, ranked)
}

// loadScoreInput reads the scoring document from path, or stdin for "-".
func loadScoreInput(path string) (*scoreInput, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "score: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	var in scoreInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, eris.Wrap(err, "score: decode input")
	}
	if strings.TrimSpace(in.Original.Name) == "" {
		return nil, eris.New("score: original.name is required")
	}
	return &in, nil
}

func validateFormat(format string) error {
	switch format {
	case "table", "csv", "json":
		return nil
	default:
		return eris.Errorf("--format must be table, csv or json (got %q)", format)
	}
}

// openOutput returns stdout when path is empty.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output %s", path)
	}
	return f, func() { _ = f.Close() }, nil
}

// writeCandidates renders ranked candidates in the requested format.
func writeCandidates(out io.Writer, format string, cs []model.ReplacementCandidate) error {
	switch format {
	case "json":
		return writeJSON(out, cs)
	case "csv":
		return writeCandidatesCSV(out, cs)
	default:
		formatCandidates(out, cs)
		return nil
	}
}

// formatCandidates writes a ranked table of candidates to w.
func formatCandidates(out io.Writer, cs []model.ReplacementCandidate) {
	if len(cs) == 0 {
		_, _ = fmt.Fprintln(out, "No candidates.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tPRODUCT\tMANUFACTURER\tSCORE\tCONF\tMATCH\tRISK\tCOMPLEXITY")
	_, _ = fmt.Fprintln(w, "----\t-------\t------------\t-----\t----\t-----\t----\t----------")
	for i, c := range cs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.2f\t%s\t%s\t%s\n",
			i+1,
			truncate(c.Product.Name, 40),
			truncate(c.Product.Manufacturer, 24),
			c.Score.Overall,
			c.Score.Confidence,
			c.Metadata.MatchType,
			c.Metadata.RiskLevel,
			c.Metadata.ImplementationComplexity,
		)
	}
	_ = w.Flush()
}

func writeCandidatesCSV(out io.Writer, cs []model.ReplacementCandidate) error {
	w := csv.NewWriter(out)
	header := []string{
		"rank", "name", "manufacturer", "cas_number", "overall", "confidence",
		"chemical", "functional", "performance", "availability", "cost", "sustainability",
		"match_type", "risk_level", "complexity",
	}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for i, c := range cs {
		b := c.Score.Breakdown
		row := []string{
			strconv.Itoa(i + 1),
			c.Product.Name,
			c.Product.Manufacturer,
			c.Product.CASNumber,
			strconv.Itoa(c.Score.Overall),
			formatFloat(c.Score.Confidence),
			formatFloat(b.ChemicalSimilarity),
			formatFloat(b.FunctionalCompatibility),
			formatFloat(b.PerformanceMatch),
			formatFloat(b.Availability),
			formatFloat(b.CostEffectiveness),
			formatFloat(b.Sustainability),
			string(c.Metadata.MatchType),
			string(c.Metadata.RiskLevel),
			string(c.Metadata.ImplementationComplexity),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "flush csv")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
