package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/chem-advisor/internal/disambiguation"
)

var (
	disambiguateInput string
	disambiguateQuery string
)

var disambiguateCmd = &cobra.Command{
	Use:   "disambiguate",
	Short: "Extract product options from an ambiguous search payload",
	Long:  "Reads a raw search service payload (JSON) and prints the parsed options. Payloads without the ambiguity trigger print {\"detected\": false}.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := readPayload(disambiguateInput)
		if err != nil {
			return err
		}
		if !disambiguation.Detect(raw) {
			return writeJSON(os.Stdout, map[string]bool{"detected": false})
		}
		parser := disambiguation.NewParser(cfg.Disambiguation)
		return writeJSON(os.Stdout, parser.Parse(raw, disambiguateQuery))
	},
}

// readPayload reads a JSON payload from path, or stdin for "-". Plain text
// is wrapped as a JSON string so it flattens the same way.
func readPayload(path string) (json.RawMessage, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "disambiguate: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "disambiguate: read payload")
	}
	if json.Valid(data) {
		return data, nil
	}
	quoted, err := json.Marshal(string(data))
	if err != nil {
		return nil, eris.Wrap(err, "disambiguate: encode text payload")
	}
	return quoted, nil
}

func init() {
	disambiguateCmd.Flags().StringVar(&disambiguateInput, "input", "-", "payload file, or - for stdin")
	disambiguateCmd.Flags().StringVar(&disambiguateQuery, "query", "", "the query that produced the payload")
	rootCmd.AddCommand(disambiguateCmd)
}
