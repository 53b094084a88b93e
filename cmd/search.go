package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/chem-advisor/internal/model"
)

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the product knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("search"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Search.Search(ctx, strings.Join(args, " "))
		if err != nil {
			return eris.Wrap(err, "search")
		}
		if searchJSON {
			return writeJSON(os.Stdout, res)
		}
		formatSearchResult(os.Stdout, res)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about a chemical product",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ask"); err != nil {
			return err
		}
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		ans, err := env.Chat.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return eris.Wrap(err, "ask")
		}
		if searchJSON {
			return writeJSON(os.Stdout, ans)
		}
		formatChatAnswer(os.Stdout, ans)
		return nil
	},
}

// formatSearchResult writes the answer text, any options and the sources.
func formatSearchResult(w io.Writer, res *model.SearchResult) {
	if res.DisambiguationDetected && res.Disambiguation != nil {
		formatDisambiguation(w, res.Disambiguation)
		return
	}
	_, _ = fmt.Fprintln(w, strings.TrimSpace(res.Content))
	formatSources(w, res.Sources)
	if res.Cached {
		_, _ = fmt.Fprintln(w, "\n(cached)")
	}
}

func formatChatAnswer(w io.Writer, ans *model.ChatAnswer) {
	if ans.Disambiguation != nil {
		formatDisambiguation(w, ans.Disambiguation)
		return
	}
	_, _ = fmt.Fprintln(w, ans.Answer)
	formatSources(w, ans.Sources)
}

// formatDisambiguation lists the selectable options under the instructions.
func formatDisambiguation(w io.Writer, d *model.DisambiguationData) {
	_, _ = fmt.Fprintln(w, d.Instructions)
	for i, o := range d.Options {
		line := fmt.Sprintf("  %d. %s", i+1, o.Name)
		if o.Company != "" {
			line += " (" + o.Company + ")"
		}
		if o.Description != "" {
			line += " - " + o.Description
		}
		_, _ = fmt.Fprintln(w, line)
	}
	if r := d.QueryRefinements; r != nil && len(r.SuggestedFilters) > 0 {
		_, _ = fmt.Fprintf(w, "\nTry narrowing with: %s\n", strings.Join(r.SuggestedFilters, ", "))
	}
}

func formatSources(w io.Writer, sources []model.SearchSource) {
	if len(sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "\nSources:")
	for _, s := range sources {
		if s.URL != "" {
			_, _ = fmt.Fprintf(w, "  - %s <%s>\n", s.Title, s.URL)
			continue
		}
		_, _ = fmt.Fprintf(w, "  - %s\n", s.Title)
	}
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print the raw JSON result")
	askCmd.Flags().BoolVar(&searchJSON, "json", false, "print the raw JSON answer")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(askCmd)
}
