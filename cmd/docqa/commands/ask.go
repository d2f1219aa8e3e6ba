package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calque-ai/docqa/pkg/pipeline"
	"github.com/calque-ai/docqa/pkg/server"
)

// NewAskCmd creates the ask command.
func NewAskCmd(opts *globalOptions) *cobra.Command {
	var (
		nResults int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "ask <collection> <question>",
		Short: "Answer a question from a collection",
		Long: `Answer a question using only the chunks retrieved from a collection.

Remaining arguments are joined into the question, so quoting is optional.`,
		Example: `  docqa ask handbook "How many vacation days do I get?"
  docqa ask handbook what is the refund policy -n 5
  docqa ask handbook "Who owns billing?" --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nResults < server.MinResults || nResults > server.MaxResults {
				return fmt.Errorf("--results must be between %d and %d", server.MinResults, server.MaxResults)
			}
			collection := args[0]
			question := strings.Join(args[1:], " ")

			ctx := cmd.Context()
			a, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(a)

			res, err := a.Service.Ask(ctx, collection, question, nResults)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			if len(res.Sources) > 0 {
				fmt.Fprintf(out, "\nSources (%d chunks):\n", res.ChunksUsed)
				for _, s := range res.Sources {
					fmt.Fprintf(out, "  - %s\n", s)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&nResults, "results", "n", pipeline.DefaultResults, "Number of chunks to retrieve")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}
