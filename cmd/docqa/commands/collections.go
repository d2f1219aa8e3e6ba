package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewCollectionsCmd creates the collections command and its subcommands.
func NewCollectionsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	list := func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := opts.open(ctx, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeApp(a)

		names, err := a.Service.ListCollections(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), map[string][]string{"collections": names})
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No collections")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection", "col"},
		Short:   "List and manage collections",
		Example: `  docqa collections
  docqa collections info handbook
  docqa collections delete handbook`,
		Args: cobra.NoArgs,
		RunE: list,
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List collections",
			Args:  cobra.NoArgs,
			RunE:  list,
		},
		&cobra.Command{
			Use:   "info <name>",
			Short: "Show a collection's size and sample chunks",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				a, err := opts.open(ctx, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer closeApp(a)

				info, err := a.Service.CollectionInfo(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), info)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Name:\t%s\n", info.Name)
				fmt.Fprintf(w, "Chunks:\t%d\n", info.DocumentCount)
				for i, doc := range info.SampleDocuments {
					fmt.Fprintf(w, "Sample %d:\t%s\n", i+1, truncate(doc, 80))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a collection and all of its chunks",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				a, err := opts.open(ctx, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer closeApp(a)

				if err := a.Service.DeleteCollection(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Collection '%s' deleted\n", args[0])
				return nil
			},
		},
	)

	return cmd
}
