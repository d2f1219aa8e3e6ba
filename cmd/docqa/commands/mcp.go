package commands

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/calque-ai/docqa/pkg/mcpserver"
)

// NewMCPCmd creates the mcp command.
func NewMCPCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Long: `Serve the Model Context Protocol tools over stdio.

Exposes ask, embed_text, embed_website, list_collections, collection_info and
delete_collection to MCP clients. Logs are written to stderr because stdout
carries the protocol.`,
		Example: `  docqa mcp

  # claude_desktop_config.json
  # {
  #   "mcpServers": {
  #     "docqa": {"command": "docqa", "args": ["mcp"]}
  #   }
  # }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(a)

			server := mcpserver.New(a.Service,
				mcpserver.WithImplementation("docqa", versionInfo.Version),
				mcpserver.WithLogger(a.Log),
			)
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}

	return cmd
}
