package commands

import (
	"github.com/spf13/cobra"

	"github.com/calque-ai/docqa/pkg/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd(opts *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Routes:
  POST   /embed/text        embed raw text
  POST   /embed/pdf         embed an uploaded PDF (multipart "file")
  POST   /embed/txt         embed an uploaded text file (multipart "file")
  POST   /embed/website     embed a web page
  POST   /ask               answer a question from a collection
  GET    /collections       list collections
  GET    /collections/{id}  collection summary
  DELETE /collections/{id}  delete a collection
  GET    /health            dependency health
  GET    /metrics           Prometheus metrics`,
		Example: `  docqa serve
  docqa serve --port 8080 --vector-store pgvector`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(a)

			cfg := a.Config
			if port > 0 {
				cfg.Server.Port = port
			}

			srv, err := server.New(a.Service, server.Config{
				UploadDir:      cfg.Server.UploadDir,
				MaxFileSize:    cfg.Server.MaxFileSize,
				Health:         a.Health,
				MetricsHandler: a.Metrics.Handler(),
				CORSOrigins:    cfg.Server.AllowedOrigins(),
			}, server.WithLogger(a.Log), server.WithMetrics(a.Metrics))
			if err != nil {
				return err
			}
			return srv.Run(ctx, cfg.Server.Addr())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides PORT)")

	return cmd
}
