package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/config"
	"github.com/ssargent/arenabuf/pkg/di"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port   int
		bind   string
		apiKey string
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Serve the document store over HTTP until interrupted. Requests under /api/v1
must carry the configured API key in the X-API-Key header; Prometheus metrics
are served at /metrics.

When the configured key is "auto" a key is generated for this run and logged.

Examples:
  arenabuf serve
  arenabuf serve --port 9000 --bind 0.0.0.0 --api-key mysecretkey`,
		Args: cobra.NoArgs,
		RunE: a.withContainer(func(cmd *cobra.Command, args []string, c *di.Container) error {
			log, err := c.Logger()
			if err != nil {
				return err
			}
			store, err := c.Store()
			if err != nil {
				return err
			}

			serverConfig := c.ServerConfig()
			if cmd.Flags().Changed("port") {
				serverConfig.Port = port
			}
			if cmd.Flags().Changed("bind") {
				serverConfig.Bind = bind
			}
			if apiKey != "" {
				serverConfig.APIKey = apiKey
			}
			if serverConfig.APIKey == "auto" {
				serverConfig.APIKey, err = config.GenerateSecureKey(32)
				if err != nil {
					return err
				}
				log.Warnw("generated a temporary API key", "api_key", serverConfig.APIKey)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			starter := c.GetServerFactory().CreateServerStarter()
			return starter.StartServer(ctx, store, serverConfig, log.Named("api"))
		}),
	}
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&bind, "bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().StringVar(&apiKey, "api-key", "", "API key, overrides the config file")
	return serveCmd
}
