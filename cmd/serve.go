package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"modstacker/logger"
	"modstacker/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the collection over the local HTTP API",
	Long: `Starts the JSON HTTP API used by the web front end. Missing client/server
side information is backfilled from Modrinth in the background on startup.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, ".")
		if err != nil {
			return err
		}
		defer a.close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.ListenAddr
		}

		go func() {
			if _, err := a.reconciler.Run(ctx); err != nil {
				logger.Log.Warnw("Metadata backfill did not finish", zap.Error(err))
			}
		}()

		h := server.NewHandler(server.HandlerConfig{
			Store:      a.store,
			Checker:    a.checker,
			Registry:   a.client,
			RemoteLock: a.remoteMu,
			Context:    ctx,
			Log:        logger.Named("http"),
		})
		cmd.Printf("Serving ModStacker API on http://%s\n", addr)
		return server.NewServer(h, logger.Named("http")).Run(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default LISTEN_ADDR)")
}
