package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matching API over HTTP",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "listen address (default :8000)")
	serveCmd.Flags().Float64("rate-limit", 0, "requests per second allowed per client, 0 disables limiting")
	serveCmd.Flags().StringSlice("exclude-company", nil, "company to drop from the catalog, may be repeated")

	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
	viper.BindPFlag("server.rate-limit", serveCmd.Flags().Lookup("rate-limit"))
	viper.BindPFlag("filters.exclude-companies", serveCmd.Flags().Lookup("exclude-company"))
}

func serve(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	logger.Info("starting the resume-matcher api", zap.String("version", version))

	svc, err := buildService(config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	srv, err := server.New(config.Server, svc, logger.Named("http"))
	if err != nil {
		logger.Fatal("creating the http server", zap.Error(err))
	}

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}

	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}
