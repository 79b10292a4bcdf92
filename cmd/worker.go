package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/secrets"
	"github.com/spigell/resume-matcher/internal/storage"
	"github.com/spigell/resume-matcher/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume match requests from RabbitMQ and publish the results",
	Run: func(cmd *cobra.Command, _ []string) {
		runWorker(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().IntP("concurrency", "c", 0, "number of parallel consumers (default 3)")
	workerCmd.Flags().String("queue", "", "queue to consume match requests from (default match_requests)")

	viper.BindPFlag("worker.concurrency", workerCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("worker.queue", workerCmd.Flags().Lookup("queue"))
}

func runWorker(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	logger.Info("starting the resume-matcher worker", zap.String("version", version))

	url, err := secrets.Load(secrets.Source{
		Name:  "amqp url",
		Value: config.Secrets.AMQPURL,
		File:  config.Secrets.AMQPURLFile,
	})
	if err != nil {
		logger.Fatal(
			"loading amqp url",
			zap.Error(err),
			zap.String("hint", "set RABBITMQ_URL or secrets.amqp-url-file in the configuration file"),
		)
	}

	svc, err := buildService(config, logger)
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	downloader, err := newDownloader(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the storage client", zap.Error(err))
	}

	workerCfg := config.Worker
	workerCfg.URL = url

	var d worker.Downloader
	if downloader != nil {
		d = downloader
	}

	w, err := worker.New(workerCfg, svc, d, logger.Named("worker"))
	if err != nil {
		logger.Fatal("creating the worker", zap.Error(err))
	}

	if err := w.Run(ctx); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}

	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}

// newDownloader returns nil when no bucket is configured. Requests that
// reference stored documents then fail individually.
func newDownloader(ctx context.Context, config *Config, logger *zap.Logger) (*storage.Client, error) {
	if config.Storage.Bucket == "" {
		logger.Warn("storage bucket is not configured, resume_key messages will fail")
		return nil, nil
	}

	accessKey, err := secrets.LoadOptional(secrets.Source{
		Name:  "storage access key",
		Value: config.Secrets.StorageAccessKey,
		File:  config.Secrets.StorageAccessKeyFile,
	})
	if err != nil {
		return nil, err
	}

	secretKey, err := secrets.LoadOptional(secrets.Source{
		Name:  "storage secret key",
		Value: config.Secrets.StorageSecretKey,
		File:  config.Secrets.StorageSecretKeyFile,
	})
	if err != nil {
		return nil, err
	}

	storageCfg := config.Storage
	storageCfg.AccessKey = accessKey
	storageCfg.SecretKey = secretKey

	client, err := storage.New(ctx, storageCfg, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("storage bucket %s: %w", storageCfg.Bucket, err)
	}
	return client, nil
}
