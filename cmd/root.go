package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/filtering"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/pipeline"
	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/spigell/resume-matcher/internal/server"
	"github.com/spigell/resume-matcher/internal/storage"
	"github.com/spigell/resume-matcher/internal/worker"
)

const (
	app       = "resume-matcher"
	envPrefix = "RESUME_MATCHER"
)

type Config struct {
	// Catalog is a JSON file with job postings. Empty means the built-in sample.
	Catalog string `mapstructure:"catalog"`
	// Lexicon is a skills file, one skill per line. Empty means the built-in list.
	Lexicon string           `mapstructure:"lexicon"`
	TempDir string           `mapstructure:"temp-dir"`
	Filters filtering.Config `mapstructure:"filters"`
	Server  server.Config    `mapstructure:"server"`
	Worker  worker.Config    `mapstructure:"worker"`
	Storage storage.Config   `mapstructure:"storage"`
	Secrets SecretsConfig    `mapstructure:"secrets"`
}

// SecretsConfig holds credentials. Each one may be given inline or as a
// path to a mounted file, the file wins.
type SecretsConfig struct {
	AMQPURL              string `mapstructure:"amqp-url"`
	AMQPURLFile          string `mapstructure:"amqp-url-file"`
	StorageAccessKey     string `mapstructure:"storage-access-key"`
	StorageAccessKeyFile string `mapstructure:"storage-access-key-file"`
	StorageSecretKey     string `mapstructure:"storage-secret-key"`
	StorageSecretKeyFile string `mapstructure:"storage-secret-key-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-matcher extracts a candidate profile from a resume and ranks job postings against it",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("catalog", "", "job catalog file (default is the built-in sample)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Conventional names used by the rest of the deployment.
	if err := viper.BindEnv("secrets.amqp-url", envPrefix+"_SECRETS_AMQP_URL", "RABBITMQ_URL"); err != nil {
		log.Fatalf("binding RABBITMQ_URL environment variable: %v", err)
	}
}

// setDefaults registers every key so that environment overrides apply to
// keys missing from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog", "")
	v.SetDefault("lexicon", "")
	v.SetDefault("temp-dir", "")

	v.SetDefault("filters.exclude-companies", []string{})
	v.SetDefault("filters.exclude-file", "")
	v.SetDefault("filters.disabled", []string{})

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.max-upload-bytes", 10<<20)
	v.SetDefault("server.rate-limit", 20)
	v.SetDefault("server.rate-burst", 40)
	v.SetDefault("server.allowed-origins", []string{"*"})
	v.SetDefault("server.read-timeout", 30*time.Second)
	v.SetDefault("server.write-timeout", 60*time.Second)
	v.SetDefault("server.shutdown-timeout", 15*time.Second)

	v.SetDefault("worker.queue", "match_requests")
	v.SetDefault("worker.exchange", "match_results")
	v.SetDefault("worker.concurrency", 3)
	v.SetDefault("worker.download-attempts", 3)
	v.SetDefault("worker.download-backoff", 500*time.Millisecond)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use-path-style", false)
	v.SetDefault("storage.max-object-bytes", 10<<20)

	for _, key := range []string{
		"amqp-url", "amqp-url-file",
		"storage-access-key", "storage-access-key-file",
		"storage-secret-key", "storage-secret-key-file",
	} {
		v.SetDefault("secrets."+key, "")
	}
}

func initConfig() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The config file is optional unless it was asked for explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setup builds the logger and reads the config. Failures are fatal since
// nothing can run without them.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		App:   app,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("config loaded", zap.String("file", viper.ConfigFileUsed()), zap.String("version", version))

	return logger, config
}

func buildService(config *Config, logger *zap.Logger) (*pipeline.Service, error) {
	lexicon, err := loadLexicon(config.Lexicon)
	if err != nil {
		return nil, err
	}

	jobs, err := catalog.Load(config.Catalog)
	if err != nil {
		return nil, fmt.Errorf("loading job catalog: %w", err)
	}

	logger.Info("pipeline ready",
		zap.Int("skills", lexicon.Len()),
		zap.Int("jobs", jobs.Len()),
		zap.String("catalog", catalogName(config.Catalog)),
	)

	filters := config.Filters
	return pipeline.New(pipeline.Options{
		Logger:       logger,
		Lexicon:      lexicon,
		Catalog:      jobs,
		FilterConfig: &filters,
		TempDir:      config.TempDir,
	})
}

func loadLexicon(path string) (*profile.Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return profile.DefaultLexicon()
	}
	lexicon, err := profile.LoadLexicon(path)
	if err != nil {
		return nil, fmt.Errorf("loading skill lexicon: %w", err)
	}
	return lexicon, nil
}

func catalogName(path string) string {
	if path == "" {
		return "built-in sample"
	}
	return path
}
