package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gregLibert/simota/pkg/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version is set by main.go
var Version = "dev"

// rootCmd is the base command when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "simota",
	Short: "SIM OTA secured packet tool",
	Long: `simota builds, sends and verifies the secured packets used to
administer SIM cards and UICCs over the air (ETSI TS 102 225, 3GPP TS 31.115):
  - command packets secured with DES, triple DES or AES (KIc) and a
    cryptographic checksum or CRC (KID)
  - Proofs of Receipt checked against the same keys
  - delivery to a card in a PC/SC reader as SMS-PP data download envelopes`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogger,
}

// Global flags
var (
	configPath string
	logLevel   string
)

// logger is the console logger of the running command.
var logger = zerolog.Nop()

// prompter asks for the keys the configuration file leaves out.
var prompter config.Prompter = config.NewTerminalPrompter()

// Execute runs the command line and exits with status 1 on failure.
// SIGINT and SIGTERM cancel the running exchange.
func Execute(version string) {
	Version = version
	rootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "simota.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
}

func setupLogger(cmd *cobra.Command, _ []string) error {
	l, err := newLogger(cmd.ErrOrStderr(), logLevel)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", configPath).Int("keysets", len(cfg.Keysets)).Msg("configuration loaded")
	return cfg, nil
}
