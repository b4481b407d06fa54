// Command unillm chats with, lists and describes models from every
// supported provider, and can serve them behind an OpenAI-compatible API.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/voocel/unillm"
	"github.com/voocel/unillm/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand shares: the loaded configuration and
// the log sink installed for the run.
type app struct {
	configPath string
	v          *viper.Viper
	cfg        *unillm.Config
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "unillm",
		Short:        "One client for many LLM providers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./unillm.yaml when present)")

	root.AddCommand(
		newChatCmd(a),
		newModelsCmd(a),
		newCapsCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) load() error {
	v, cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	closer, err := logger.Install(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return err
	}
	a.v, a.cfg, a.logCloser = v, cfg, closer
	return nil
}

func (a *app) close() error {
	if a.logCloser == nil {
		return nil
	}
	return a.logCloser.Close()
}

func (a *app) newClient(ctx context.Context, cfg *unillm.Config) (*unillm.Client, error) {
	return unillm.NewFromConfig(ctx, cfg, unillm.WithLogger(slog.Default()))
}
