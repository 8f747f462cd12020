package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "leadgen",
	Short:         "Local business lead generation pipeline",
	Long:          "Discovers businesses through place search, crawls and audits their websites, and scores them as sales leads.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("store_driver", cfg.Store.Driver),
			zap.Bool("synthetic", cfg.Discovery.Synthetic),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
}

// addConfigFlags registers the settings overridable on every command.
func addConfigFlags(pf *pflag.FlagSet) {
	pf.String("config", "", "config file (default ./config.yaml)")
	pf.String("driver", "", "store driver: sqlite, postgres, or memory")
	pf.String("db", "", "store database URL or SQLite path")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.Bool("synthetic", false, "use generated candidates instead of the Places API")
}

// loadConfig resolves settings with persistent flags taking precedence over
// env, file, and defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	c, err := config.Load(
		config.WithFile(path),
		config.WithFlag("store.driver", flags.Lookup("driver")),
		config.WithFlag("store.database_url", flags.Lookup("db")),
		config.WithFlag("log.level", flags.Lookup("log-level")),
		config.WithFlag("discovery.synthetic", flags.Lookup("synthetic")),
	)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
