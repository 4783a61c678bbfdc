package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	favour "github.com/nuomicici/astrbot-plugin-Favour-Ultra"
)

var (
	cfgDataDir string
	cfgFile    string
	cfgScope   string
	cfgGlobal  bool
	cfgVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "favourctl",
	Short: "Favour - affinity data management CLI",
	Long: `Favourctl manages the affinity database used by the favour engine.

It inspects and adjusts per-user affinity records, relationships and
cooldowns, imports legacy data files, and exports backups.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDataDir, "data-dir", "", "Path to the data directory (default: ./data/favour)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&cfgScope, "scope", "", "Conversation scope to operate on (default: global)")
	rootCmd.PersistentFlags().BoolVar(&cfgGlobal, "global", false, "Operate on the global scope")
	rootCmd.PersistentFlags().BoolVarP(&cfgVerbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(relationshipCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(mcpCmd)
}

func loadConfig() (favour.Config, error) {
	cfg := favour.ConfigFromEnv()
	if cfgFile != "" {
		var err error
		cfg, err = favour.LoadConfigFile(cfgFile)
		if err != nil {
			return cfg, err
		}
	}
	if cfgDataDir != "" {
		cfg.DataDir = cfgDataDir
	}
	if cfgGlobal {
		cfg.GlobalMode = true
	}
	cfg = cfg.Normalize(newLogger())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger() *zap.Logger {
	if !cfgVerbose {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func openStore() (*favour.Store, favour.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	store, err := favour.OpenStore(cfg, newLogger())
	if err != nil {
		return nil, cfg, fmt.Errorf("open store: %w", err)
	}
	return store, cfg, nil
}

// targetScope resolves the --scope/--global flags onto a storage scope.
func targetScope() string {
	if cfgGlobal {
		return favour.GlobalScope
	}
	return cfgScope
}
