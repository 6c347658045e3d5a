// Package commands implements the eavctl command tree.
package commands

import (
	"github.com/spf13/cobra"
)

// DefaultConfigFile - файл конфигурации init-config без --config
const DefaultConfigFile = "eavctl.yaml"

// RootOptions - глобальные флаги
// Пустые значения не переопределяют конфигурацию
type RootOptions struct {
	ConfigPath  string
	Collection  string
	LogLevel    string
	MetricsAddr string
}

// NewRootCommand создает корневую команду eavctl
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "eavctl",
		Short: "eavctl - schemaless object collections on SQL databases",
		Long: `eavctl stores free-form objects as entity-attribute-value rows in SQLite,
PostgreSQL, MySQL, MS SQL or Oracle and queries them with a small WHERE language.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config (defaults to a local SQLite eav.db)")
	cmd.PersistentFlags().StringVar(&opts.Collection, "collection", "", "collection name, overrides config")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	cmd.AddCommand(newInitConfigCommand(opts))
	cmd.AddCommand(newSetupCommand(opts))
	cmd.AddCommand(newDestroyCommand(opts))
	cmd.AddCommand(newClearCommand(opts))
	cmd.AddCommand(newPutCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newRemoveCommand(opts))
	cmd.AddCommand(newKeysCommand(opts))
	cmd.AddCommand(newIDsCommand(opts))
	cmd.AddCommand(newQueryCommand(opts))
	cmd.AddCommand(newCountCommand(opts))
	cmd.AddCommand(newIterateCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newKVCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}
