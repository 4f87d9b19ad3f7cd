// Package cmd implements the arenabuf command line.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/arenabuf/pkg/config"
	"github.com/ssargent/arenabuf/pkg/di"
)

// app carries the global flags shared by every subcommand
type app struct {
	configPath string
	dataDir    string
	schemaPath string
	logLevel   string
}

// NewRootCmd builds the arenabuf command tree
func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "arenabuf",
		Short: "arenabuf - schema driven binary documents",
		Long: `arenabuf stores documents as compact, schema driven binary buffers that can be
read and updated in place without decoding the whole document.

Documents live in a local store; the REST API serves the same store.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	flags.StringVarP(&a.dataDir, "data-dir", "d", "", "Data directory, overrides the config file")
	flags.StringVarP(&a.schemaPath, "schema", "s", "", "Schema file (JSON or YAML), overrides the config file")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level, overrides the config file")

	rootCmd.AddCommand(
		newInitCmd(a),
		newSchemaCmd(a),
		newPutCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newDeleteCmd(a),
		newScanCmd(a),
		newCompactCmd(a),
		newExportCmd(a),
		newServeCmd(a),
		newServiceCmd(a),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolvedConfigPath returns --config or the platform default
func (a *app) resolvedConfigPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	return config.GetDefaultConfigPath()
}

// loadConfig reads the config file when it exists and applies flag overrides
func (a *app) loadConfig() (*config.Config, error) {
	path := a.resolvedConfigPath()
	cfg := config.DefaultConfig()
	if config.ConfigExists(path) {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.schemaPath != "" {
		cfg.SchemaPath = a.schemaPath
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withContainer runs fn against a container built from the resolved config
// and closes it afterwards
func (a *app) withContainer(fn func(cmd *cobra.Command, args []string, c *di.Container) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := a.loadConfig()
		if err != nil {
			return err
		}
		c := di.NewContainer(cfg)
		defer func() {
			if cerr := c.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("failed to close store: %w", cerr)
			}
		}()
		return fn(cmd, args, c)
	}
}

// parseID parses a document id argument
func parseID(raw string) (ksuid.KSUID, error) {
	id, err := ksuid.Parse(raw)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("invalid document id %q", raw)
	}
	return id, nil
}

// readInput returns arg, or stdin when arg is "-"
func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return []byte(strings.TrimSpace(string(data))), nil
}
