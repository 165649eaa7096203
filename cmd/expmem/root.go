package main

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/expmem/config"
	"github.com/becomeliminal/expmem/memory"
)

// app carries state shared by subcommands: the loaded configuration and the
// store, opened on first use.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	rt  *config.Runtime
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) store(cmd *cobra.Command) (*memory.Store, error) {
	if a.rt != nil {
		return a.rt.Store, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	rt, err := cfg.Open(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.rt = rt
	return rt.Store, nil
}

func (a *app) close() error {
	if a.rt == nil {
		return nil
	}
	err := a.rt.Close()
	a.rt = nil
	return err
}

// execute runs cmd and then closes the store, also when the command failed.
// cobra skips PersistentPostRunE after a RunE error.
func (a *app) execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if cerr := a.close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
	}
	return err
}

// newRootCmd creates the root expmem command with all subcommands attached.
// A preset a.cfg is used instead of reading --config.
func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "expmem",
		Short:         "Categorized experience memory",
		Long:          "expmem stores solved problems as specific notes and per-category lessons as abstract notes,\nand selects them for new problems by category distance and content similarity.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := a.logLevel
			if level == "" {
				c, err := a.loadConfig()
				if err != nil {
					return err
				}
				level = c.LogLevel
			}
			if level == "" {
				return nil
			}
			parsed, err := log.ParseLevel(level)
			if err != nil {
				return fmt.Errorf("log level: %w", err)
			}
			log.SetLevel(parsed)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides log_level in the config)")

	cmd.AddCommand(
		newAddCmd(a),
		newAddAbstractCmd(a),
		newDeleteCmd(a),
		newListCmd(a),
		newSelectCmd(a),
		newRecallCmd(a),
		newRecordCmd(a),
		newReinforceCmd(a),
		newRetrenchCmd(a),
		newEvolveCmd(a),
		newSeedCmd(a),
		newDistanceCmd(),
	)
	return cmd
}
