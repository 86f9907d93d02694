package main

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/herd/scheduler/config"
)

// Overrides the config's LogLevel when set.
const logLevelEnv = "HERD_LOGLEVEL"

type cli struct {
	rootCmd *cobra.Command

	configSelector string
	config         *config.JSONConfigs
}

func newCLI() *cobra.Command {
	c := &cli{}
	c.rootCmd = &cobra.Command{
		Use:           "herd",
		Short:         "herd schedules dependent tasks onto a cluster of nodes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.rootCmd.PersistentFlags().StringVar(&c.configSelector, "config", "local.memory",
		"Herd config: a built-in name like local.memory, a JSON file or JSON text")

	c.addCmd(&serveCmd{})
	c.addCmd(&runJobCmd{})
	c.addCmd(&showConfigCmd{})
	return c.rootCmd
}

type command interface {
	registerFlags() *cobra.Command
	run(c *cli, cmd *cobra.Command, args []string) error
}

func (c *cli) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		if err := c.loadConfig(); err != nil {
			return err
		}
		return cmd.run(c, innerCmd, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}

func (c *cli) loadConfig() error {
	cfg, err := config.GetConfig(c.configSelector)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	c.config = cfg

	levelText := os.Getenv(logLevelEnv)
	level, err := cfg.Level()
	if levelText != "" {
		level, err = log.ParseLevel(levelText)
	}
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.Debugf("herd config: %s", cfg)
	return nil
}

type showConfigCmd struct{}

func (s *showConfigCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
	}
}

func (s *showConfigCmd) run(c *cli, cmd *cobra.Command, args []string) error {
	sc, err := c.config.Scheduler.CreateSchedulerConfig()
	if err != nil {
		return err
	}
	cmd.Println(c.config.String())
	cmd.Println(sc.String())
	return nil
}
