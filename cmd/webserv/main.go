// Command webserv is the entry point: parse a config file, start the
// event loop, and run until terminated, per spec.md §6.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RealConrad/42webserv/internal/config"
	"github.com/RealConrad/42webserv/internal/logging"
	"github.com/RealConrad/42webserv/internal/netloop"
)

const defaultConfigPath = "config/default.config"

var (
	pollTimeoutOverride int
	noColour            bool
	dumpConfig          bool
	cgiInterpreter      string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webserv [path-to-config]",
		Short: "A single-threaded, poll()-driven HTTP/1.1 origin server",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}
	cmd.Flags().IntVar(&pollTimeoutOverride, "poll-timeout", 0, "override the config file's server_timeout_time, in milliseconds")
	cmd.Flags().BoolVar(&noColour, "no-colour", false, "disable ANSI colour in log output")
	cmd.Flags().BoolVar(&dumpConfig, "dump-config", false, "parse the config file, print it, and exit")
	cmd.Flags().StringVar(&cgiInterpreter, "cgi-interpreter", "python3", "interpreter command line used to run .py CGI scripts")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if noColour {
		logging.Default.SetUseColour(false)
	}

	path := defaultConfigPath
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := config.Load(path)
	if err != nil {
		logging.Errorf("failed to load config %q: %v", path, err)
		return fmt.Errorf("config error: %w", err)
	}

	if pollTimeoutOverride > 0 {
		cfg.PollTimeoutMS = pollTimeoutOverride
	}

	if dumpConfig {
		fmt.Println(cfg.String())
		return nil
	}

	netloop.CGIInterpreter = cgiInterpreter

	logging.Successf("configuration loaded from %s: %d server block(s)", path, len(cfg.Servers))
	if err := netloop.Run(&cfg); err != nil {
		logging.Errorf("event loop exited with error: %v", err)
		return err
	}
	return nil
}
