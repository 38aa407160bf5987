package main

import (
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// globalState holds everything a command touches outside its arguments.
type globalState struct {
	fs        afero.Fs
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
	isTTY     func() bool

	flags globalFlags
	cfg   Config
	log   *zap.Logger
}

type globalFlags struct {
	configPath     string
	logLevel       string
	logDevelopment bool
}

func newGlobalState() *globalState {
	return &globalState{
		fs:        afero.NewOsFs(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		lookupEnv: os.LookupEnv,
		isTTY: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
		log: zap.NewNop(),
	}
}

// configure loads the configuration and installs the logger. The config
// path falls back to DXC_CONFIG so commands that take raw compiler
// arguments can still name one.
func (gs *globalState) configure() error {
	path := gs.flags.configPath
	if path == "" {
		path, _ = gs.lookupEnv("DXC_CONFIG")
	}
	cfg, err := loadConfig(gs.fs, path, gs.lookupEnv)
	if err != nil {
		return err
	}
	if gs.flags.logLevel != "" {
		cfg.LogLevel = gs.flags.logLevel
	}
	if gs.flags.logDevelopment {
		cfg.LogDevelopment = true
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	gs.cfg = cfg
	gs.log = log
	installLogger(log)
	return nil
}

func newRootCommand(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "dxc",
		Short:         "DXC-compatible shader compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return gs.configure()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = gs.log.Sync()
		},
	}
	root.SetOut(gs.stdout)
	root.SetErr(gs.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&gs.flags.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&gs.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&gs.flags.logDevelopment, "log-development", false, "human-readable development logging")

	root.AddCommand(
		newCompileCommand(gs),
		newInteractiveCommand(gs),
		newRunGuestCommand(gs),
	)
	return root
}
