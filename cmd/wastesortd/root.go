package main

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wastesort/internal/artifact"
	"wastesort/internal/config"
	"wastesort/internal/manager"
)

// app carries what every subcommand needs after flags are resolved.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer

	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	modelDirs  []string
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&app{stdout: os.Stdout, stderr: os.Stderr})
}

func newRootCmdFor(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wastesortd",
		Short:         "Classify waste images with a locally hosted model",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults WASTESORT_LOG_LEVEL or info)")
	pf.StringVar(&a.logFormat, "log-format", "auto", "Log format: auto|console|json")
	pf.StringSliceVar(&a.modelDirs, "model-dir", nil, "Model directory to search after "+artifact.EnvModelDir+" (repeatable)")

	root.AddCommand(newServeCmd(a), newClassifyCmd(a), newCheckCmd(a))
	return root
}

// resolve loads configuration with precedence flags > env > file > defaults.
func (a *app) resolve(cmd *cobra.Command) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !(errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("env-file")) {
			return err
		}
	}
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if err := a.cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}
	if len(a.modelDirs) > 0 {
		a.cfg.ModelDirs = a.modelDirs
	}
	a.cfg.ApplyDefaults()

	log, err := newLogger(a.stderr, a.cfg.LogLevel, a.logFormat)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func (a *app) newManager(pub manager.EventPublisher) *manager.Manager {
	return manager.NewWithConfig(manager.ManagerConfig{
		Logger:           a.log,
		EnvModelDir:      os.Getenv(artifact.EnvModelDir),
		ModelDirs:        a.cfg.ModelDirs,
		DefaultLabels:    a.cfg.DefaultLabels,
		DefaultInputSize: a.cfg.DefaultInputSize,
		ONNXLibraryPath:  a.cfg.ONNXLibraryPath,
		Publisher:        pub,
	})
}

// newLogger builds the root logger. auto picks the console writer when w
// is a terminal.
func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch format {
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	case "json":
	case "", "auto":
		if isTerminal(w) {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
		}
	default:
		return zerolog.Nop(), errors.New("unknown log format " + format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
