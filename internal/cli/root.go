// Package cli implements the sourcechain command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/sourcechain/internal/metrics"
	"github.com/mesh-intelligence/sourcechain/internal/paths"
	"github.com/mesh-intelligence/sourcechain/pkg/sqlite"
	"github.com/mesh-intelligence/sourcechain/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// usageError marks an error caused by bad input rather than a failure of
// the tool itself.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func userErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// exitCode maps a command error to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ue usageError
	if errors.As(err, &ue) {
		return exitUserError
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// inputErrors are store errors caused by the caller's input.
var inputErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidHash,
	types.ErrHashMismatch,
	types.ErrInvalidAction,
	types.ErrUnknownActionType,
	types.ErrInvalidAuthor,
	types.ErrInvalidStatus,
}

// app holds global flag values and the loaded configuration.
type app struct {
	configDir string
	dataDir   string
	logLevel  string
	metrics   bool

	cfg *viper.Viper
}

// NewRootCmd creates the top-level "sourcechain" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "sourcechain",
		Short: "Inspect and extend agent source chains",
		Long: "sourcechain stores signed agent chains, walks them from any position toward\n" +
			"genesis, and reports the links recorded against a base address.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(cmd.ErrOrStderr(), a.logLevel); err != nil {
				return err
			}
			configDir, err := paths.ResolveConfigDir(a.configDir)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			a.configDir = configDir
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !a.metrics {
				return nil
			}
			return metrics.WriteText(cmd.ErrOrStderr(), prometheus.DefaultGatherer)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.BoolVar(&a.metrics, "metrics", false, "print collected metrics to stderr on exit")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newCommitLinkCmd(a),
		newDeleteLinkCmd(a),
		newPutCmd(a),
		newShowCmd(a),
		newSetStatusCmd(a),
		newWalkCmd(a),
		newLinksCmd(a),
		newStatusCmd(a),
		newStatsCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "sourcechain:", err)
		os.Exit(exitCode(err))
	}
}

// setupLogging configures the global logrus logger.
func setupLogging(w io.Writer, level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return userErrorf("invalid --log-level %q", level)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// storeConfig builds the backend configuration from flags and config.yaml.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return types.Config{
		Backend:   a.cfg.GetString(cfgKeyBackend),
		DataDir:   dataDir,
		CacheSize: a.cfg.GetInt(cfgKeyCacheSize),
	}, nil
}

// withBackend attaches a backend for the duration of fn.
func (a *app) withBackend(fn func(b *sqlite.Backend) error) (err error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return err
	}
	b := sqlite.NewBackend()
	if err := b.Attach(cfg); err != nil {
		return fmt.Errorf("attach backend: %w", err)
	}
	defer func() {
		if derr := b.Detach(); derr != nil && err == nil {
			err = fmt.Errorf("detach backend: %w", derr)
		}
	}()
	return fn(b)
}
