package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/v0xg/uistep/internal/config"
	"github.com/v0xg/uistep/internal/controller"
	"github.com/v0xg/uistep/internal/observability"
)

// errStepFailed is returned after the failure has been printed.
var errStepFailed = errors.New("step failed")

// app carries what every subcommand shares.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "uistep",
		Short: "Resolve locator expressions and run resilient browser steps",
		Long: `uistep turns Playwright-style locator expressions into elements and
performs described actions on them, falling back through alternative
selectors and reporting every failed attempt with a page snapshot.

Example:
  uistep do https://www.saucedemo.com --action click \
    --selector "getByRole('button', { name: 'Login' })" --description "Click Login"`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (YAML)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Log at debug level")
	pf.String("log-format", "console", "Log format: console, json")
	pf.Duration("timeout", 0, "Timeout of each resolution stage (default from config)")
	pf.Bool("strict", false, "Report ambiguous matches instead of taking the first")
	a.bind(root, "logger.format", "log-format")
	a.bind(root, "engine.timeout", "timeout")
	a.bind(root, "engine.strict_ambiguity", "strict")

	root.AddCommand(newParseCmd(a), newResolveCmd(a), newDoCmd(a), newRunCmd(a))
	return root
}

// configKey is the flag annotation naming the config key a flag sets.
const configKey = "uistep_config_key"

// bind marks flag of cmd as setting key. Binding happens in setup, for the
// command that actually runs, since several commands share keys.
func (a *app) bind(cmd *cobra.Command, key, flag string) {
	fs := cmd.Flags()
	if fs.Lookup(flag) == nil {
		fs = cmd.PersistentFlags()
	}
	if err := fs.SetAnnotation(flag, configKey, []string{key}); err != nil {
		panic(err)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKey]; len(keys) == 1 && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return bindErr
	}
	if a.verbose {
		a.v.Set("logger.level", "debug")
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	log, err := observability.NewConsoleLogger(cfg.Logger)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) controller() *controller.Controller {
	return controller.New(a.cfg.ControllerOptions(a.log))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
