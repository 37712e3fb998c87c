package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pywatch/pywatch/internal/config"
	"github.com/pywatch/pywatch/internal/discovery"
	"github.com/pywatch/pywatch/internal/dispatch"
	"github.com/pywatch/pywatch/internal/driver"
	"github.com/pywatch/pywatch/internal/errs"
	"github.com/pywatch/pywatch/internal/fswait"
	"github.com/pywatch/pywatch/internal/kbd"
	"github.com/pywatch/pywatch/internal/pyimport"
	"github.com/pywatch/pywatch/internal/render"
	"github.com/pywatch/pywatch/internal/watch"
	"github.com/pywatch/pywatch/internal/wlog"
)

var watchCmd = &cobra.Command{
	Use:          "watch <directory>",
	Short:        "Watch a Python package tree and re-run affected tests on change",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.String("config", "", "path to a .pywatchrc.yml file (default: look in the watched directory)")
	f.StringSlice("ignore-package", nil, "package basename to ignore (repeatable)")
	f.StringSlice("ignore-module", nil, "module basename to ignore (repeatable)")
	f.Float64("frequency", 0, "cycle sleep period in seconds (default 0.5)")
	f.Float64("run-timeout", 0, "subprocess timeout in seconds (default 20.0)")
	f.StringSlice("map", nil, "static PRODUCTION->TEST mapping (repeatable)")
	f.Bool("dbg", false, "enable debug mode: render analysis, pause between cycles")
	f.String("interpreter", "python3", "interpreter used to run test files")
	f.Int("workers", 8, "maximum concurrent parses/dispatches per cycle")
	f.Bool("fast-wake", true, "use filesystem events to shorten polling latency")

	for _, name := range []string{"config", "ignore-package", "ignore-module", "frequency", "run-timeout", "map", "dbg", "interpreter", "workers", "fast-wake"} {
		if err := viper.BindPFlag("watch."+name, f.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return errs.NewConfigError("cannot resolve path: %s", err)
	}

	opts := config.Defaults()
	for name := range discovery.DefaultIgnorePackages() {
		opts.IgnorePackage[name] = true
	}
	for name := range discovery.DefaultIgnoreModules() {
		opts.IgnoreModule[name] = true
	}
	projectCfg, err := config.LoadProjectConfig(dir, viper.GetString("watch.config"))
	if err != nil {
		return errs.NewConfigError("%s", err)
	}
	opts.ApplyProjectConfig(projectCfg)

	for _, name := range viper.GetStringSlice("watch.ignore-package") {
		opts.IgnorePackage[name] = true
	}
	for _, name := range viper.GetStringSlice("watch.ignore-module") {
		opts.IgnoreModule[name] = true
	}
	if freq := viper.GetFloat64("watch.frequency"); freq > 0 {
		opts.Frequency = freq
	}
	if timeout := viper.GetFloat64("watch.run-timeout"); timeout > 0 {
		opts.RunTimeout = timeout
	}
	opts.Map = append(opts.Map, viper.GetStringSlice("watch.map")...)
	opts.Dbg = opts.Dbg || viper.GetBool("watch.dbg")
	workers := viper.GetInt("watch.workers")

	log := wlog.Default(opts.Dbg)

	pool, err := pyimport.NewParserPool()
	if err != nil {
		return errs.NewConfigError("start parser pool: %s", err)
	}
	defer pool.Close()
	extractor := pyimport.NewExtractor(pool)

	watched, err := watch.NewWatchedDir(dir, opts.IgnorePackage, opts.IgnoreModule, extractor)
	if err != nil {
		return errs.NewConfigError("%s", err)
	}
	watched.Timeout = time.Duration(opts.RunTimeout * float64(time.Second))
	watched.Workers = workers

	for _, m := range opts.Map {
		if err := watched.Map(m); err != nil {
			return errs.NewConfigError("%s", err)
		}
	}

	dispatcher := dispatch.New(viper.GetString("watch.interpreter"), watched.Timeout, workers, watched.RootPackage)
	renderer := render.New()
	d := driver.New(watched, dispatcher, renderer, time.Duration(opts.Frequency*float64(time.Second)), opts.Dbg)

	reader, err := kbd.Start()
	if err != nil {
		log.Warn("keyboard input unavailable, use Ctrl+C to quit: %s", err)
	} else {
		defer reader.Stop()
		go forwardInput(reader.Input, d.Input)
	}

	var waiter *fswait.Waiter
	if viper.GetBool("watch.fast-wake") {
		waiter, err = fswait.New(dir)
		if err != nil {
			log.Warn("fast-wake disabled, falling back to pure polling: %s", err)
		} else {
			defer waiter.Close()
			d.FsWake = waiter.Wake
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		close(d.Quit)
		cancel()
	}()

	log.Info("watching %s (frequency=%.2fs, run-timeout=%.2fs)", dir, opts.Frequency, opts.RunTimeout)
	if err := d.Run(ctx); err != nil {
		return &errs.ExitError{Code: 1, Message: fmt.Sprintf("driver stopped: %s", err)}
	}
	return nil
}

func forwardInput(from <-chan rune, to chan<- rune) {
	for r := range from {
		to <- r
	}
}
