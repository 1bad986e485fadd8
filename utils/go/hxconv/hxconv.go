// Package hxconv is a CLI utility that converts camera recordings
// into standard container files without re-encoding.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"ipcamconv/pkg/config"
	"ipcamconv/pkg/convert"
	"ipcamconv/pkg/log"
)

const usage = `convert camera recordings into standard container files
usage: hxconv [-n] [-q] [-f format] [-config path] input.264 [output]
       hxconv [-n] [-q] [-f format] [-config path] [-workers n] -dir directory
       hxconv -config path -logs n
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	skipAudio  bool
	quiet      bool
	format     string
	dir        string
	workers    int
	logs       int

	input  string
	output string

	// Names of the flags present on the command line.
	set map[string]bool
}

var errUsage = errors.New("invalid arguments")

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("hxconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&o.configPath, "config", "", "path to configuration file")
	fs.BoolVar(&o.skipAudio, "n", false, "skip audio")
	fs.BoolVar(&o.quiet, "q", false, "only log errors")
	fs.StringVar(&o.format, "f", "", "output format, guessed from the output path if empty")
	fs.StringVar(&o.dir, "dir", "", "convert every new recording in directory")
	fs.IntVar(&o.workers, "workers", 0, "number of concurrent conversions in directory mode")
	fs.IntVar(&o.logs, "logs", 0, "print the last n entries of the log database and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		o.set[f.Name] = true
	})

	rest := fs.Args()
	switch {
	case o.logs > 0 && o.dir == "" && len(rest) == 0:
	case o.logs == 0 && o.dir != "" && len(rest) == 0:
	case o.logs == 0 && o.dir == "" && len(rest) == 1:
		o.input = rest[0]
	case o.logs == 0 && o.dir == "" && len(rest) == 2:
		o.input, o.output = rest[0], rest[1]
	default:
		fs.Usage()
		return nil, errUsage
	}
	return &o, nil
}

// applyFlags overrides the configuration with flags from the command line.
func applyFlags(c *config.Config, o *options) error {
	if o.set["n"] {
		c.SkipAudio = o.skipAudio
	}
	if o.set["q"] {
		c.Quiet = o.quiet
	}
	if o.set["f"] {
		c.Format = o.format
	}
	if o.set["workers"] {
		c.Workers = o.workers
	}
	return c.Validate()
}

func loadConfig(o *options) (*config.Config, error) {
	path := o.configPath
	if path != "" {
		var err error
		path, err = filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute path of config: %w", err)
		}
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := applyFlags(c, o); err != nil {
		return nil, err
	}
	return c, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	c, err := loadConfig(o)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if o.logs > 0 {
		if err := printLogs(c, o.logs, stdout); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}
	logger, closeLogs := startLogger(ctx, wg, c, stderr)
	defer func() {
		cancel()
		wg.Wait()
		closeLogs()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)
	go func() {
		select {
		case sig := <-stop:
			logger.Info().Src("app").Msgf("received %v, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	conv := convert.New(c, logger)

	if o.dir != "" {
		results, err := conv.Batch(ctx, o.dir, stdout)
		if err != nil {
			logger.Error().Src("app").Msgf("batch: %v", err)
			return 1
		}
		for _, result := range results {
			if result.Err != nil {
				logger.Error().Src("app").File(result.Input).Msgf("%v", result.Err)
			}
		}
		for _, result := range results {
			if result.Err != nil {
				return 1
			}
		}
		return 0
	}

	if _, err := conv.Convert(ctx, o.input, o.output); err != nil {
		logger.Error().Src("app").File(o.input).Msgf("%v", err)
		return 1
	}
	return 0
}

// startLogger starts the logger and its outputs. The returned
// function must be called after the logger has stopped.
func startLogger(
	ctx context.Context,
	wg *sync.WaitGroup,
	c *config.Config,
	stderr io.Writer,
) (*log.Logger, func()) {
	logger := log.NewLogger(wg)
	logger.Start(ctx)
	logger.LogToWriter(stderr, c.StderrLevel())

	var closers []io.Closer
	if c.LogFile != "" {
		w, err := log.NewRotatedWriter(c.LogFile, c.LogMaxAge, 0)
		if err != nil {
			logger.Error().Src("app").Msgf("could not open log file: %v", err)
		} else {
			logger.LogToWriter(w, log.LevelDebug)
			closers = append(closers, w)
		}
	}
	if c.LogDB != "" {
		logDB := log.NewDB(c.LogDB, wg)
		if err := logDB.Init(); err != nil {
			// Continue even if log database is corrupt.
			logger.Error().Src("app").Msgf("could not initialize log database: %v", err)
		} else {
			logDB.SaveLogs(logger)
			closers = append(closers, logDB)
		}
	}

	return logger, func() {
		for _, closer := range closers {
			closer.Close()
		}
	}
}

var errNoLogDB = errors.New("logDB is not set")

// printLogs writes the newest n entries of the log database, oldest first.
func printLogs(c *config.Config, n int, w io.Writer) error {
	if c.LogDB == "" {
		return errNoLogDB
	}
	logDB := log.NewDB(c.LogDB, &sync.WaitGroup{})
	if err := logDB.Init(); err != nil {
		return err
	}
	defer logDB.Close()

	logs, err := logDB.Query(log.Query{Limit: n})
	if err != nil {
		return fmt.Errorf("query logs: %w", err)
	}
	for i := len(*logs) - 1; i >= 0; i-- {
		fmt.Fprintln(w, log.FormatLog((*logs)[i]))
	}
	return nil
}
