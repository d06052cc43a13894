// Package main implements the main entry point for a ROM tile square assembly synchronizer
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/cli"
	"github.com/retroenv/romsync/internal/config"
	"github.com/retroenv/romsync/internal/errs"
	"github.com/retroenv/romsync/internal/fileprocessor"
	"github.com/retroenv/romsync/internal/options"
	"github.com/retroenv/romsync/internal/pipeline"
	"github.com/retroenv/romsync/internal/resolver"
	"github.com/retroenv/romsync/internal/rom"
	"github.com/retroenv/romsync/internal/saver"
	"golang.org/x/term"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

// exit status of a check that found a divergence
const exitDiverged = 2

func main() {
	ctx := app.Context()

	opts, err := cli.ParseFlags()
	if err != nil {
		logger := config.CreateLogger(opts.Debug, opts.Quiet)
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			fileprocessor.PrintBanner(logger, opts, version, commit, date)
			if usageErr.Error() != "" {
				logger.Error(usageErr.Error())
			}
			usageErr.ShowUsage()
		} else {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}

	logger := config.CreateLogger(opts.Debug, opts.Quiet)
	fileprocessor.PrintBanner(logger, opts, version, commit, date)

	os.Exit(run(ctx, logger, opts))
}

func run(ctx context.Context, logger *log.Logger, opts options.Program) int {
	layout, err := config.LoadLayout(opts.Config)
	if err != nil {
		logger.Error("Loading layout failed", log.Err(err))
		return 1
	}

	resolve, closer, err := createResolver(logger, opts.Resolve)
	if err != nil {
		logger.Error("Creating resolver failed", log.Err(err))
		return 1
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	files, err := fileprocessor.GetFilesToProcess(&opts)
	if err != nil {
		logger.Error(err.Error())
		return 1
	}

	p := pipeline.New(logger, layout, resolve)
	status := 0
	for _, file := range files {
		opts.Input = file

		if err := p.Execute(ctx, opts); err != nil {
			// Handle context cancellation (Ctrl+C) gracefully
			if errors.Is(err, context.Canceled) {
				logger.Info("Operation cancelled")
				return 1
			}

			switch errs.KindOf(err) {
			case errs.Divergence:
				logger.Warn("ROM diverged", log.String("file", file), log.Err(err))
				status = max(status, exitDiverged)
			default:
				logger.Error(fmt.Sprintf("Command %s failed", opts.Command),
					log.String("file", file),
					log.Stringer("kind", errs.KindOf(err)),
					log.Err(err))
				status = max(status, 1)
			}
		}
	}
	return status
}

// createResolver returns the resolver for the policy. The prompt needs a
// terminal, without one the values in memory are kept.
func createResolver(logger *log.Logger, policy string) (saver.Resolver[*rom.ROM], io.Closer, error) {
	if policy != resolver.PolicyPrompt {
		resolve, err := resolver.ForPolicy[*rom.ROM](policy)
		return resolve, nil, err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		logger.Warn("Standard input is not a terminal, keeping changes in memory on conflicts")
		return resolver.KeepMemory[*rom.ROM], nil, nil
	}

	prompt, closer, err := resolver.NewTerminal(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening terminal: %w", err)
	}
	return resolver.Ask[*rom.ROM](prompt), closer, nil
}
