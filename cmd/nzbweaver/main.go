package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/datallboy/nzbweaver/internal/api"
	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/datallboy/nzbweaver/internal/engine"
	"github.com/datallboy/nzbweaver/internal/infra/config"
	"github.com/datallboy/nzbweaver/internal/infra/logger"
	"github.com/datallboy/nzbweaver/internal/nntp"
	"github.com/datallboy/nzbweaver/internal/nzb"
	"github.com/datallboy/nzbweaver/internal/platform"
	"github.com/datallboy/nzbweaver/internal/processor"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	threads     int
	nzbPath     string
	quiet       bool
	remove      bool
	showExample bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "nzbweaver [flags] [file.nzb]",
		Short:        "Download, verify and unpack a Usenet release described by an NZB file",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showExample {
				fmt.Fprint(cmd.OutOrStdout(), config.Example)
				return nil
			}

			if opts.nzbPath == "" && len(args) == 1 {
				opts.nzbPath = args[0]
			}
			if opts.nzbPath == "" {
				return errors.New("no NZB file given, use -n <file> or pass it as an argument")
			}

			// Setup Signal Handling for Graceful Shutdown
			// We create a context that is cancelled when the user hits Ctrl+C
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to the config file (default config.yaml)")
	f.IntVarP(&opts.threads, "threads", "t", 0, "number of connections, overrides server.connections")
	f.StringVarP(&opts.nzbPath, "nzb", "n", "", "NZB file to download")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress line and log mirroring")
	f.BoolVarP(&opts.remove, "remove", "r", false, "remove the NZB file after a successful run")
	f.BoolVarP(&opts.showExample, "sample-config", "s", false, "print an example config and exit")

	return cmd
}

func run(ctx context.Context, opts options) error {
	// Load config
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	if opts.threads != 0 {
		cfg.Server.Connections = opts.threads
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", cfg.Log.Path, err)
	}
	defer log.Close()

	if opts.quiet {
		log.SetStdout(false)
	}

	for _, w := range cfg.Warnings() {
		log.Warn("%s", w)
	}

	if err := platform.ValidateDependencies(cfg.Download, log); err != nil {
		return err
	}

	model, err := nzb.ParseFile(opts.nzbPath)
	if err != nil {
		return fmt.Errorf("failed to read NZB %s: %w", opts.nzbPath, err)
	}

	name := nzb.ReleaseName(opts.nzbPath)
	rel, err := nzb.ToRelease(model, name, filepath.Join(cfg.Download.OutDir, name))
	if err != nil {
		return fmt.Errorf("%s: %w", opts.nzbPath, err)
	}

	appCtx := app.NewContext(cfg, log)
	appCtx.Quiet = opts.quiet
	appCtx.Sessions = func(id int) app.Session {
		return nntp.NewConn(id, nntpOptions(cfg.Server))
	}
	appCtx.Processor = processor.NewFromConfig(appCtx)

	dl := engine.NewDownloader(appCtx)

	if cfg.Status.Addr != "" {
		srv, err := api.NewServer(appCtx, cfg.Status.Addr, dl)
		if err != nil {
			return fmt.Errorf("status API: %w", err)
		}

		srvCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()

		go func() {
			if err := srv.Serve(srvCtx); err != nil {
				log.Error("Status API stopped: %v", err)
			}
		}()
	}

	if err := dl.Download(ctx, rel); err != nil {
		log.Error("%s: %v", rel.Name, err)
		return err
	}

	if opts.remove || cfg.Download.RemoveNZB {
		if err := os.Remove(opts.nzbPath); err != nil {
			log.Warn("Could not remove %s: %v", opts.nzbPath, err)
		} else {
			log.Info("Removed %s", opts.nzbPath)
		}
	}

	log.Info("Process finished successfully.")
	return nil
}

func nntpOptions(s config.ServerConfig) nntp.Options {
	return nntp.Options{
		Host:          s.Host,
		Port:          s.Port,
		Username:      s.Username,
		Password:      s.Password,
		TLS:           s.TLS,
		TLSSkipVerify: s.TLSSkipVerify,
		Timeout:       s.Timeout,
	}
}
