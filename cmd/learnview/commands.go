package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-learnview/internal/app"
	"github.com/yungbote/neurobridge-learnview/internal/jobs/housekeeping"
	"github.com/yungbote/neurobridge-learnview/internal/learning/render"
	"github.com/yungbote/neurobridge-learnview/internal/platform/logger"
)

var configDir string

func bootstrap() (app.Config, *logger.Logger, error) {
	cfg, err := app.LoadConfig(nil, configDir)
	if err != nil {
		return app.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return app.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, log, cfg)
			if err != nil {
				log.Error("app init failed", "error", err)
				log.Sync()
				return err
			}
			defer a.Close()
			if err := a.Start(ctx); err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func renderCmd() *cobra.Command {
	var resolve bool
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render lesson text to sanitized HTML (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := io.Reader(cmd.InOrStdin())
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			raw, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			html := render.RenderContent(string(raw))
			if resolve {
				cfg, log, err := bootstrap()
				if err != nil {
					return err
				}
				defer log.Sync()
				resolver, err := app.NewDiagramResolver(log, cfg)
				if err != nil {
					return err
				}
				html, err = resolver.Resolve(cmd.Context(), html)
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
			return err
		},
	}
	cmd.Flags().BoolVar(&resolve, "resolve-diagrams", false, "replace diagram placeholders with images")
	return cmd
}

func housekeepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "housekeep",
		Short: "Trim the local lesson cache once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			a, err := app.NewStorage(cmd.Context(), log, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			res := housekeeping.New(log, a.Store, nil, housekeeping.Config{}).RunOnce(cmd.Context())
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "evicted %d cached lessons\n", res.LessonsEvicted)
			return err
		},
	}
}
