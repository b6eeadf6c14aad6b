package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pendencias/internal"
	"pendencias/internal/httpapi"
	"pendencias/internal/listener"
	"pendencias/internal/pipeline"
	"pendencias/internal/storage"
)

func runCmd() *cobra.Command {
	var (
		input, output, name string
		overrides           pipeline.Overrides
		treatBlank          bool
		filter              pipeline.FilterOptions
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract one file and write the pending list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" {
				return errors.New("--input and --output are required")
			}
			if cmd.Flags().Changed("treat-blank") {
				overrides.TreatBlank = &treatBlank
			}

			db, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := pipeline.NewProcessingService(db, cfg, logger)
			opts, err := overrides.Apply(svc.Options())
			if err != nil {
				return err
			}
			srcName, data, err := pipeline.ReadInput(input, name)
			if err != nil {
				return err
			}
			res, err := svc.ProcessFileWith(cmd.Context(), srcName, data, opts)
			if err != nil {
				return err
			}

			records := pipeline.Filter(res.Records, filter)
			if err := pipeline.ExportRecords(records, output, opts.Decode.Delimiter); err != nil {
				return err
			}
			printSummary(cmd, pipeline.Summarize(records, cfg.TopModules), res.Diagnostics, output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "input export, - for stdin")
	f.StringVarP(&output, "output", "o", "", "output file (.csv or .xlsx)")
	f.StringVar(&name, "name", "", "source name used for format detection when reading stdin")
	f.IntVar(&overrides.HeaderRows, "header-rows", 0, "header rows (1 or 2)")
	f.StringVar(&overrides.Delimiter, "delimiter", "", "text delimiter (, or ;)")
	f.StringVar(&overrides.Encoding, "encoding", "", "text encoding")
	f.StringVar(&overrides.Format, "format", "", "force input format (csv|xlsx|xls|html)")
	f.BoolVar(&treatBlank, "treat-blank", false, "report blank activity cells as not done")
	f.StringSliceVar(&filter.Tutors, "tutor", nil, "keep only these tutors")
	f.StringSliceVar(&filter.Modules, "module", nil, "keep only these modules")
	return cmd
}

func printSummary(cmd *cobra.Command, s pipeline.Summary, diag internal.Diagnostics, output string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "wrote %d pending activities for %d students to %s\n", s.Total, s.Students, output)
	fmt.Fprintf(out, "format=%s labels=%d rows=%d blank=%d truncated=%d identity=%s\n",
		diag.Format, diag.Labels, diag.DataRows, diag.BlankRows, diag.TruncatedRows, diag.Identity)
	for _, c := range s.ByStatus {
		fmt.Fprintf(out, "  status %-3s %d\n", c.Name, c.Count)
	}
	for _, c := range s.ByTutor {
		fmt.Fprintf(out, "  tutor  %-30s %d\n", c.Name, c.Count)
	}
	for _, c := range s.ByModule {
		fmt.Fprintf(out, "  module %-30s %d\n", c.Name, c.Count)
	}
}

func serveCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.HTTPAddr
			}
			db, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			svc := pipeline.NewProcessingService(db, cfg, logger)
			router := httpapi.NewRouter(httpapi.NewHandlers(svc, db, cfg, logger), cfg.CORSOrigins)
			srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
				defer done()
				return srv.Shutdown(shutdownCtx)
			})
			if watch {
				g.Go(func() error {
					return listener.NewService(db, cfg, logger).Run(gctx)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default HTTP_ADDR)")
	cmd.Flags().BoolVar(&watch, "watch", false, "also run the inbox listener")
	return cmd
}

func watchCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the inbox listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			svc := listener.NewService(db, cfg, logger)
			if once {
				res, err := svc.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fetched=%d stored=%d processed=%d failed=%d exported=%d\n",
					res.Fetched, res.Stored, res.Processed, res.Failed, res.Exported)
				return nil
			}
			return svc.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent extraction runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(out, "%s %-6s %-5s records=%d truncated=%d %s %s\n",
					r.CreatedAt, r.Status, r.Format, r.Counts["records"], r.Counts["truncated"], r.Source, r.ErrorKind)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs")
	return cmd
}
