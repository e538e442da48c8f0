package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fluxrescue/internal/capture"
	"fluxrescue/internal/config"
	"fluxrescue/internal/logging"
	"fluxrescue/internal/recovery"
	"fluxrescue/internal/report"
	"fluxrescue/internal/resultdb"
)

func newRecoverCommand(cctx *commandContext) *cobra.Command {
	var (
		fluxInput  bool
		tickNS     float64
		cylinders  int
		heads      int
		sectors    int
		sectorSize int
		outputPath string
		reportPath string
		jsonOut    bool
		strict     bool
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "recover <input>",
		Short: "Recover a disk from a flux dump directory or raw sector image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cctx.ensureLogger()
			if err != nil {
				return err
			}

			runCfg := *cfg
			if cmd.Flags().Changed("strict") {
				runCfg.Recovery.StrictMode = strict
			}
			if cmd.Flags().Changed("workers") {
				runCfg.Recovery.Workers = workers
			}

			input := args[0]
			opt, format, err := buildSource(input, fluxInput, tickNS, cylinders, heads, sectors, sectorSize)
			if err != nil {
				return err
			}

			pipe, err := recovery.New(&runCfg, logger, opt, recovery.WithCallbacks(recovery.Callbacks{
				Progress: func(stage recovery.Stage, session *recovery.Session) {
					logger.Info("stage changed",
						logging.String(logging.FieldStage, stage.String()),
						logging.String(logging.FieldSessionID, session.ID))
				},
			}))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session, runErr := pipe.Run(ctx)
			if session == nil {
				return runErr
			}

			doc := report.Build(session, input, format)
			if outputPath != "" {
				if err := os.WriteFile(outputPath, report.Image(session, byte(runCfg.Recovery.FillByte)), 0o644); err != nil {
					return fmt.Errorf("write recovered image: %w", err)
				}
			}
			if reportPath != "" {
				f, err := os.Create(reportPath)
				if err != nil {
					return fmt.Errorf("create report file: %w", err)
				}
				if err := report.WriteJSON(f, doc); err != nil {
					f.Close()
					return fmt.Errorf("write report: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close report file: %w", err)
				}
			}

			if jsonOut {
				if err := writeJSON(cmd, doc); err != nil {
					return err
				}
			} else {
				report.RenderSummary(cmd.OutOrStdout(), doc, report.Colorize(os.Stdout))
			}

			if err := recordSession(cmd, cfg, session, logger); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&fluxInput, "flux", false, "Treat input as a directory of per-track flux dumps")
	cmd.Flags().Float64Var(&tickNS, "tick-ns", 25.0, "Flux capture clock period in nanoseconds")
	cmd.Flags().IntVar(&cylinders, "cylinders", 80, "Image cylinders")
	cmd.Flags().IntVar(&heads, "heads", 2, "Image heads")
	cmd.Flags().IntVar(&sectors, "sectors", 18, "Image sectors per track")
	cmd.Flags().IntVar(&sectorSize, "sector-size", 512, "Image sector size in bytes")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the recovered image to this path")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the diagnostics JSON document to this path")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the diagnostics document instead of the summary table")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any sector stays unrecovered")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent track workers")

	return cmd
}

func buildSource(input string, flux bool, tickNS float64, cylinders, heads, sectors, sectorSize int) (recovery.Option, string, error) {
	if flux {
		src, err := capture.LoadFluxDir(input, tickNS)
		if err != nil {
			return nil, "", err
		}
		return recovery.WithFluxSource(src), "mfm", nil
	}
	src, err := capture.LoadImage(input, cylinders, heads, sectors, sectorSize)
	if err != nil {
		return nil, "", err
	}
	return recovery.WithSectorSource(src), "raw", nil
}

func recordSession(cmd *cobra.Command, cfg *config.Config, session *recovery.Session, logger *slog.Logger) error {
	if !cfg.Results.Enabled {
		return nil
	}
	store, err := resultdb.Open(cfg.Results.Path)
	if err != nil {
		return fmt.Errorf("open results database: %w", err)
	}
	defer store.Close()
	if err := store.RecordSession(cmd.Context(), session); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	logger.Info("session recorded",
		logging.String(logging.FieldSessionID, session.ID),
		logging.String("path", store.Path()))
	return nil
}
