package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"fluxrescue/internal/capture"
	"fluxrescue/internal/decode"
	"fluxrescue/internal/fluxband"
)

type bandReport struct {
	Band       int     `json:"band"`
	CenterTick float64 `json:"center_ticks"`
	CenterNS   float64 `json:"center_ns"`
	Count      int     `json:"count"`
	Share      float64 `json:"share"`
}

type analyzeReport struct {
	File        string       `json:"file"`
	Revolutions int          `json:"revolutions"`
	Transitions int          `json:"transitions"`
	MeanTicks   float64      `json:"mean_ticks"`
	StddevTicks float64      `json:"stddev_ticks"`
	CellTicks   float64      `json:"cell_ticks,omitempty"`
	Bands       []bandReport `json:"bands"`
}

func newAnalyzeCommand(cctx *commandContext) *cobra.Command {
	var (
		tickNS  float64
		bands   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <fluxfile>",
		Short: "Show the timing band structure of one track's flux dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cctx.ensureConfig(); err != nil {
				return err
			}
			revs, err := capture.LoadFluxFile(args[0])
			if err != nil {
				return err
			}

			var flux []int32
			for _, rev := range revs {
				flux = append(flux, rev...)
			}

			rpt := analyzeReport{
				File:        args[0],
				Revolutions: len(revs),
				Transitions: len(flux),
			}
			rpt.MeanTicks, rpt.StddevTicks = fluxband.Stats(flux)
			if cell, err := decode.EstimateCell(flux, bands, 2); err == nil {
				rpt.CellTicks = cell
			}

			centers := fluxband.KMedian(flux, bands)
			assigned, _ := fluxband.Assign(flux, centers)
			counts := make([]int, len(centers))
			for _, band := range assigned {
				if band >= 0 && band < len(counts) {
					counts[band]++
				}
			}
			for i, center := range centers {
				rpt.Bands = append(rpt.Bands, bandReport{
					Band:       i + 1,
					CenterTick: center,
					CenterNS:   center * tickNS,
					Count:      counts[i],
					Share:      float64(counts[i]) / float64(len(flux)),
				})
			}

			if jsonOut {
				return writeJSON(cmd, rpt)
			}
			renderAnalysis(cmd, rpt)
			return nil
		},
	}

	cmd.Flags().Float64Var(&tickNS, "tick-ns", 25.0, "Flux capture clock period in nanoseconds")
	cmd.Flags().IntVar(&bands, "bands", 3, "Number of timing bands to fit")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print machine-readable JSON")

	return cmd
}

func renderAnalysis(cmd *cobra.Command, rpt analyzeReport) {
	out := cmd.OutOrStdout()
	p := message.NewPrinter(language.English)

	p.Fprintf(out, "%s: %d revolutions, %d transitions\n", rpt.File, rpt.Revolutions, rpt.Transitions)
	p.Fprintf(out, "interval mean %.1f ticks, stddev %.1f ticks\n", rpt.MeanTicks, rpt.StddevTicks)
	if rpt.CellTicks > 0 {
		p.Fprintf(out, "estimated bit cell %.1f ticks\n", rpt.CellTicks)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Band", "Center (ticks)", "Center (ns)", "Count", "Share"})
	for _, band := range rpt.Bands {
		tw.AppendRow(table.Row{
			band.Band,
			fmt.Sprintf("%.1f", band.CenterTick),
			fmt.Sprintf("%.1f", band.CenterNS),
			p.Sprintf("%d", band.Count),
			fmt.Sprintf("%.1f%%", band.Share*100),
		})
	}
	tw.Render()
}
