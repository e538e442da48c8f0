package report

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// RenderSummary prints the per-track table and totals. Color is applied only
// when requested; callers usually pass Colorize(os.Stdout).
func RenderSummary(w io.Writer, doc Document, color bool) {
	diag := doc.DiskDiagnostics

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Track", "Head", "Encoding", "Sectors", "OK", "Bad", "RPM", "Quality"})
	for _, tr := range diag.Tracks {
		quality := tr.Quality
		if color {
			quality = colorGrade(tr.Quality)
		}
		rpm := "-"
		if tr.RPM > 0 {
			rpm = fmt.Sprintf("%.1f", tr.RPM)
		}
		t.AppendRow(table.Row{tr.Track, tr.Head, tr.Encoding, tr.SectorsFound, tr.SectorsOK, tr.SectorsBad, rpm, quality})
	}
	t.AppendFooter(table.Row{"", "", "", "", diag.Analysis.SectorsOK, diag.Analysis.SectorsBad, "", diag.Analysis.OverallQuality})
	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Fprintf(w, "image crc32 %s md5 %s\n", diag.Checksums.CRC32, diag.Checksums.MD5)

	if len(doc.Unrecovered) > 0 {
		fmt.Fprintf(w, "%d sector(s) unrecovered:\n", len(doc.Unrecovered))
		for _, sec := range doc.Unrecovered {
			fmt.Fprintf(w, "  track %d head %d sector %d: %s\n", sec.Track, sec.Head, sec.Sector, sec.Reason)
		}
	}
}

// Colorize reports whether output to f should use color.
func Colorize(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorGrade(grade string) string {
	switch grade {
	case "A", "B":
		return text.FgGreen.Sprint(grade)
	case "C", "D":
		return text.FgYellow.Sprint(grade)
	default:
		return text.FgRed.Sprint(grade)
	}
}
