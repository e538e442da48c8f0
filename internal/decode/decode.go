// Package decode converts flux timing into bitstreams and decodes the
// self-clocking symbol encodings (Commodore GCR 4-to-5, Apple II 6-and-2,
// MFM/FM, Amiga odd/even MFM). Byte-level decode functions are pure; flux
// decode reports position-local failures and never panics on malformed
// input.
package decode

import (
	"math"

	"fluxrescue/internal/bitstream"
	"fluxrescue/internal/cpufeat"
	"fluxrescue/internal/errkind"
	"fluxrescue/internal/fluxband"
)

// Window is the bit-cell tolerance applied to each flux delta. A delta whose
// per-cell time falls outside [Low*cell, High*cell] is treated as noise and
// skipped rather than decoded or reported as fatal.
type Window struct {
	Low  float64
	High float64
}

// DefaultWindow matches the classic 25% tolerance around the nominal cell.
func DefaultWindow() Window { return Window{Low: 0.75, High: 1.25} }

// Decoder turns flux samples into bitstreams using a nominal cell time and
// the dispatched decode kernels.
type Decoder struct {
	kernels cpufeat.Kernels
	window  Window
}

// NewDecoder builds a decoder for the supplied CPU features.
func NewDecoder(features cpufeat.Features, window Window) *Decoder {
	if window.Low <= 0 || window.High <= window.Low {
		window = DefaultWindow()
	}
	return &Decoder{kernels: cpufeat.Select(features), window: window}
}

// Kernels exposes the selected kernel family, mainly for logging.
func (d *Decoder) Kernels() cpufeat.Kernels { return d.kernels }

// EstimateCell estimates the nominal bit-cell time from the shortest timing
// band of the flux. MFM has bands at 2T/3T/4T, so the smallest k-median
// center divided by two is the cell; GCR bands start at 1T.
func EstimateCell(flux []int32, bands int, shortBandCells float64) (float64, error) {
	if len(flux) < 2 {
		return 0, errkind.Wrap(errkind.ErrInvalidParameter, "decode", "estimate cell", "need at least 2 flux samples", nil)
	}
	centers := fluxband.KMedian(flux, bands)
	if len(centers) == 0 || centers[0] <= 0 || shortBandCells <= 0 {
		return 0, errkind.Wrap(errkind.ErrFormatMismatch, "decode", "estimate cell", "no usable timing bands", nil)
	}
	return centers[0] / shortBandCells, nil
}

// FluxToBits performs the self-clocking decode: each transition emits a "1",
// preceded by (cells-1) zeros, where cells is the delta rounded to whole bit
// cells. Deltas whose per-cell time falls outside the window are skipped.
// Per-bit confidence reflects how close each delta sat to its ideal timing.
func (d *Decoder) FluxToBits(flux []int32, cellTicks float64) *bitstream.Stream {
	if len(flux) == 0 || cellTicks <= 0 {
		return bitstream.New(0)
	}

	type cellRun struct {
		cells int
		conf  float64
	}
	runs := make([]cellRun, 0, len(flux))
	total := 0
	for _, delta := range flux {
		dv := float64(delta)
		if dv <= 0 {
			continue
		}
		cells := int(math.Round(dv / cellTicks))
		if cells < 1 {
			cells = 1
		}
		perCell := dv / float64(cells)
		if perCell < d.window.Low*cellTicks || perCell > d.window.High*cellTicks {
			continue // noise
		}
		// 1.0 at dead center, falling linearly toward the window edges.
		deviation := math.Abs(perCell-cellTicks) / (cellTicks * (d.window.High - 1))
		conf := 1.0 - math.Min(deviation, 1.0)*0.5
		runs = append(runs, cellRun{cells: cells, conf: conf})
		total += cells
	}

	out := bitstream.New(total)
	out.Confidence = make([]float64, total)
	pos := 0
	for _, run := range runs {
		for i := 0; i < run.cells-1; i++ {
			out.Confidence[pos] = run.conf
			pos++
		}
		out.Set(pos, 1)
		out.Confidence[pos] = run.conf
		pos++
	}
	return out
}
