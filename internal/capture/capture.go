// Package capture defines the input contract of the recovery pipeline. A
// Source hands out flux timing for one revolution of one track; a
// SectorSource hands out already-framed sector bytes with their stored
// checksum. Sources do not retry: transient failures surface as errors and
// the pipeline owns the retry budget.
package capture

import (
	"context"
	"fmt"

	"fluxrescue/internal/errkind"
)

// Revolution is one index-to-index flux capture.
type Revolution struct {
	// Flux holds transition-to-transition deltas in ticks.
	Flux []int32
	// TickNS is the capture clock period in nanoseconds per tick.
	TickNS float64
	// Index marks tick offsets of index pulses seen during the capture,
	// empty for hard-sectored or index-less captures.
	Index []int32
}

// Source produces flux captures addressed by cylinder, head, and revolution
// number. Implementations must be safe for concurrent use by the per-track
// workers.
type Source interface {
	// Geometry reports cylinders and heads available from this source.
	Geometry() (cylinders, heads int)

	// ReadRevolution captures revolution rev of the addressed track.
	ReadRevolution(ctx context.Context, cyl, head, rev int) (Revolution, error)
}

// RawSector is a framed sector as read, before validation.
type RawSector struct {
	Data      []byte
	StoredCRC uint16
	// Confidence in percent, 0 to 100, as reported by the source. Sources
	// without a quality signal report 100.
	Confidence int
}

// SectorSource produces framed sector bytes directly, for captures that were
// already decoded upstream (sector images, hardware with onboard decode).
type SectorSource interface {
	Geometry() (cylinders, heads int)
	SectorsPerTrack() int
	SectorSize() int

	// ReadSector returns one sector read attempt. Repeated calls for the
	// same address may return different bytes when the media is marginal.
	ReadSector(ctx context.Context, cyl, head, sector, attempt int) (RawSector, error)
}

// MemorySource serves pre-recorded revolutions from memory. Tests and
// synthetic scenarios use it to feed the pipeline deterministic flux.
type MemorySource struct {
	Cylinders int
	Heads     int
	TickNS    float64

	// Revs maps track key to its recorded revolutions, in capture order.
	// Requests past the recorded count replay the last revolution, the way
	// a drive keeps spinning over the same media.
	Revs map[TrackKey][]Revolution
}

// TrackKey addresses one physical track.
type TrackKey struct {
	Cyl  int
	Head int
}

// NewMemorySource builds an empty in-memory source with the given geometry.
func NewMemorySource(cylinders, heads int, tickNS float64) *MemorySource {
	return &MemorySource{
		Cylinders: cylinders,
		Heads:     heads,
		TickNS:    tickNS,
		Revs:      make(map[TrackKey][]Revolution),
	}
}

// AddRevolution appends a recorded revolution for a track.
func (m *MemorySource) AddRevolution(cyl, head int, flux []int32) {
	key := TrackKey{Cyl: cyl, Head: head}
	m.Revs[key] = append(m.Revs[key], Revolution{Flux: flux, TickNS: m.TickNS})
}

// Geometry implements Source.
func (m *MemorySource) Geometry() (int, int) { return m.Cylinders, m.Heads }

// ReadRevolution implements Source.
func (m *MemorySource) ReadRevolution(ctx context.Context, cyl, head, rev int) (Revolution, error) {
	if err := ctx.Err(); err != nil {
		return Revolution{}, err
	}
	if cyl < 0 || cyl >= m.Cylinders || head < 0 || head >= m.Heads || rev < 0 {
		return Revolution{}, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "read revolution",
			fmt.Sprintf("address out of range: cyl %d head %d rev %d", cyl, head, rev), nil)
	}
	revs := m.Revs[TrackKey{Cyl: cyl, Head: head}]
	if len(revs) == 0 {
		return Revolution{}, errkind.Wrap(errkind.ErrHardwareRead, "capture", "read revolution",
			fmt.Sprintf("no flux recorded for cyl %d head %d", cyl, head), nil)
	}
	if rev >= len(revs) {
		rev = len(revs) - 1
	}
	return revs[rev], nil
}

// MemorySectorSource serves framed sectors from memory, optionally varying
// bytes per attempt to model marginal media.
type MemorySectorSource struct {
	Cylinders int
	Heads     int
	Sectors   int
	Size      int

	// Attempts maps sector key to successive read results. Requests past
	// the recorded attempts replay the last one. A missing key reports a
	// hardware read failure.
	Attempts map[SectorKey][]RawSector
}

// SectorKey addresses one sector.
type SectorKey struct {
	Cyl, Head, Sector int
}

// NewMemorySectorSource builds an empty in-memory sector source.
func NewMemorySectorSource(cylinders, heads, sectors, size int) *MemorySectorSource {
	return &MemorySectorSource{
		Cylinders: cylinders,
		Heads:     heads,
		Sectors:   sectors,
		Size:      size,
		Attempts:  make(map[SectorKey][]RawSector),
	}
}

// AddAttempt appends one read result for a sector.
func (m *MemorySectorSource) AddAttempt(cyl, head, sector int, s RawSector) {
	key := SectorKey{Cyl: cyl, Head: head, Sector: sector}
	m.Attempts[key] = append(m.Attempts[key], s)
}

// Geometry implements SectorSource.
func (m *MemorySectorSource) Geometry() (int, int) { return m.Cylinders, m.Heads }

// SectorsPerTrack implements SectorSource.
func (m *MemorySectorSource) SectorsPerTrack() int { return m.Sectors }

// SectorSize implements SectorSource.
func (m *MemorySectorSource) SectorSize() int { return m.Size }

// ReadSector implements SectorSource.
func (m *MemorySectorSource) ReadSector(ctx context.Context, cyl, head, sector, attempt int) (RawSector, error) {
	if err := ctx.Err(); err != nil {
		return RawSector{}, err
	}
	if cyl < 0 || cyl >= m.Cylinders || head < 0 || head >= m.Heads ||
		sector < 0 || sector >= m.Sectors || attempt < 0 {
		return RawSector{}, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "read sector",
			fmt.Sprintf("address out of range: cyl %d head %d sector %d", cyl, head, sector), nil)
	}
	attempts := m.Attempts[SectorKey{Cyl: cyl, Head: head, Sector: sector}]
	if len(attempts) == 0 {
		return RawSector{}, errkind.Wrap(errkind.ErrHardwareRead, "capture", "read sector",
			fmt.Sprintf("no data recorded for cyl %d head %d sector %d", cyl, head, sector), nil)
	}
	if attempt >= len(attempts) {
		attempt = len(attempts) - 1
	}
	out := attempts[attempt]
	data := make([]byte, len(out.Data))
	copy(data, out.Data)
	out.Data = data
	return out, nil
}
