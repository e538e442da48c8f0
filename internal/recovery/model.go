// Package recovery drives the five-stage pipeline that turns raw captures
// into a recovered disk image: Read acquires and fuses revolutions, Validate
// classifies damage, Repair works through the fix methods in priority order,
// Rebuild fills what Repair could not, and Verify recomputes checksums and
// grades. The RecoverySession is the only shared mutable state; the pipeline
// owns it for the lifetime of a run.
package recovery

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"fluxrescue/internal/bitstream"
	"fluxrescue/internal/errkind"
)

// SectorStatus orders sector outcomes from worst to best. Transitions only
// move upward; a sector marked recovered never regresses.
type SectorStatus int

const (
	SectorUnknown SectorStatus = iota
	SectorMissing
	SectorBad
	SectorRepaired
	SectorGood
)

func (s SectorStatus) String() string {
	switch s {
	case SectorMissing:
		return "missing"
	case SectorBad:
		return "bad"
	case SectorRepaired:
		return "repaired"
	case SectorGood:
		return "good"
	default:
		return "unknown"
	}
}

// Recovered reports whether the sector holds usable data.
func (s SectorStatus) Recovered() bool { return s >= SectorRepaired }

// ErrorKind classifies why a sector failed validation.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindCRC
	KindMissing
	KindWeak
	KindHeader
	KindSync
	KindFormat
	KindHardware
)

func (k ErrorKind) String() string {
	switch k {
	case KindCRC:
		return "crc"
	case KindMissing:
		return "missing"
	case KindWeak:
		return "weak"
	case KindHeader:
		return "header"
	case KindSync:
		return "sync"
	case KindFormat:
		return "format"
	case KindHardware:
		return "hardware"
	default:
		return "none"
	}
}

// Err maps the kind to its sentinel from the shared error taxonomy, nil for
// KindNone.
func (k ErrorKind) Err() error {
	switch k {
	case KindCRC, KindWeak:
		return errkind.ErrDataChecksum
	case KindHeader:
		return errkind.ErrHeaderChecksum
	case KindSync:
		return errkind.ErrSyncNotFound
	case KindMissing, KindHardware:
		return errkind.ErrHardwareRead
	case KindFormat:
		return errkind.ErrFormatMismatch
	default:
		return nil
	}
}

// RepairMethod identifies which fix produced a sector's bytes. The zero
// value means the sector validated without repair.
type RepairMethod int

const (
	MethodNone RepairMethod = iota
	MethodCRCSingleBit
	MethodCRCDoubleBit
	MethodWeakBits
	MethodInterpolation
	MethodPattern
	MethodRebuild
)

func (m RepairMethod) String() string {
	switch m {
	case MethodCRCSingleBit:
		return "crc_single_bit"
	case MethodCRCDoubleBit:
		return "crc_double_bit"
	case MethodWeakBits:
		return "weak_bits"
	case MethodInterpolation:
		return "interpolation"
	case MethodPattern:
		return "pattern"
	case MethodRebuild:
		return "rebuild"
	default:
		return "none"
	}
}

// Sector is one addressable sector and everything the pipeline learned
// about it.
type Sector struct {
	Cyl      int
	Head     int
	Number   int
	SizeCode int // sector length is 128 << SizeCode

	Data      []byte
	StoredCRC uint16
	CalcCRC   uint16

	Status      SectorStatus
	Kind        ErrorKind
	Method      RepairMethod
	Confidence  int // 0..100
	Corrections int
	BitOffset   int // first data bit in the track stream, -1 when unframed

	// WeakBits lists bit positions (MSB-first over Data) that disagreed
	// across revolutions. Consumed by the weak-bit repair.
	WeakBits []int
}

// Size returns the byte length implied by the size code.
func (s *Sector) Size() int { return 128 << uint(s.SizeCode) }

// Promote raises the sector status, never lowering it.
func (s *Sector) Promote(to SectorStatus) {
	if to > s.Status {
		s.Status = to
	}
}

// Valid reports a full-length buffer matching its stored checksum.
func (s *Sector) Valid() bool {
	return len(s.Data) == s.Size() && s.CalcCRC == s.StoredCRC
}

// Track is one cylinder/head with its decoded stream and sectors.
type Track struct {
	Cyl      int
	Head     int
	Encoding string // "mfm", "fm", "gcr", "amiga"

	Stream  *bitstream.Stream
	Sectors []*Sector

	Revolutions int
	BitrateBPS  int
	RPM         float64
	Quality     string // letter grade assigned by Verify
}

// SectorsOK counts sectors with usable data.
func (t *Track) SectorsOK() int {
	n := 0
	for _, s := range t.Sectors {
		if s.Status.Recovered() {
			n++
		}
	}
	return n
}

// Stats accumulates pipeline-wide counters. Workers merge their per-track
// tallies through Session.MergeStats; nothing else writes concurrently.
type Stats struct {
	TotalSectors    int
	GoodSectors     int
	RepairedSectors int
	FailedSectors   int
	WeakBitsSeen    int

	Methods map[RepairMethod]int

	StageDurations map[Stage]time.Duration
	Elapsed        time.Duration
}

func newStats() Stats {
	return Stats{
		Methods:        make(map[RepairMethod]int),
		StageDurations: make(map[Stage]time.Duration),
	}
}

func (s *Stats) add(other Stats) {
	s.TotalSectors += other.TotalSectors
	s.GoodSectors += other.GoodSectors
	s.RepairedSectors += other.RepairedSectors
	s.FailedSectors += other.FailedSectors
	s.WeakBitsSeen += other.WeakBitsSeen
	for m, n := range other.Methods {
		s.Methods[m] += n
	}
}

// Session owns every track of one recovery run.
type Session struct {
	ID      string
	Started time.Time

	Cylinders  int
	Heads      int
	SectorSize int

	Stage  Stage
	Tracks []*Track

	mu    sync.Mutex
	stats Stats
}

// NewSession allocates a session for the given geometry.
func NewSession(cylinders, heads, sectorSize int) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Started:    time.Now().UTC(),
		Cylinders:  cylinders,
		Heads:      heads,
		SectorSize: sectorSize,
		stats:      newStats(),
	}
}

// Track returns the track for cyl/head, or nil.
func (s *Session) Track(cyl, head int) *Track {
	for _, t := range s.Tracks {
		if t.Cyl == cyl && t.Head == head {
			return t
		}
	}
	return nil
}

// MergeStats folds a worker's tally into the session under the lock.
func (s *Session) MergeStats(delta Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.add(delta)
}

// ResetCounts zeroes the sector counters before a recount. Verify uses it so
// repeated verification stays idempotent.
func (s *Session) ResetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := s.stats.Elapsed
	durations := s.stats.StageDurations
	s.stats = newStats()
	s.stats.Elapsed = elapsed
	s.stats.StageDurations = durations
}

// Stats returns a copy of the accumulated counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Methods = make(map[RepairMethod]int, len(s.stats.Methods))
	for m, n := range s.stats.Methods {
		out.Methods[m] = n
	}
	out.StageDurations = make(map[Stage]time.Duration, len(s.stats.StageDurations))
	for st, d := range s.stats.StageDurations {
		out.StageDurations[st] = d
	}
	return out
}

func (s *Session) recordStageDuration(st Stage, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.StageDurations[st] = d
	var total time.Duration
	for _, v := range s.stats.StageDurations {
		total += v
	}
	s.stats.Elapsed = total
}

// Unrecovered lists sectors that remain unusable, for the failure report.
func (s *Session) Unrecovered() []*Sector {
	var out []*Sector
	for _, t := range s.Tracks {
		for _, sec := range t.Sectors {
			if !sec.Status.Recovered() {
				out = append(out, sec)
			}
		}
	}
	return out
}
