package recovery

import (
	"context"

	"fluxrescue/internal/logging"
	"fluxrescue/internal/sectorfix"
)

// verifyStage recomputes every checksum and rebuilds the session counters
// from scratch, so running it again on an already-verified session produces
// identical statistics. It also grades each track.
type verifyStage struct {
	p *Pipeline
}

func (s *verifyStage) Prepare(ctx context.Context, session *Session) error { return nil }

func (s *verifyStage) Execute(ctx context.Context, session *Session) error {
	session.ResetCounts()
	for _, track := range session.Tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats := newStats()
		for _, sec := range track.Sectors {
			if len(sec.Data) == sec.Size() {
				sec.CalcCRC = sectorfix.CRC16(sec.Data)
			}
			stats.TotalSectors++
			stats.WeakBitsSeen += len(sec.WeakBits)
			switch {
			case sec.Status == SectorGood:
				stats.GoodSectors++
			case sec.Status == SectorRepaired:
				stats.RepairedSectors++
			default:
				stats.FailedSectors++
			}
			if sec.Method != MethodNone {
				stats.Methods[sec.Method]++
			}
		}
		track.Quality = gradeTrack(track)
		session.MergeStats(stats)
		s.p.logger.Debug("track verified",
			logging.Int(logging.FieldTrack, track.Cyl),
			logging.Int(logging.FieldHead, track.Head),
			logging.String("quality", track.Quality))
	}
	return nil
}

// gradeTrack assigns a letter grade from the recovered fraction.
func gradeTrack(track *Track) string {
	if len(track.Sectors) == 0 {
		return "F"
	}
	good := 0
	recovered := 0
	for _, sec := range track.Sectors {
		if sec.Status == SectorGood {
			good++
		}
		if sec.Status.Recovered() {
			recovered++
		}
	}
	frac := float64(recovered) / float64(len(track.Sectors))
	switch {
	case good == len(track.Sectors):
		return "A"
	case frac >= 0.9:
		return "B"
	case frac >= 0.7:
		return "C"
	case frac >= 0.5:
		return "D"
	default:
		return "F"
	}
}
