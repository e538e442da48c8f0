package recovery

import (
	"context"

	"fluxrescue/internal/logging"
	"fluxrescue/internal/sectorfix"
)

// validateStage recomputes checksums and classifies every sector's damage.
type validateStage struct {
	p *Pipeline
}

func (s *validateStage) Prepare(ctx context.Context, session *Session) error { return nil }

func (s *validateStage) Execute(ctx context.Context, session *Session) error {
	for _, track := range session.Tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, sec := range track.Sectors {
			s.classify(sec)
			if err := sec.Kind.Err(); err != nil && !sec.Status.Recovered() {
				s.p.logger.Debug("sector failed validation",
					logging.Int(logging.FieldTrack, sec.Cyl),
					logging.Int(logging.FieldHead, sec.Head),
					logging.Int(logging.FieldSector, sec.Number),
					logging.Error(err))
			}
			s.p.callbacks.sector(sec)
		}
		s.p.logger.Debug("track validated",
			logging.Int(logging.FieldTrack, track.Cyl),
			logging.Int(logging.FieldHead, track.Head),
			logging.Int("sectors_ok", track.SectorsOK()),
			logging.Int("sectors", len(track.Sectors)))
	}
	return nil
}

func (s *validateStage) classify(sec *Sector) {
	switch {
	case sec.Status == SectorMissing:
		// Kind already set by Read.
	case len(sec.Data) == 0:
		sec.Promote(SectorMissing)
		sec.Kind = KindMissing
	case len(sec.Data) != sec.Size():
		sec.Promote(SectorBad)
		sec.Kind = KindFormat
	default:
		sec.CalcCRC = sectorfix.CRC16(sec.Data)
		if sec.CalcCRC == sec.StoredCRC {
			if sec.Kind == KindHeader {
				// Data validated but the header record did not.
				sec.Promote(SectorBad)
				return
			}
			sec.Kind = KindNone
			sec.Promote(SectorGood)
			return
		}
		sec.Promote(SectorBad)
		if sec.Kind == KindHeader {
			return
		}
		if len(sec.WeakBits) > 0 {
			sec.Kind = KindWeak
		} else {
			sec.Kind = KindCRC
		}
	}
}
