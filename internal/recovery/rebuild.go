package recovery

import (
	"context"

	"fluxrescue/internal/logging"
	"fluxrescue/internal/sectorfix"
)

// rebuildStage is the optional best-effort pass for sectors still missing
// after Repair. A rebuilt sector gets plausible bytes so the output image is
// complete, but its status only rises when the bytes actually satisfy the
// stored checksum; otherwise it stays failed and appears in the report.
type rebuildStage struct {
	p *Pipeline
}

func (s *rebuildStage) Prepare(ctx context.Context, session *Session) error { return nil }

func (s *rebuildStage) Execute(ctx context.Context, session *Session) error {
	for _, track := range session.Tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, sec := range track.Sectors {
			if sec.Status.Recovered() {
				continue
			}
			s.rebuild(track, sec)
			s.p.callbacks.sector(sec)
		}
	}
	return nil
}

func (s *rebuildStage) rebuild(track *Track, sec *Sector) {
	data := s.synthesize(track, sec)
	sec.Data = data
	sec.CalcCRC = sectorfix.CRC16(data)
	sec.Method = MethodRebuild
	sec.Corrections = 0
	if sec.CalcCRC == sec.StoredCRC && len(data) == sec.Size() {
		sec.Confidence = 70
		sec.Promote(SectorRepaired)
	} else {
		sec.Confidence = 0
	}
	s.p.logger.Info("sector rebuilt",
		logging.Int(logging.FieldTrack, sec.Cyl),
		logging.Int(logging.FieldHead, sec.Head),
		logging.Int(logging.FieldSector, sec.Number),
		logging.Bool("checksum_match", sec.Status.Recovered()))
}

// synthesize picks replacement bytes: the boot-block signature for the first
// sector of the disk, the track fill pattern when one exists, the configured
// fill byte otherwise.
func (s *rebuildStage) synthesize(track *Track, sec *Sector) []byte {
	data := make([]byte, sec.Size())
	fill := byte(s.p.cfg.Recovery.FillByte)
	if f, ok := trackFillPattern(track); ok {
		fill = f
	}
	for i := range data {
		data[i] = fill
	}
	if sec.Cyl == 0 && sec.Head == 0 && sec.Number == 0 && len(data) >= 512 {
		// A DOS boot sector starts with a jump and ends with the 55 AA
		// signature. Enough for format detectors to keep working.
		data[0] = 0xEB
		data[1] = 0x3C
		data[2] = 0x90
		data[510] = 0x55
		data[511] = 0xAA
	}
	return data
}
