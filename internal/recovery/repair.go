package recovery

import (
	"context"

	"fluxrescue/internal/logging"
	"fluxrescue/internal/sectorfix"
)

// repairStage works through the fix methods in fixed priority order for each
// damaged sector: CRC bit flips first, then the weak-bit search, then
// neighbor interpolation, then pattern reconstruction. The first method that
// yields a CRC-valid buffer or clears the confidence floor wins; later
// methods are not attempted.
type repairStage struct {
	p *Pipeline
}

func (s *repairStage) Prepare(ctx context.Context, session *Session) error { return nil }

func (s *repairStage) Execute(ctx context.Context, session *Session) error {
	minConfidence := int(s.p.cfg.Recovery.MinConfidence * 100)
	for _, track := range session.Tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, sec := range track.Sectors {
			if sec.Status.Recovered() {
				continue
			}
			s.repairSector(track, i, sec, minConfidence)
			s.p.callbacks.sector(sec)
		}
	}
	return nil
}

func (s *repairStage) repairSector(track *Track, idx int, sec *Sector, minConfidence int) {
	logger := s.p.logger.With(
		logging.Int(logging.FieldTrack, sec.Cyl),
		logging.Int(logging.FieldHead, sec.Head),
		logging.Int(logging.FieldSector, sec.Number))

	if len(sec.Data) == sec.Size() {
		if bit, ok := sectorfix.FixCRCSingleBit(sec.Data, sec.StoredCRC); ok {
			s.accept(sec, MethodCRCSingleBit, 1, 90)
			logger.Info("sector repaired", logging.String("method", sec.Method.String()),
				logging.Int("bit", bit))
			return
		}
		if _, ok := sectorfix.FixCRCDoubleBit(sec.Data, sec.StoredCRC, s.p.cfg.Recovery.MaxDoubleBitScan); ok {
			s.accept(sec, MethodCRCDoubleBit, 2, 85)
			logger.Info("sector repaired", logging.String("method", sec.Method.String()))
			return
		}
		if len(sec.WeakBits) > 0 {
			flipped, ok, err := sectorfix.FixCRCWeakBits(sec.Data, sec.WeakBits, sec.StoredCRC, s.p.cfg.Recovery.WeakBitBudget)
			if err != nil {
				logger.Debug("weak-bit repair refused", logging.Error(err))
			} else if ok {
				s.accept(sec, MethodWeakBits, len(flipped), 80)
				logger.Info("sector repaired", logging.String("method", sec.Method.String()),
					logging.Int("bits", len(flipped)))
				return
			}
		}
	}

	prev, next := neighborData(track, idx, sec.Size())
	data, conf := sectorfix.InterpolateSector(prev, next, sec.Size(), byte(s.p.cfg.Recovery.FillByte))
	if s.acceptSynthesized(sec, data, conf, MethodInterpolation, minConfidence) {
		logger.Info("sector interpolated", logging.Int("confidence", sec.Confidence))
		return
	}

	if fill, ok := trackFillPattern(track); ok {
		data := make([]byte, sec.Size())
		for i := range data {
			data[i] = fill
		}
		if s.acceptSynthesized(sec, data, 40, MethodPattern, minConfidence) {
			logger.Info("sector reconstructed from track pattern",
				logging.Int("fill", int(fill)))
			return
		}
	}

	logger.Warn("sector unrepaired", logging.String("kind", sec.Kind.String()))
}

// accept records an in-place repair that restored the stored checksum.
func (s *repairStage) accept(sec *Sector, method RepairMethod, corrections, confidence int) {
	sec.Method = method
	sec.Corrections = corrections
	sec.CalcCRC = sec.StoredCRC
	if confidence > sec.Confidence {
		sec.Confidence = confidence
	}
	sec.Promote(SectorRepaired)
}

// acceptSynthesized installs replacement bytes when they either satisfy the
// stored checksum or clear the confidence floor.
func (s *repairStage) acceptSynthesized(sec *Sector, data []byte, conf int, method RepairMethod, minConfidence int) bool {
	crcValid := sectorfix.CRC16(data) == sec.StoredCRC
	if !crcValid && conf < minConfidence {
		return false
	}
	sec.Data = data
	sec.CalcCRC = sectorfix.CRC16(data)
	sec.Method = method
	sec.Confidence = conf
	if crcValid {
		sec.Confidence = 90
	}
	sec.Promote(SectorRepaired)
	return true
}

// neighborData returns the recovered data of the sectors either side of idx.
func neighborData(track *Track, idx, size int) (prev, next []byte) {
	if idx > 0 {
		if n := track.Sectors[idx-1]; n.Status.Recovered() {
			if len(n.Data) == size {
				prev = n.Data
			}
		}
	}
	if idx+1 < len(track.Sectors) {
		if n := track.Sectors[idx+1]; n.Status.Recovered() {
			if len(n.Data) == size {
				next = n.Data
			}
		}
	}
	return prev, next
}

// trackFillPattern reports the single byte value filling every good sector
// of the track, if there is one. Freshly formatted tracks look like this.
func trackFillPattern(track *Track) (byte, bool) {
	var fill byte
	seen := false
	for _, sec := range track.Sectors {
		if sec.Status != SectorGood || len(sec.Data) == 0 {
			continue
		}
		b := sec.Data[0]
		for _, v := range sec.Data {
			if v != b {
				return 0, false
			}
		}
		if seen && b != fill {
			return 0, false
		}
		fill, seen = b, true
	}
	return fill, seen
}
