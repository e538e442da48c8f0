package recovery

import (
	"context"
	"errors"
	"sync"

	"fluxrescue/internal/bitstream"
	"fluxrescue/internal/capture"
	"fluxrescue/internal/decode"
	"fluxrescue/internal/errkind"
	"fluxrescue/internal/fusion"
	"fluxrescue/internal/logging"
	"fluxrescue/internal/sectorfix"
)

// readStage acquires captures for every track, fuses repeated reads, and
// populates the session's track list. Tracks decode in parallel on a bounded
// worker pool; results merge on the stage goroutine so the session sees a
// single writer.
type readStage struct {
	p *Pipeline
}

func (s *readStage) Prepare(ctx context.Context, session *Session) error {
	if session.Cylinders <= 0 || session.Heads <= 0 {
		return errkind.Wrap(errkind.ErrInvalidParameter, "read", "prepare", "source reported empty geometry", nil)
	}
	return nil
}

func (s *readStage) Execute(ctx context.Context, session *Session) error {
	type job struct{ cyl, head int }
	type result struct {
		track *Track
		stats Stats
		err   error
	}

	jobs := make(chan job)
	results := make(chan result)

	var wg sync.WaitGroup
	for w := 0; w < s.p.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				track, stats, err := s.readTrack(ctx, session, j.cyl, j.head)
				results <- result{track: track, stats: stats, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for cyl := 0; cyl < session.Cylinders; cyl++ {
			for head := 0; head < session.Heads; head++ {
				select {
				case jobs <- job{cyl: cyl, head: head}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		session.Tracks = append(session.Tracks, res.track)
		session.MergeStats(res.stats)
		for _, sec := range res.track.Sectors {
			s.p.callbacks.sector(sec)
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (s *readStage) readTrack(ctx context.Context, session *Session, cyl, head int) (*Track, Stats, error) {
	if s.p.sectors != nil {
		return s.readSectorTrack(ctx, session, cyl, head)
	}
	return s.readFluxTrack(ctx, cyl, head)
}

// readSectorTrack re-reads every sector up to the revolution budget and
// fuses the attempts bit-wise, so marginal media shows up as weak bits just
// as it would from flux.
func (s *readStage) readSectorTrack(ctx context.Context, session *Session, cyl, head int) (*Track, Stats, error) {
	track := &Track{Cyl: cyl, Head: head, Encoding: "mfm"}
	stats := newStats()
	logger := s.p.logger.With(logging.Int(logging.FieldTrack, cyl), logging.Int(logging.FieldHead, head))

	for num := 0; num < s.p.sectors.SectorsPerTrack(); num++ {
		sector := &Sector{
			Cyl:       cyl,
			Head:      head,
			Number:    num,
			SizeCode:  sizeCodeFor(session.SectorSize),
			BitOffset: -1,
		}
		attempts, readErr := s.collectAttempts(ctx, cyl, head, num)
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		stats.TotalSectors++
		if len(attempts) == 0 {
			sector.Status = SectorMissing
			if errors.Is(readErr, errkind.ErrHardwareRead) {
				sector.Kind = KindHardware
			} else {
				sector.Kind = KindMissing
			}
			logger.Warn("sector unreadable",
				logging.Int(logging.FieldSector, num), logging.Error(readErr))
			track.Sectors = append(track.Sectors, sector)
			continue
		}

		streams := make([]*bitstream.Stream, len(attempts))
		for i, a := range attempts {
			streams[i] = bitstream.FromBytes(a.Data)
		}
		fused := fusion.AnalyzeRevolutions(streams, 0)
		sector.Data = fused.Bytes()
		sector.StoredCRC = attempts[0].StoredCRC
		sector.CalcCRC = sectorfix.CRC16(sector.Data)
		sector.WeakBits = fusion.WeakPositions(fused)
		sector.Confidence = int(fused.AverageConfidence() * 100)
		stats.WeakBitsSeen += len(sector.WeakBits)
		track.Sectors = append(track.Sectors, sector)
	}
	track.Revolutions = s.p.cfg.Recovery.MaxRevolutions
	return track, stats, nil
}

// collectAttempts gathers up to MaxRevolutions reads of one sector, spending
// at most MaxRetries extra reads on transient failures. The bound is the
// only timeout mechanism besides ctx.
func (s *readStage) collectAttempts(ctx context.Context, cyl, head, num int) ([]capture.RawSector, error) {
	var attempts []capture.RawSector
	var lastErr error
	retries := 0
	for attempt := 0; len(attempts) < s.p.cfg.Recovery.MaxRevolutions; attempt++ {
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}
		raw, err := s.p.sectors.ReadSector(ctx, cyl, head, num, attempt)
		if err != nil {
			lastErr = err
			retries++
			if retries > s.p.cfg.Recovery.MaxRetries {
				break
			}
			continue
		}
		attempts = append(attempts, raw)
	}
	return attempts, lastErr
}

// readFluxTrack captures revolutions, decodes each to a bitstream, fuses
// them, and frames sectors out of the consensus stream.
func (s *readStage) readFluxTrack(ctx context.Context, cyl, head int) (*Track, Stats, error) {
	track := &Track{Cyl: cyl, Head: head, Encoding: "mfm"}
	stats := newStats()
	logger := s.p.logger.With(logging.Int(logging.FieldTrack, cyl), logging.Int(logging.FieldHead, head))

	var streams []*bitstream.Stream
	var tickNS, revTicks float64
	retries := 0
	for rev := 0; len(streams) < s.p.cfg.Recovery.MaxRevolutions; rev++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		capd, err := s.p.flux.ReadRevolution(ctx, cyl, head, rev)
		if err != nil {
			retries++
			if retries > s.p.cfg.Recovery.MaxRetries {
				logger.Warn("track capture exhausted retries", logging.Error(err))
				break
			}
			continue
		}
		stream, err := s.decodeRevolution(capd.Flux)
		if err != nil {
			// Decode failures consume retry budget; sources may replay
			// the same flux on every read.
			logger.Debug("revolution decode failed", logging.Error(err))
			retries++
			if retries > s.p.cfg.Recovery.MaxRetries {
				logger.Warn("track decode exhausted retries", logging.Error(err))
				break
			}
			continue
		}
		tickNS = capd.TickNS
		revTicks = 0
		for _, d := range capd.Flux {
			revTicks += float64(d)
		}
		streams = append(streams, stream)
	}
	track.Revolutions = len(streams)
	if len(streams) == 0 {
		return track, stats, nil
	}

	track.Stream = fusion.AnalyzeRevolutions(streams, 0)
	sectors, framed := frameIBMTrack(track.Stream, s.p.cfg.Decode.SyncScan)
	if !framed {
		logger.Warn("no sync marks found in track stream")
	}
	for _, sec := range sectors {
		sec.Cyl = cyl
		sec.Head = head
		stats.TotalSectors++
		stats.WeakBitsSeen += len(sec.WeakBits)
		track.Sectors = append(track.Sectors, sec)
	}
	if tickNS > 0 && revTicks > 0 {
		durationNS := revTicks * tickNS
		track.RPM = 60e9 / durationNS
		track.BitrateBPS = int(float64(streams[len(streams)-1].BitCount) * 1e9 / durationNS)
	}
	return track, stats, nil
}

// decodeRevolution estimates the bit cell from the 2T/3T/4T MFM bands and
// runs the self-clocking decode.
func (s *readStage) decodeRevolution(flux []int32) (*bitstream.Stream, error) {
	cell, err := decode.EstimateCell(flux, 3, 2)
	if err != nil {
		return nil, err
	}
	return s.p.decoder.FluxToBits(flux, cell), nil
}

func sizeCodeFor(size int) int {
	code := 0
	for s := 128; s < size && code < 7; s <<= 1 {
		code++
	}
	return code
}
