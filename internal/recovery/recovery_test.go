package recovery

import (
	"bytes"
	"context"
	"testing"

	"fluxrescue/internal/capture"
	"fluxrescue/internal/config"
	"fluxrescue/internal/cpufeat"
	"fluxrescue/internal/logging"
	"fluxrescue/internal/sectorfix"
	"fluxrescue/internal/testsupport"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Recovery.MaxRevolutions = 3
	cfg.Recovery.Workers = 2
	return &cfg
}

func sectorBytes(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)*3 + seed
	}
	return data
}

func addGoodSector(src *capture.MemorySectorSource, cyl, head, num int, data []byte) {
	raw := capture.RawSector{Data: data, StoredCRC: sectorfix.CRC16(data), Confidence: 100}
	for i := 0; i < 3; i++ {
		src.AddAttempt(cyl, head, num, raw)
	}
}

func runPipeline(t *testing.T, cfg *config.Config, src *capture.MemorySectorSource) (*Session, error) {
	t.Helper()
	p, err := New(cfg, logging.NewNop(), WithSectorSource(src), WithFeatures(cpufeat.Features{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p.Run(context.Background())
}

func TestPromoteNeverRegresses(t *testing.T) {
	sec := &Sector{}
	sec.Promote(SectorRepaired)
	sec.Promote(SectorBad)
	if sec.Status != SectorRepaired {
		t.Fatalf("status regressed to %v", sec.Status)
	}
	sec.Promote(SectorGood)
	sec.Promote(SectorUnknown)
	if sec.Status != SectorGood {
		t.Fatalf("status regressed to %v", sec.Status)
	}
}

func TestPipelineCleanDisk(t *testing.T) {
	src := capture.NewMemorySectorSource(1, 1, 3, 128)
	for num := 0; num < 3; num++ {
		addGoodSector(src, 0, 0, num, sectorBytes(128, byte(num)))
	}

	session, err := runPipeline(t, testConfig(), src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if session.Stage != StageComplete {
		t.Fatalf("stage = %v, want complete", session.Stage)
	}
	stats := session.Stats()
	if stats.GoodSectors != 3 || stats.RepairedSectors != 0 || stats.FailedSectors != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if q := session.Tracks[0].Quality; q != "A" {
		t.Errorf("quality = %q, want A", q)
	}
}

func TestPipelineRepairsSingleBitFlip(t *testing.T) {
	src := capture.NewMemorySectorSource(1, 1, 2, 128)
	good := sectorBytes(128, 1)
	addGoodSector(src, 0, 0, 0, good)

	original := sectorBytes(128, 9)
	corrupt := append([]byte(nil), original...)
	testsupport.FlipBit(corrupt, 37)
	raw := capture.RawSector{Data: corrupt, StoredCRC: sectorfix.CRC16(original), Confidence: 100}
	for i := 0; i < 3; i++ {
		src.AddAttempt(0, 0, 1, raw)
	}

	session, err := runPipeline(t, testConfig(), src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sec := session.Track(0, 0).Sectors[1]
	if sec.Status != SectorRepaired {
		t.Fatalf("status = %v, want repaired", sec.Status)
	}
	if sec.Method != MethodCRCSingleBit {
		t.Errorf("method = %v, want crc_single_bit", sec.Method)
	}
	if !bytes.Equal(sec.Data, original) {
		t.Error("repair did not restore original bytes")
	}
	if got := session.Stats().Methods[MethodCRCSingleBit]; got != 1 {
		t.Errorf("method histogram = %d, want 1", got)
	}
}

func TestPipelineRepairsWeakBits(t *testing.T) {
	cfg := testConfig()
	// Disable the double-bit search so the weak-bit method has to carry it.
	cfg.Recovery.MaxDoubleBitScan = 0

	src := capture.NewMemorySectorSource(1, 1, 1, 128)
	original := sectorBytes(128, 4)
	want := sectorfix.CRC16(original)

	// Two of three reads lose the same two bits, so the fused majority is
	// wrong there but both positions are flagged weak.
	bad := append([]byte(nil), original...)
	testsupport.FlipBit(bad, 50)
	testsupport.FlipBit(bad, 700)
	src.AddAttempt(0, 0, 0, capture.RawSector{Data: bad, StoredCRC: want, Confidence: 90})
	src.AddAttempt(0, 0, 0, capture.RawSector{Data: bad, StoredCRC: want, Confidence: 90})
	src.AddAttempt(0, 0, 0, capture.RawSector{Data: original, StoredCRC: want, Confidence: 90})

	session, err := runPipeline(t, cfg, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sec := session.Track(0, 0).Sectors[0]
	if sec.Method != MethodWeakBits {
		t.Fatalf("method = %v, want weak_bits", sec.Method)
	}
	if !bytes.Equal(sec.Data, original) {
		t.Error("weak-bit repair did not restore original bytes")
	}
}

func TestPipelineMissingSectorPartialSuccess(t *testing.T) {
	src := capture.NewMemorySectorSource(1, 1, 2, 128)
	addGoodSector(src, 0, 0, 0, sectorBytes(128, 2))
	// Sector 1 has no recorded reads at all.

	session, err := runPipeline(t, testConfig(), src)
	if err != nil {
		t.Fatalf("partial success must complete: %v", err)
	}
	if session.Stage != StageComplete {
		t.Fatalf("stage = %v, want complete", session.Stage)
	}
	stats := session.Stats()
	if stats.GoodSectors != 1 || stats.FailedSectors != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	sec := session.Track(0, 0).Sectors[1]
	if sec.Status.Recovered() {
		t.Error("unreadable sector must stay failed")
	}
	if len(sec.Data) != 128 {
		t.Error("rebuild should still fill the image bytes")
	}
	unrec := session.Unrecovered()
	if len(unrec) != 1 || unrec[0].Number != 1 {
		t.Errorf("unrecovered = %+v", unrec)
	}
}

func TestPipelineStrictMode(t *testing.T) {
	cfg := testConfig()
	cfg.Recovery.StrictMode = true

	src := capture.NewMemorySectorSource(1, 1, 2, 128)
	addGoodSector(src, 0, 0, 0, sectorBytes(128, 2))

	session, err := runPipeline(t, cfg, src)
	if err == nil {
		t.Fatal("strict mode with an unrecoverable sector must fail")
	}
	if session.Stage != StageFailed {
		t.Fatalf("stage = %v, want failed", session.Stage)
	}
}

func TestVerifyIdempotent(t *testing.T) {
	src := capture.NewMemorySectorSource(1, 1, 3, 128)
	addGoodSector(src, 0, 0, 0, sectorBytes(128, 1))
	addGoodSector(src, 0, 0, 2, sectorBytes(128, 7))
	// Sector 1 stays unreadable so the counts are not all-good.

	cfg := testConfig()
	p, err := New(cfg, logging.NewNop(), WithSectorSource(src), WithFeatures(cpufeat.Features{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	session, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	first := session.Stats()

	v := &verifyStage{p: p}
	if err := v.Execute(context.Background(), session); err != nil {
		t.Fatalf("second verify: %v", err)
	}
	second := session.Stats()

	if first.TotalSectors != second.TotalSectors ||
		first.GoodSectors != second.GoodSectors ||
		first.RepairedSectors != second.RepairedSectors ||
		first.FailedSectors != second.FailedSectors ||
		first.WeakBitsSeen != second.WeakBitsSeen {
		t.Fatalf("verify not idempotent: %+v then %+v", first, second)
	}
	for m, n := range first.Methods {
		if second.Methods[m] != n {
			t.Fatalf("method histogram changed: %+v then %+v", first.Methods, second.Methods)
		}
	}
}

func TestCallbacksFireSynchronously(t *testing.T) {
	src := capture.NewMemorySectorSource(1, 1, 2, 128)
	addGoodSector(src, 0, 0, 0, sectorBytes(128, 1))
	addGoodSector(src, 0, 0, 1, sectorBytes(128, 2))

	var stages []Stage
	sectorCalls := 0
	cb := Callbacks{
		Progress: func(st Stage, _ *Session) { stages = append(stages, st) },
		Sector:   func(_ *Sector) { sectorCalls++ },
	}
	p, err := New(testConfig(), logging.NewNop(),
		WithSectorSource(src), WithFeatures(cpufeat.Features{}), WithCallbacks(cb))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantOrder := []Stage{StageRead, StageValidate, StageRepair, StageRebuild, StageVerify, StageComplete}
	if len(stages) != len(wantOrder) {
		t.Fatalf("progress stages = %v", stages)
	}
	for i, st := range wantOrder {
		if stages[i] != st {
			t.Fatalf("progress stages = %v, want %v", stages, wantOrder)
		}
	}
	// Read and Validate each report both sectors.
	if sectorCalls < 4 {
		t.Errorf("sector callbacks = %d, want at least 4", sectorCalls)
	}
}

func TestPipelineRequiresSource(t *testing.T) {
	if _, err := New(testConfig(), logging.NewNop()); err == nil {
		t.Fatal("pipeline without a source must refuse to build")
	}
}

func TestPipelineHonorsCancellation(t *testing.T) {
	src := capture.NewMemorySectorSource(2, 2, 9, 128)
	for cyl := 0; cyl < 2; cyl++ {
		for head := 0; head < 2; head++ {
			for num := 0; num < 9; num++ {
				addGoodSector(src, cyl, head, num, sectorBytes(128, byte(num)))
			}
		}
	}
	p, err := New(testConfig(), logging.NewNop(), WithSectorSource(src), WithFeatures(cpufeat.Features{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session, err := p.Run(ctx)
	if err == nil {
		t.Fatal("cancelled run must fail")
	}
	if session.Stage != StageFailed {
		t.Fatalf("stage = %v, want failed", session.Stage)
	}
}
