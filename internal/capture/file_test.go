package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fluxrescue/internal/errkind"
	"fluxrescue/internal/sectorfix"
)

func writeFluxFile(t *testing.T, path string, revs ...[]int32) {
	t.Helper()
	var buf []byte
	for _, rev := range revs {
		for _, delta := range rev {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(delta))
		}
		buf = binary.LittleEndian.AppendUint32(buf, 0)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write flux file: %v", err)
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")

	// One cylinder, one head, two 4-byte sectors.
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	src, err := LoadImage(path, 1, 1, 2, 4)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	ctx := context.Background()
	sec, err := src.ReadSector(ctx, 0, 0, 1, 0)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	want := []byte{5, 6, 7, 8}
	for i, b := range want {
		if sec.Data[i] != b {
			t.Fatalf("sector 1 data = %v, want %v", sec.Data, want)
		}
	}
	if sec.StoredCRC != sectorfix.CRC16(want) {
		t.Errorf("stored CRC = %#04x, want %#04x", sec.StoredCRC, sectorfix.CRC16(want))
	}
	if sec.Confidence != 100 {
		t.Errorf("confidence = %d, want 100", sec.Confidence)
	}
}

func TestLoadImageTruncatedLeavesSectorsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.img")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	src, err := LoadImage(path, 1, 1, 2, 4)
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if _, err := src.ReadSector(context.Background(), 0, 0, 1, 0); !errors.Is(err, errkind.ErrHardwareRead) {
		t.Errorf("truncated sector error = %v, want ErrHardwareRead", err)
	}
}

func TestLoadImageRejectsRaggedLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragged.img")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if _, err := LoadImage(path, 1, 1, 1, 4); !errors.Is(err, errkind.ErrInvalidParameter) {
		t.Errorf("ragged image error = %v, want ErrInvalidParameter", err)
	}
}

func TestLoadFluxFileSplitsRevolutions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track00.0.raw")
	writeFluxFile(t, path, []int32{200, 300, 200}, []int32{200, 400})

	revs, err := LoadFluxFile(path)
	if err != nil {
		t.Fatalf("LoadFluxFile: %v", err)
	}
	if len(revs) != 2 {
		t.Fatalf("revolutions = %d, want 2", len(revs))
	}
	if len(revs[0]) != 3 || revs[0][1] != 300 {
		t.Errorf("rev 0 = %v", revs[0])
	}
	if len(revs[1]) != 2 || revs[1][1] != 400 {
		t.Errorf("rev 1 = %v", revs[1])
	}
}

func TestLoadFluxDir(t *testing.T) {
	dir := t.TempDir()
	writeFluxFile(t, filepath.Join(dir, "track00.0.raw"), []int32{200, 300})
	writeFluxFile(t, filepath.Join(dir, "track01.1.raw"), []int32{400, 200})
	writeFluxFile(t, filepath.Join(dir, "notes.txt.raw.bak"), []int32{1})

	src, err := LoadFluxDir(dir, 25)
	if err != nil {
		t.Fatalf("LoadFluxDir: %v", err)
	}
	cyls, heads := src.Geometry()
	if cyls != 2 || heads != 2 {
		t.Fatalf("geometry = %dx%d, want 2x2", cyls, heads)
	}
	rev, err := src.ReadRevolution(context.Background(), 1, 1, 0)
	if err != nil {
		t.Fatalf("ReadRevolution: %v", err)
	}
	if rev.Flux[0] != 400 || rev.TickNS != 25 {
		t.Errorf("rev = %+v", rev)
	}
}

func TestLoadFluxDirEmpty(t *testing.T) {
	if _, err := LoadFluxDir(t.TempDir(), 25); !errors.Is(err, errkind.ErrHardwareRead) {
		t.Errorf("empty dir error = %v, want ErrHardwareRead", err)
	}
}
