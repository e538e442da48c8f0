package capture

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"fluxrescue/internal/errkind"
	"fluxrescue/internal/sectorfix"
)

// LoadImage reads a raw sector image laid out cylinder-major (cylinder, head,
// sector) and returns a sector source over it. Images shorter than the full
// geometry are accepted; the absent sectors surface as missing. Raw images
// carry no record checksums, so each sector's stored CRC is computed from its
// bytes.
func LoadImage(path string, cylinders, heads, sectors, size int) (*MemorySectorSource, error) {
	if cylinders <= 0 || heads <= 0 || sectors <= 0 || size <= 0 {
		return nil, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "load image",
			fmt.Sprintf("geometry %dx%dx%dx%d is not positive", cylinders, heads, sectors, size), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.ErrHardwareRead, "capture", "load image", path, err)
	}
	if len(data)%size != 0 {
		return nil, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "load image",
			fmt.Sprintf("%s: length %d is not a multiple of sector size %d", path, len(data), size), nil)
	}

	src := NewMemorySectorSource(cylinders, heads, sectors, size)
	offset := 0
	for cyl := 0; cyl < cylinders && offset < len(data); cyl++ {
		for head := 0; head < heads && offset < len(data); head++ {
			for sector := 0; sector < sectors && offset < len(data); sector++ {
				sec := make([]byte, size)
				copy(sec, data[offset:offset+size])
				src.AddAttempt(cyl, head, sector, RawSector{
					Data:       sec,
					StoredCRC:  sectorfix.CRC16(sec),
					Confidence: 100,
				})
				offset += size
			}
		}
	}
	return src, nil
}

// LoadFluxFile reads one track's flux dump: little-endian uint32 tick deltas,
// with a zero delta separating revolutions. A zero delta cannot occur in a
// real capture because two transitions never land on the same tick.
func LoadFluxFile(path string) ([][]int32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errkind.Wrap(errkind.ErrHardwareRead, "capture", "load flux", path, err)
	}
	if len(data)%4 != 0 {
		return nil, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "load flux",
			fmt.Sprintf("%s: length %d is not a multiple of 4", path, len(data)), nil)
	}

	var revs [][]int32
	var cur []int32
	for i := 0; i+4 <= len(data); i += 4 {
		delta := binary.LittleEndian.Uint32(data[i:])
		if delta == 0 {
			if len(cur) > 0 {
				revs = append(revs, cur)
				cur = nil
			}
			continue
		}
		if delta > 1<<30 {
			return nil, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "load flux",
				fmt.Sprintf("%s: delta %d at offset %d out of range", path, delta, i), nil)
		}
		cur = append(cur, int32(delta))
	}
	if len(cur) > 0 {
		revs = append(revs, cur)
	}
	if len(revs) == 0 {
		return nil, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "load flux",
			fmt.Sprintf("%s: no flux transitions", path), nil)
	}
	return revs, nil
}

// LoadFluxDir scans dir for per-track dumps named trackCC.H.raw and returns a
// flux source spanning them. tickNS is the capture clock period.
func LoadFluxDir(dir string, tickNS float64) (*MemorySource, error) {
	if tickNS <= 0 {
		return nil, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "load flux dir",
			fmt.Sprintf("tick %.3f ns is not positive", tickNS), nil)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "track*.raw"))
	if err != nil {
		return nil, errkind.Wrap(errkind.ErrInvalidParameter, "capture", "load flux dir", dir, err)
	}

	type trackFile struct {
		cyl, head int
		path      string
	}
	var tracks []trackFile
	maxCyl, maxHead := -1, -1
	for _, path := range paths {
		var cyl, head int
		if n, err := fmt.Sscanf(filepath.Base(path), "track%d.%d.raw", &cyl, &head); err != nil || n != 2 {
			continue
		}
		tracks = append(tracks, trackFile{cyl: cyl, head: head, path: path})
		if cyl > maxCyl {
			maxCyl = cyl
		}
		if head > maxHead {
			maxHead = head
		}
	}
	if len(tracks) == 0 {
		return nil, errkind.Wrap(errkind.ErrHardwareRead, "capture", "load flux dir",
			fmt.Sprintf("%s: no track dumps found", dir), nil)
	}

	src := NewMemorySource(maxCyl+1, maxHead+1, tickNS)
	for _, tf := range tracks {
		revs, err := LoadFluxFile(tf.path)
		if err != nil {
			return nil, err
		}
		for _, rev := range revs {
			src.AddRevolution(tf.cyl, tf.head, rev)
		}
	}
	return src, nil
}
