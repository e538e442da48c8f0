// Package report turns a finished recovery session into its two output
// forms: the disk_diagnostics JSON document consumed by downstream tooling,
// and a terminal summary table for humans.
package report

import (
	"bytes"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"sort"

	"fluxrescue/internal/recovery"
)

// Geometry describes the recovered disk layout.
type Geometry struct {
	Tracks          int `json:"tracks"`
	Sides           int `json:"sides"`
	SectorsPerTrack int `json:"sectors_per_track"`
	SectorSize      int `json:"sector_size"`
}

// Analysis summarizes recovery quality.
type Analysis struct {
	SectorsOK      int    `json:"sectors_ok"`
	SectorsBad     int    `json:"sectors_bad"`
	OverallQuality string `json:"overall_quality"`
}

// Checksums are computed over the assembled image bytes.
type Checksums struct {
	CRC32 string `json:"crc32"`
	MD5   string `json:"md5"`
}

// TrackEntry is one per-track diagnostics row.
type TrackEntry struct {
	Track        int     `json:"track"`
	Head         int     `json:"head"`
	Bitrate      int     `json:"bitrate"`
	Encoding     string  `json:"encoding"`
	SectorsFound int     `json:"sectors_found"`
	SectorsOK    int     `json:"sectors_ok"`
	SectorsBad   int     `json:"sectors_bad"`
	RPM          float64 `json:"rpm"`
	Quality      string  `json:"quality"`
}

// SectorEntry is one per-sector diagnostics row.
type SectorEntry struct {
	Track      int  `json:"track"`
	Head       int  `json:"head"`
	Sector     int  `json:"sector"`
	Size       int  `json:"size"`
	HeaderOK   bool `json:"header_ok"`
	DataOK     bool `json:"data_ok"`
	Confidence int  `json:"confidence"`
}

// DiskDiagnostics is the root diagnostics payload.
type DiskDiagnostics struct {
	Filename  string        `json:"filename"`
	Format    string        `json:"format"`
	Geometry  Geometry      `json:"geometry"`
	Analysis  Analysis      `json:"analysis"`
	Checksums Checksums     `json:"checksums"`
	Tracks    []TrackEntry  `json:"tracks"`
	Sectors   []SectorEntry `json:"sectors"`
}

// UnrecoveredEntry names one sector that stayed bad, with its failure
// reason. It feeds the terminal summary only, not the JSON document.
type UnrecoveredEntry struct {
	Track, Head, Sector int
	Reason              string
}

// Document is the JSON document envelope.
type Document struct {
	DiskDiagnostics DiskDiagnostics    `json:"disk_diagnostics"`
	Unrecovered     []UnrecoveredEntry `json:"-"`
}

// Build assembles the diagnostics document for a finished session.
func Build(session *recovery.Session, filename, format string) Document {
	image := Image(session)

	diag := DiskDiagnostics{
		Filename: filename,
		Format:   format,
		Geometry: Geometry{
			Tracks:          session.Cylinders,
			Sides:           session.Heads,
			SectorsPerTrack: sectorsPerTrack(session),
			SectorSize:      session.SectorSize,
		},
		Checksums: Checksums{
			CRC32: fmt.Sprintf("%08x", crc32.ChecksumIEEE(image)),
			MD5:   fmt.Sprintf("%x", md5.Sum(image)),
		},
	}

	var unrecovered []UnrecoveredEntry
	for _, track := range sortedTracks(session) {
		entry := TrackEntry{
			Track:        track.Cyl,
			Head:         track.Head,
			Bitrate:      track.BitrateBPS,
			Encoding:     track.Encoding,
			SectorsFound: len(track.Sectors),
			RPM:          track.RPM,
			Quality:      track.Quality,
		}
		for _, sec := range track.Sectors {
			ok := sec.Status.Recovered()
			if ok {
				entry.SectorsOK++
			} else {
				entry.SectorsBad++
				unrecovered = append(unrecovered, UnrecoveredEntry{
					Track:  sec.Cyl,
					Head:   sec.Head,
					Sector: sec.Number,
					Reason: sec.Kind.String(),
				})
			}
			diag.Sectors = append(diag.Sectors, SectorEntry{
				Track:      sec.Cyl,
				Head:       sec.Head,
				Sector:     sec.Number,
				Size:       sec.Size(),
				HeaderOK:   sec.Kind != recovery.KindHeader,
				DataOK:     ok,
				Confidence: sec.Confidence,
			})
		}
		diag.Analysis.SectorsOK += entry.SectorsOK
		diag.Analysis.SectorsBad += entry.SectorsBad
		diag.Tracks = append(diag.Tracks, entry)
	}
	diag.Analysis.OverallQuality = overallQuality(diag.Analysis.SectorsOK, diag.Analysis.SectorsBad)
	return Document{DiskDiagnostics: diag, Unrecovered: unrecovered}
}

// Image concatenates recovered sector bytes in address order. Sectors
// without data occupy their full size with the fill byte so that every
// sector keeps its geometric offset in the image.
func Image(session *recovery.Session, fill byte) []byte {
	var image []byte
	for _, track := range sortedTracks(session) {
		sectors := append([]*recovery.Sector(nil), track.Sectors...)
		sort.Slice(sectors, func(i, j int) bool { return sectors[i].Number < sectors[j].Number })
		for _, sec := range sectors {
			if len(sec.Data) == 0 {
				image = append(image, bytes.Repeat([]byte{fill}, sec.Size())...)
				continue
			}
			image = append(image, sec.Data...)
		}
	}
	return image
}

// WriteJSON emits the document with stable indentation.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func sortedTracks(session *recovery.Session) []*recovery.Track {
	tracks := append([]*recovery.Track(nil), session.Tracks...)
	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].Cyl != tracks[j].Cyl {
			return tracks[i].Cyl < tracks[j].Cyl
		}
		return tracks[i].Head < tracks[j].Head
	})
	return tracks
}

func sectorsPerTrack(session *recovery.Session) int {
	max := 0
	for _, track := range session.Tracks {
		if len(track.Sectors) > max {
			max = len(track.Sectors)
		}
	}
	return max
}

func overallQuality(ok, bad int) string {
	total := ok + bad
	if total == 0 {
		return "empty"
	}
	switch frac := float64(ok) / float64(total); {
	case frac == 1:
		return "excellent"
	case frac >= 0.95:
		return "good"
	case frac >= 0.8:
		return "fair"
	default:
		return "poor"
	}
}
