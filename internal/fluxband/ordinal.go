package fluxband

// OrdinalPattern emits one bit per adjacent delta pair: 1 when the second
// delta is larger, else 0. The pattern depends only on the ordering of the
// deltas, making it a clock-rate-independent fingerprint of the flux.
func OrdinalPattern(flux []int32) []byte {
	if len(flux) < 2 {
		return nil
	}
	bits := make([]byte, len(flux)-1)
	for i := 1; i < len(flux); i++ {
		if flux[i] > flux[i-1] {
			bits[i-1] = 1
		}
	}
	return bits
}

// OrdinalSearch returns the offsets in haystack whose ordinal pattern matches
// the needle's, up to maxResults. Because the comparison is ordinal, a sync
// mark (IBM A1A1A1, C2C2C2) is found regardless of drive RPM or bit-cell
// time. Fewer than 2 samples on either side yields no matches.
func OrdinalSearch(haystack, needle []int32, maxResults int) []int {
	if len(needle) < 2 || len(haystack) < len(needle) || maxResults <= 0 {
		return nil
	}
	pattern := OrdinalPattern(needle)
	var positions []int
	for off := 0; off+len(needle) <= len(haystack); off++ {
		if ordinalMatch(haystack[off:off+len(needle)], pattern) {
			positions = append(positions, off)
			if len(positions) == maxResults {
				break
			}
		}
	}
	return positions
}

func ordinalMatch(window []int32, pattern []byte) bool {
	for i := 1; i < len(window); i++ {
		var bit byte
		if window[i] > window[i-1] {
			bit = 1
		}
		if bit != pattern[i-1] {
			return false
		}
	}
	return true
}
