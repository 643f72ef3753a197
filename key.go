package yakushima

import "encoding/binary"

// sliceKey consumes the leading 8-byte chunk of a key for one trie layer,
// per spec §3. If the remaining key fits in 8 bytes or fewer, the tag is the
// exact remaining length (0..8) and there is no further layer. Otherwise the
// tag is lengthTagContinues (9) and rest is what the next layer must slice.
func sliceKey(remaining []byte) (slice keySlice, tag lengthTag, rest []byte) {
	if len(remaining) <= 8 {
		var buf [8]byte
		copy(buf[:], remaining)
		return binary.BigEndian.Uint64(buf[:]), lengthTag(len(remaining)), nil
	}
	var buf [8]byte
	copy(buf[:], remaining[:8])
	return binary.BigEndian.Uint64(buf[:]), lengthTagContinues, remaining[8:]
}

// compareSliceTag orders two (slice, tag) pairs the way spec §4.2's rank
// computation requires: slice first as an unsigned integer, ties broken by
// tag ascending (9, "continues", numerically exceeds every terminal tag, so
// it naturally sorts to the right of same-prefix terminal keys).
func compareSliceTag(aSlice keySlice, aTag lengthTag, bSlice keySlice, bTag lengthTag) int {
	switch {
	case aSlice < bSlice:
		return -1
	case aSlice > bSlice:
		return 1
	case aTag < bTag:
		return -1
	case aTag > bTag:
		return 1
	default:
		return 0
	}
}

// encodeSlice renders a slice back to its 8 big-endian bytes, truncated to
// tag bytes when the tag is terminal. Used to reassemble a full key while
// scanning across layers (spec §4.9).
func encodeSlice(slice keySlice, tag lengthTag) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], slice)
	if tag == lengthTagContinues {
		return buf[:]
	}
	return buf[:tag]
}
