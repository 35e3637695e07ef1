// Package encoding packs tile grids for the wire.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a row-major grid of tile classes into base64(varint pairs).
// The pairs are (class, run_len) repeated.
func EncodeRLE(cells []uint8) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cells) {
		c := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == c; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// DecodeRLE reverses EncodeRLE. limit caps the decoded length so a hostile run length
// cannot allocate without bound; pass 0 for no cap.
func DecodeRLE(b64 string, limit int) ([]uint8, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint8
	for i := 0; i < len(raw); {
		c, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if c > 0xFF {
			return nil, fmt.Errorf("tile class too large: %d", c)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("grid longer than %d cells", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint8(c))
		}
	}
	return out, nil
}
