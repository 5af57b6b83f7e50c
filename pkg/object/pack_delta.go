package object

import (
	"bytes"
	"fmt"
	"io"
)

func encodeDeltaVarint(v uint64) []byte {
	if v == 0 {
		return []byte{0}
	}
	out := make([]byte, 0, 10)
	for v > 0 {
		b := byte(v & 0x7f)
		v >>= 7
		if v > 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func decodeDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		value uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("delta varint too large")
		}
	}
}

// encodeOfsDeltaDistance encodes a backward distance for OFS_DELTA entries.
func encodeOfsDeltaDistance(distance uint64) []byte {
	if distance == 0 {
		return []byte{0}
	}
	b := []byte{byte(distance & 0x7f)}
	for distance >>= 7; distance > 0; distance >>= 7 {
		distance--
		b = append([]byte{byte((distance & 0x7f) | 0x80)}, b...)
	}
	return b
}

func decodeOfsDeltaDistance(data []byte) (uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("ofs-delta distance truncated")
	}
	i := 0
	c := data[i]
	i++
	offset := uint64(c & 0x7f)
	for c&0x80 != 0 {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("ofs-delta distance truncated")
		}
		c = data[i]
		i++
		offset = ((offset + 1) << 7) | uint64(c&0x7f)
	}
	return offset, i, nil
}

// buildInsertOnlyDelta returns a valid Git delta stream by encoding the target
// object as literal insert chunks. This is intentionally simple and correct; it
// trades compression ratio for deterministic behavior.
func buildInsertOnlyDelta(base, target []byte) []byte {
	var out bytes.Buffer
	out.Write(encodeDeltaVarint(uint64(len(base))))
	out.Write(encodeDeltaVarint(uint64(len(target))))

	for pos := 0; pos < len(target); {
		chunk := len(target) - pos
		if chunk > 127 {
			chunk = 127
		}
		out.WriteByte(byte(chunk))
		out.Write(target[pos : pos+chunk])
		pos += chunk
	}
	return out.Bytes()
}

const deltaBlockSize = 16

// buildDelta encodes target against base using a sliding block-hash match
// search: every 16-byte block of base is indexed, each target offset probes
// the index for the longest forward match, and the match is extended
// backwards into any pending literal run. Falls back to buildInsertOnlyDelta
// when no match beats it.
func buildDelta(base, target []byte) []byte {
	insertOnly := buildInsertOnlyDelta(base, target)
	if len(base) < deltaBlockSize || len(target) < deltaBlockSize {
		return insertOnly
	}

	index := make(map[uint64][]int)
	for i := 0; i+deltaBlockSize <= len(base); i++ {
		h := deltaBlockHash(base[i : i+deltaBlockSize])
		index[h] = append(index[h], i)
	}

	var out bytes.Buffer
	out.Write(encodeDeltaVarint(uint64(len(base))))
	out.Write(encodeDeltaVarint(uint64(len(target))))

	litStart := 0
	pos := 0
	flushLiterals := func(end int) {
		for litStart < end {
			chunk := end - litStart
			if chunk > 127 {
				chunk = 127
			}
			out.WriteByte(byte(chunk))
			out.Write(target[litStart : litStart+chunk])
			litStart += chunk
		}
	}

	for pos+deltaBlockSize <= len(target) {
		h := deltaBlockHash(target[pos : pos+deltaBlockSize])
		candidates := index[h]
		bestOff, bestLen := -1, 0
		for _, cand := range candidates {
			if !bytes.Equal(base[cand:cand+deltaBlockSize], target[pos:pos+deltaBlockSize]) {
				continue
			}
			length := deltaBlockSize
			for cand+length < len(base) && pos+length < len(target) && base[cand+length] == target[pos+length] {
				length++
			}
			if length > bestLen {
				bestLen, bestOff = length, cand
			}
		}
		if bestLen == 0 {
			pos++
			continue
		}
		// Extend backward into the pending literal run.
		for bestOff > 0 && pos > litStart && base[bestOff-1] == target[pos-1] {
			bestOff--
			pos--
			bestLen++
		}
		flushLiterals(pos)
		writeDeltaCopy(&out, bestOff, bestLen)
		pos += bestLen
		litStart = pos
	}
	flushLiterals(len(target))

	encoded := out.Bytes()
	if len(encoded) < len(insertOnly) {
		return encoded
	}
	return insertOnly
}

func deltaBlockHash(b []byte) uint64 {
	var h uint64 = 14695981039346656037
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}

// writeDeltaCopy emits a single COPY instruction: top bit set, low 7 bits a
// bitmap over which of 4 offset bytes and 3 size bytes follow.
func writeDeltaCopy(out *bytes.Buffer, offset, size int) {
	for size > 0xFFFFFF {
		writeDeltaCopy(out, offset, 0xFFFFFF)
		offset += 0xFFFFFF
		size -= 0xFFFFFF
	}
	var offBytes, sizeBytes [4]byte
	offBytes[0] = byte(offset)
	offBytes[1] = byte(offset >> 8)
	offBytes[2] = byte(offset >> 16)
	offBytes[3] = byte(offset >> 24)
	encSize := size
	if encSize == 0x10000 {
		encSize = 0
	}
	sizeBytes[0] = byte(encSize)
	sizeBytes[1] = byte(encSize >> 8)
	sizeBytes[2] = byte(encSize >> 16)

	cmd := byte(0x80)
	var payload []byte
	for i := 0; i < 4; i++ {
		if offBytes[i] != 0 {
			cmd |= 1 << i
			payload = append(payload, offBytes[i])
		}
	}
	for i := 0; i < 3; i++ {
		if sizeBytes[i] != 0 {
			cmd |= 1 << (4 + i)
			payload = append(payload, sizeBytes[i])
		}
	}
	out.WriteByte(cmd)
	out.Write(payload)
}

// applyDelta applies Git delta instructions to base and returns the result.
func applyDelta(base, delta []byte) ([]byte, error) {
	dr := bytes.NewReader(delta)

	baseSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read base size: %w", err)
	}
	if int(baseSize) != len(base) {
		return nil, fmt.Errorf("delta base size mismatch: got %d want %d", baseSize, len(base))
	}
	resultSize, err := decodeDeltaVarint(dr)
	if err != nil {
		return nil, fmt.Errorf("read result size: %w", err)
	}

	out := make([]byte, 0, resultSize)
	for dr.Len() > 0 {
		cmd, err := dr.ReadByte()
		if err != nil {
			return nil, err
		}
		if cmd&0x80 != 0 {
			var (
				offset int64
				size   int64
			)
			if cmd&0x01 != 0 {
				b, err := readDeltaCopyArgByte(dr, "offset byte 0")
				if err != nil {
					return nil, err
				}
				offset |= int64(b)
			}
			if cmd&0x02 != 0 {
				b, err := readDeltaCopyArgByte(dr, "offset byte 1")
				if err != nil {
					return nil, err
				}
				offset |= int64(b) << 8
			}
			if cmd&0x04 != 0 {
				b, err := readDeltaCopyArgByte(dr, "offset byte 2")
				if err != nil {
					return nil, err
				}
				offset |= int64(b) << 16
			}
			if cmd&0x08 != 0 {
				b, err := readDeltaCopyArgByte(dr, "offset byte 3")
				if err != nil {
					return nil, err
				}
				offset |= int64(b) << 24
			}
			if cmd&0x10 != 0 {
				b, err := readDeltaCopyArgByte(dr, "size byte 0")
				if err != nil {
					return nil, err
				}
				size |= int64(b)
			}
			if cmd&0x20 != 0 {
				b, err := readDeltaCopyArgByte(dr, "size byte 1")
				if err != nil {
					return nil, err
				}
				size |= int64(b) << 8
			}
			if cmd&0x40 != 0 {
				b, err := readDeltaCopyArgByte(dr, "size byte 2")
				if err != nil {
					return nil, err
				}
				size |= int64(b) << 16
			}
			if size == 0 {
				size = 0x10000
			}
			if offset < 0 || size < 0 || offset+size > int64(len(base)) {
				return nil, fmt.Errorf("delta copy out of bounds")
			}
			out = append(out, base[offset:offset+size]...)
			continue
		}

		if cmd == 0 {
			return nil, fmt.Errorf("invalid delta command: 0")
		}
		insert := make([]byte, int(cmd))
		if _, err := io.ReadFull(dr, insert); err != nil {
			return nil, fmt.Errorf("delta insert: %w", err)
		}
		out = append(out, insert...)
	}

	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("delta result size mismatch: got %d expected %d", len(out), resultSize)
	}
	return out, nil
}

func readDeltaCopyArgByte(r io.ByteReader, field string) (byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("delta copy %s: %w", field, err)
	}
	return b, nil
}
