package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	packIndexVersion        = 2
	packIndexHeaderSize     = 4 + 4
	packIndexFanoutSize     = 256 * 4
	packIndexLargeOffsetBit = uint32(1 << 31)
)

var packIndexMagic = [4]byte{0xff, 't', 'O', 'c'}

// PackIndexEntry is one row in a pack index file.
type PackIndexEntry struct {
	Hash   Hash
	Offset uint64
	CRC32  uint32
}

func normalizePackIndexEntries(entries []PackIndexEntry) ([]PackIndexEntry, error) {
	out := make([]PackIndexEntry, len(entries))
	copy(out, entries)

	for i := range out {
		if _, err := hashHexToBytes(out[i].Hash); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hash < out[j].Hash
	})
	for i := 1; i < len(out); i++ {
		if out[i].Hash == out[i-1].Hash {
			return nil, fmt.Errorf("duplicate hash in pack index: %s", out[i].Hash)
		}
	}
	return out, nil
}

func hashHexToBytes(h Hash) ([]byte, error) {
	if len(h) != HashSize*2 {
		return nil, fmt.Errorf("hash length must be %d hex chars, got %d", HashSize*2, len(h))
	}
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", h, err)
	}
	return raw, nil
}

// WritePackIndex writes a Git idx v2 style index for the provided entries and
// pack checksum. It returns the hex-encoded index checksum.
func WritePackIndex(w io.Writer, entries []PackIndexEntry, packChecksum Hash) (Hash, error) {
	normalized, err := normalizePackIndexEntries(entries)
	if err != nil {
		return "", err
	}
	packChecksumRaw, err := hashHexToBytes(packChecksum)
	if err != nil {
		return "", fmt.Errorf("pack checksum: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(packIndexMagic[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(packIndexVersion))

	fanout := buildPackIndexFanout(normalized)
	for i := 0; i < 256; i++ {
		_ = binary.Write(&buf, binary.BigEndian, fanout[i])
	}

	for _, entry := range normalized {
		raw, _ := hashHexToBytes(entry.Hash)
		buf.Write(raw)
	}
	for _, entry := range normalized {
		_ = binary.Write(&buf, binary.BigEndian, entry.CRC32)
	}

	largeOffsets := make([]uint64, 0)
	for _, entry := range normalized {
		if entry.Offset < uint64(packIndexLargeOffsetBit) {
			_ = binary.Write(&buf, binary.BigEndian, uint32(entry.Offset))
			continue
		}

		pos := uint32(len(largeOffsets))
		ref := packIndexLargeOffsetBit | pos
		_ = binary.Write(&buf, binary.BigEndian, ref)
		largeOffsets = append(largeOffsets, entry.Offset)
	}
	for _, offset := range largeOffsets {
		_ = binary.Write(&buf, binary.BigEndian, offset)
	}

	buf.Write(packChecksumRaw)
	indexSum := sha1.Sum(buf.Bytes())
	buf.Write(indexSum[:])

	if _, err := w.Write(buf.Bytes()); err != nil {
		return "", fmt.Errorf("write pack index: %w", err)
	}
	return Hash(hex.EncodeToString(indexSum[:])), nil
}

func buildPackIndexFanout(entries []PackIndexEntry) [256]uint32 {
	var counts [256]uint32
	for _, entry := range entries {
		raw, _ := hashHexToBytes(entry.Hash)
		counts[int(raw[0])]++
	}

	var fanout [256]uint32
	var total uint32
	for i := 0; i < 256; i++ {
		total += counts[i]
		fanout[i] = total
	}
	return fanout
}

// PackIndex is a parsed .idx file, searchable by OID.
type PackIndex struct {
	fanout      [256]uint32
	oids        [][]byte // sorted, HashSize bytes each
	crc32s      []uint32
	offsets     []uint32
	extOffsets  []uint64
	PackSHA1    Hash
	IdxSHA1     Hash
}

// ReadPackIndex parses a full .idx v2 byte stream.
func ReadPackIndex(data []byte) (*PackIndex, error) {
	if len(data) < 4+4+packIndexFanoutSize+2*HashSize {
		return nil, fmt.Errorf("pack index: truncated")
	}
	if !bytes.Equal(data[:4], packIndexMagic[:]) {
		return nil, fmt.Errorf("pack index: bad magic")
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != packIndexVersion {
		return nil, fmt.Errorf("pack index: unsupported version %d", version)
	}

	pos := 8
	idx := &PackIndex{}
	for i := 0; i < 256; i++ {
		idx.fanout[i] = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}
	n := int(idx.fanout[255])

	idx.oids = make([][]byte, n)
	for i := 0; i < n; i++ {
		idx.oids[i] = data[pos : pos+HashSize]
		pos += HashSize
	}
	idx.crc32s = make([]uint32, n)
	for i := 0; i < n; i++ {
		idx.crc32s[i] = binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4
	}
	idx.offsets = make([]uint32, n)
	numExt := 0
	for i := 0; i < n; i++ {
		v := binary.BigEndian.Uint32(data[pos : pos+4])
		idx.offsets[i] = v
		pos += 4
		if v&packIndexLargeOffsetBit != 0 {
			numExt++
		}
	}
	idx.extOffsets = make([]uint64, numExt)
	for i := 0; i < numExt; i++ {
		idx.extOffsets[i] = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}
	if pos+2*HashSize > len(data) {
		return nil, fmt.Errorf("pack index: truncated trailer")
	}
	idx.PackSHA1 = HashFromRaw(data[pos : pos+HashSize])
	pos += HashSize
	idx.IdxSHA1 = HashFromRaw(data[pos : pos+HashSize])

	sum := sha1.Sum(data[:pos])
	if HashFromRaw(sum[:]) != idx.IdxSHA1 {
		return nil, fmt.Errorf("%w: pack index checksum mismatch", ErrCorrupt)
	}
	return idx, nil
}

// Offset looks up h via the fan-out table and a binary search over the
// sorted oid table, returning its byte offset within the paired pack and
// whether it was found.
func (idx *PackIndex) Offset(h Hash) (uint64, bool) {
	raw, err := RawBytes(h)
	if err != nil {
		return 0, false
	}
	lo := uint32(0)
	if raw[0] > 0 {
		lo = idx.fanout[raw[0]-1]
	}
	hi := idx.fanout[raw[0]]
	i := sort.Search(int(hi-lo), func(k int) bool {
		return bytes.Compare(idx.oids[int(lo)+k], raw) >= 0
	}) + int(lo)
	if i >= int(hi) || !bytes.Equal(idx.oids[i], raw) {
		return 0, false
	}
	off := idx.offsets[i]
	if off&packIndexLargeOffsetBit == 0 {
		return uint64(off), true
	}
	extIdx := off &^ packIndexLargeOffsetBit
	if int(extIdx) >= len(idx.extOffsets) {
		return 0, false
	}
	return idx.extOffsets[extIdx], true
}

// PackChecksum is an alias for PackSHA1, the checksum of the paired .pack
// file recorded in this index's trailer.
func (idx *PackIndex) PackChecksum() Hash {
	return idx.PackSHA1
}

// Find looks up h and returns its full index row.
func (idx *PackIndex) Find(h Hash) (PackIndexEntry, bool) {
	off, ok := idx.Offset(h)
	if !ok {
		return PackIndexEntry{}, false
	}
	raw, _ := RawBytes(h)
	i := sort.Search(len(idx.oids), func(k int) bool {
		return bytes.Compare(idx.oids[k], raw) >= 0
	})
	var crc uint32
	if i < len(idx.oids) && bytes.Equal(idx.oids[i], raw) {
		crc = idx.crc32s[i]
	}
	return PackIndexEntry{Hash: h, Offset: off, CRC32: crc}, true
}

// Entries returns every row in the index.
func (idx *PackIndex) Entries() []PackIndexEntry {
	out := make([]PackIndexEntry, len(idx.oids))
	for i, raw := range idx.oids {
		h := HashFromRaw(raw)
		off, _ := idx.Offset(h)
		out[i] = PackIndexEntry{Hash: h, Offset: off, CRC32: idx.crc32s[i]}
	}
	return out
}

// Hashes returns every OID present in the index, in sorted order.
func (idx *PackIndex) Hashes() []Hash {
	out := make([]Hash, len(idx.oids))
	for i, raw := range idx.oids {
		out[i] = HashFromRaw(raw)
	}
	return out
}

// PrefixMatch returns every OID in the index beginning with the given hex
// prefix, using the fan-out table to bound the search.
func (idx *PackIndex) PrefixMatch(hexPrefix string) ([]Hash, error) {
	if hexPrefix == "" {
		return idx.Hashes(), nil
	}
	firstByte, err := hex.DecodeString(padHex(hexPrefix[:minInt(2, len(hexPrefix))]))
	if err != nil {
		return nil, fmt.Errorf("prefix match: %w", err)
	}
	lo := uint32(0)
	if firstByte[0] > 0 {
		lo = idx.fanout[firstByte[0]-1]
	}
	hi := idx.fanout[firstByte[0]]
	var out []Hash
	for i := lo; i < hi; i++ {
		h := HashFromRaw(idx.oids[i])
		if strings.HasPrefix(string(h), hexPrefix) {
			out = append(out, h)
		}
	}
	return out, nil
}

func padHex(s string) string {
	if len(s) == 1 {
		return s + "0"
	}
	return s
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
