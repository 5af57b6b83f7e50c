package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"testing"
)

func TestWritePackIndexHeaderFanoutAndSorting(t *testing.T) {
	entries := []PackIndexEntry{
		{
			Hash:   Hash("ff" + repeatHex("00", 19)),
			Offset: 32,
			CRC32:  0x33333333,
		},
		{
			Hash:   Hash("01" + repeatHex("00", 19)),
			Offset: 16,
			CRC32:  0x11111111,
		},
		{
			Hash:   Hash("10" + repeatHex("00", 19)),
			Offset: 24,
			CRC32:  0x22222222,
		},
	}
	packChecksum := Hash(repeatHex("ab", 20))

	var buf bytes.Buffer
	if _, err := WritePackIndex(&buf, entries, packChecksum); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	data := buf.Bytes()

	if len(data) < packIndexHeaderSize+packIndexFanoutSize+2*HashSize {
		t.Fatalf("index output too short: %d", len(data))
	}
	if !bytes.Equal(data[:4], packIndexMagic[:]) {
		t.Fatalf("magic = %x, want %x", data[:4], packIndexMagic)
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != packIndexVersion {
		t.Fatalf("version = %d, want %d", version, packIndexVersion)
	}

	fanoutStart := packIndexHeaderSize
	fanout := data[fanoutStart : fanoutStart+packIndexFanoutSize]
	if got := binary.BigEndian.Uint32(fanout[0*4:]); got != 0 {
		t.Fatalf("fanout[0] = %d, want 0", got)
	}
	if got := binary.BigEndian.Uint32(fanout[1*4:]); got != 1 {
		t.Fatalf("fanout[1] = %d, want 1", got)
	}
	if got := binary.BigEndian.Uint32(fanout[0x10*4:]); got != 2 {
		t.Fatalf("fanout[0x10] = %d, want 2", got)
	}
	if got := binary.BigEndian.Uint32(fanout[0xff*4:]); got != 3 {
		t.Fatalf("fanout[0xff] = %d, want 3", got)
	}

	namesStart := packIndexHeaderSize + packIndexFanoutSize
	nameCount := len(entries)
	namesEnd := namesStart + (nameCount * HashSize)
	nameTable := data[namesStart:namesEnd]

	got1 := hex.EncodeToString(nameTable[0:HashSize])
	got2 := hex.EncodeToString(nameTable[HashSize : 2*HashSize])
	got3 := hex.EncodeToString(nameTable[2*HashSize : 3*HashSize])
	want1 := "01" + repeatHex("00", 19)
	want2 := "10" + repeatHex("00", 19)
	want3 := "ff" + repeatHex("00", 19)
	if got1 != want1 || got2 != want2 || got3 != want3 {
		t.Fatalf("name order mismatch: got [%s %s %s]", got1, got2, got3)
	}
}

func TestWritePackIndexChecksums(t *testing.T) {
	entries := []PackIndexEntry{
		{
			Hash:   Hash("42" + repeatHex("00", 19)),
			Offset: 123,
			CRC32:  0xabcdef12,
		},
	}
	packChecksum := Hash(repeatHex("cd", 20))

	var buf bytes.Buffer
	gotIndexChecksum, err := WritePackIndex(&buf, entries, packChecksum)
	if err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 2*HashSize {
		t.Fatalf("index too short: %d", len(data))
	}

	packChecksumRaw, err := hex.DecodeString(string(packChecksum))
	if err != nil {
		t.Fatalf("decode pack checksum: %v", err)
	}
	gotPackChecksum := data[len(data)-2*HashSize : len(data)-HashSize]
	if !bytes.Equal(gotPackChecksum, packChecksumRaw) {
		t.Fatalf("pack checksum mismatch: got %x want %x", gotPackChecksum, packChecksumRaw)
	}

	gotIndexRaw := data[len(data)-HashSize:]
	expectedIndex := sha1.Sum(data[:len(data)-HashSize])
	if !bytes.Equal(gotIndexRaw, expectedIndex[:]) {
		t.Fatalf("index checksum mismatch: got %x want %x", gotIndexRaw, expectedIndex)
	}
	if string(gotIndexChecksum) != hex.EncodeToString(expectedIndex[:]) {
		t.Fatalf("returned index checksum mismatch: got %s want %s", gotIndexChecksum, hex.EncodeToString(expectedIndex[:]))
	}
}

func TestWritePackIndexLargeOffsets(t *testing.T) {
	entries := []PackIndexEntry{
		{
			Hash:   Hash("20" + repeatHex("00", 19)),
			Offset: 0x20,
		},
		{
			Hash:   Hash("30" + repeatHex("00", 19)),
			Offset: uint64(packIndexLargeOffsetBit) + 123,
		},
	}
	packChecksum := Hash(repeatHex("ef", 20))

	var buf bytes.Buffer
	if _, err := WritePackIndex(&buf, entries, packChecksum); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}
	data := buf.Bytes()

	namesStart := packIndexHeaderSize + packIndexFanoutSize
	offsetTableStart := namesStart + (len(entries) * HashSize) + (len(entries) * 4)
	offset1 := binary.BigEndian.Uint32(data[offsetTableStart:])
	offset2 := binary.BigEndian.Uint32(data[offsetTableStart+4:])

	if offset1 != 0x20 {
		t.Fatalf("offset1 = %d, want %d", offset1, 0x20)
	}
	if offset2&packIndexLargeOffsetBit == 0 {
		t.Fatalf("offset2 expected large offset marker, got 0x%x", offset2)
	}
	index := offset2 & ^packIndexLargeOffsetBit
	if index != 0 {
		t.Fatalf("offset2 large index = %d, want 0", index)
	}

	largeOffsetStart := offsetTableStart + (len(entries) * 4)
	largeOffset := binary.BigEndian.Uint64(data[largeOffsetStart:])
	if largeOffset != uint64(packIndexLargeOffsetBit)+123 {
		t.Fatalf("large offset = %d, want %d", largeOffset, uint64(packIndexLargeOffsetBit)+123)
	}
}

func TestWritePackIndexRejectsDuplicateHashes(t *testing.T) {
	dup := Hash("20" + repeatHex("00", 19))
	entries := []PackIndexEntry{
		{Hash: dup, Offset: 1},
		{Hash: dup, Offset: 2},
	}
	packChecksum := Hash(repeatHex("ef", 20))

	var buf bytes.Buffer
	if _, err := WritePackIndex(&buf, entries, packChecksum); err == nil {
		t.Fatal("expected duplicate hash error")
	}
}

func TestReadPackIndexRoundTrip(t *testing.T) {
	entries := []PackIndexEntry{
		{Hash: Hash("01" + repeatHex("00", 19)), Offset: 16, CRC32: 0x11},
		{Hash: Hash("ff" + repeatHex("00", 19)), Offset: 32, CRC32: 0x22},
	}
	packChecksum := Hash(repeatHex("ab", 20))

	var buf bytes.Buffer
	idxChecksum, err := WritePackIndex(&buf, entries, packChecksum)
	if err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}

	idx, err := ReadPackIndex(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPackIndex: %v", err)
	}
	if idx.PackChecksum() != packChecksum {
		t.Fatalf("PackChecksum = %s, want %s", idx.PackChecksum(), packChecksum)
	}
	if idx.IdxSHA1 != idxChecksum {
		t.Fatalf("IdxSHA1 = %s, want %s", idx.IdxSHA1, idxChecksum)
	}

	for _, e := range entries {
		off, ok := idx.Offset(e.Hash)
		if !ok {
			t.Fatalf("Offset(%s): not found", e.Hash)
		}
		if off != e.Offset {
			t.Fatalf("Offset(%s) = %d, want %d", e.Hash, off, e.Offset)
		}
	}

	if _, ok := idx.Offset(Hash(repeatHex("99", 20))); ok {
		t.Fatal("expected lookup miss for absent hash")
	}
}

func TestReadPackIndexRejectsCorruptChecksum(t *testing.T) {
	entries := []PackIndexEntry{
		{Hash: Hash("01" + repeatHex("00", 19)), Offset: 16},
	}
	var buf bytes.Buffer
	if _, err := WritePackIndex(&buf, entries, Hash(repeatHex("ab", 20))); err != nil {
		t.Fatalf("WritePackIndex: %v", err)
	}

	data := append([]byte(nil), buf.Bytes()...)
	data[len(data)-1] ^= 0xff
	if _, err := ReadPackIndex(data); err == nil {
		t.Fatal("expected corrupt checksum error")
	}
}

func repeatHex(h string, n int) string {
	var b bytes.Buffer
	for i := 0; i < n; i++ {
		b.WriteString(h)
	}
	return b.String()
}
