package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/klauspost/compress/zlib"
)

type packCountedWriter struct {
	w io.Writer
	n uint64
}

func (cw *packCountedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

func (cw *packCountedWriter) Count() uint64 {
	return cw.n
}

func compressPackPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackWriter writes Git-compatible pack streams with zlib-compressed object
// entries. The trailer checksum is SHA-1 over all bytes preceding it.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *packCountedWriter
	expected uint32
	written  uint32
	finished bool

	// offsets records the pack-relative start offset of every entry
	// written so far, keyed by OID, for OFS_DELTA base resolution.
	offsets map[Hash]uint64
}

// NewPackWriter initializes a new writer and writes the fixed pack header.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha1.New()
	counter := &packCountedWriter{w: out}
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		expected: numObjects,
		offsets:  make(map[Hash]uint64),
	}

	header := PackHeader{
		Version:    supportedPackVersion,
		NumObjects: numObjects,
	}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the current byte offset in the pack stream (from
// pack start), excluding the trailing checksum written by Finish().
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.Count()
}

// OffsetOf reports the start offset of a previously written object, for
// callers choosing OFS_DELTA bases.
func (p *PackWriter) OffsetOf(h Hash) (uint64, bool) {
	off, ok := p.offsets[h]
	return off, ok
}

// WriteEntry appends one full (non-delta) object entry to the pack stream.
func (p *PackWriter) WriteEntry(h Hash, objType PackObjectType, data []byte) error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	start := p.CurrentOffset()

	header := encodePackEntryHeader(objType, uint64(len(data)))
	if _, err := p.hashedW.Write(header); err != nil {
		return fmt.Errorf("write pack entry header: %w", err)
	}

	compressed, err := compressPackPayload(data)
	if err != nil {
		return fmt.Errorf("compress pack entry: %w", err)
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write compressed pack entry: %w", err)
	}

	if h != "" {
		p.offsets[h] = start
	}
	p.written++
	return nil
}

// WriteOfsDelta writes an OFS_DELTA entry whose base is the entry starting
// at pack offset baseOffset; the entry records the distance from its own
// start back to baseOffset.
func (p *PackWriter) WriteOfsDelta(h Hash, baseOffset uint64, baseData, targetData []byte) error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	start := p.CurrentOffset()
	if baseOffset >= start {
		return fmt.Errorf("base offset %d must be before current offset %d", baseOffset, start)
	}

	delta := buildDelta(baseData, targetData)
	header := encodePackEntryHeader(PackOfsDelta, uint64(len(delta)))
	ofs := encodeOfsDeltaDistance(start - baseOffset)
	compressed, err := compressPackPayload(delta)
	if err != nil {
		return fmt.Errorf("compress delta payload: %w", err)
	}

	if _, err := p.hashedW.Write(header); err != nil {
		return fmt.Errorf("write ofs-delta header: %w", err)
	}
	if _, err := p.hashedW.Write(ofs); err != nil {
		return fmt.Errorf("write ofs-delta base distance: %w", err)
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write ofs-delta payload: %w", err)
	}

	if h != "" {
		p.offsets[h] = start
	}
	p.written++
	return nil
}

// WriteRefDelta writes a REF_DELTA entry: the delta base is named directly
// by its OID, which need not already appear in this pack.
func (p *PackWriter) WriteRefDelta(h, baseHash Hash, baseData, targetData []byte) error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	start := p.CurrentOffset()

	delta := buildDelta(baseData, targetData)
	header := encodePackEntryHeader(PackRefDelta, uint64(len(delta)))
	baseRaw, err := RawBytes(baseHash)
	if err != nil {
		return fmt.Errorf("ref-delta base: %w", err)
	}
	compressed, err := compressPackPayload(delta)
	if err != nil {
		return fmt.Errorf("compress delta payload: %w", err)
	}

	if _, err := p.hashedW.Write(header); err != nil {
		return fmt.Errorf("write ref-delta header: %w", err)
	}
	if _, err := p.hashedW.Write(baseRaw); err != nil {
		return fmt.Errorf("write ref-delta base oid: %w", err)
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write ref-delta payload: %w", err)
	}

	if h != "" {
		p.offsets[h] = start
	}
	p.written++
	return nil
}

// Finish validates object count, writes the trailing pack checksum, and
// returns that checksum as a hex digest.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}

	p.finished = true
	return Hash(hex.EncodeToString(sum)), nil
}
