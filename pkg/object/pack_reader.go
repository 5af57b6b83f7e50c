package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry represents one object entry in a pack stream.
//
// For base objects (commit/tree/blob), Type == OriginalType and Data holds
// the final object bytes. For delta entries as initially parsed, Type is
// OfsDelta/RefDelta, Data holds the raw delta instruction stream, and
// BaseDistance/BaseRef name the base. After ResolvePackEntries, Type is
// rewritten to the resolved base type and Data holds the expanded object,
// while OriginalType/Offset/BaseDistance/BaseRef are preserved for callers
// that need the original encoding (e.g. a repacker avoiding redundant work).
type PackEntry struct {
	Type         PackObjectType
	OriginalType PackObjectType
	Size         uint64
	Data         []byte
	Offset       uint64
	BaseDistance uint64 // valid when OriginalType == PackOfsDelta
	BaseRef      Hash   // valid when OriginalType == PackRefDelta
}

// PackFile is the decoded content of a full pack stream.
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum Hash
}

// ReadPack parses a full pack file byte slice, verifies the trailer
// checksum, and returns decoded entries with delta payloads left
// unresolved. Use ReadPackResolved to additionally expand delta chains.
func ReadPack(data []byte) (*PackFile, error) {
	if len(data) < packHeaderSize+HashSize {
		return nil, fmt.Errorf("pack too short: %d", len(data))
	}

	payload := data[:len(data)-HashSize]
	trailer := data[len(data)-HashSize:]

	sum := sha1.Sum(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("%w: pack checksum mismatch", ErrCorrupt)
	}

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	offset := packHeaderSize
	entries := make([]PackEntry, 0, header.NumObjects)
	for i := uint32(0); i < header.NumObjects; i++ {
		entryStart := offset
		objType, size, n, err := decodePackEntryHeaderStrict(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += n

		var baseDistance uint64
		var baseRef Hash
		switch objType {
		case PackOfsDelta:
			dist, consumed, err := decodeOfsDeltaDistance(payload[offset:])
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			baseDistance = dist
			offset += consumed
		case PackRefDelta:
			if offset+HashSize > len(payload) {
				return nil, fmt.Errorf("entry %d: truncated ref-delta base", i)
			}
			baseRef = HashFromRaw(payload[offset : offset+HashSize])
			offset += HashSize
		}

		if offset >= len(payload) {
			return nil, fmt.Errorf("entry %d: missing compressed payload", i)
		}

		sub := bytes.NewReader(payload[offset:])
		zr, err := zlib.NewReader(sub)
		if err != nil {
			return nil, fmt.Errorf("entry %d: zlib reader: %w", i, err)
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("entry %d: decompress: %w", i, err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("entry %d: close zlib stream: %w", i, err)
		}
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("entry %d: size mismatch header=%d decoded=%d", i, size, len(raw))
		}

		consumed := len(payload[offset:]) - sub.Len()
		offset += consumed

		entries = append(entries, PackEntry{
			Type:         objType,
			OriginalType: objType,
			Size:         size,
			Data:         raw,
			Offset:       uint64(entryStart),
			BaseDistance: baseDistance,
			BaseRef:      baseRef,
		})
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pack has trailing undecoded bytes: %d", len(payload)-offset)
	}

	return &PackFile{
		Header:   *header,
		Entries:  entries,
		Checksum: Hash(hex.EncodeToString(trailer)),
	}, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack for decode and verification.
func ReadPackFromReader(r io.Reader) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}

// ReadPackResolved parses data and fully resolves every delta chain into
// its final base-typed object, composing ReadPack and ResolvePackEntries.
func ReadPackResolved(data []byte) (*PackFile, error) {
	pf, err := ReadPack(data)
	if err != nil {
		return nil, err
	}
	if err := ResolvePackEntries(pf.Entries); err != nil {
		return nil, err
	}
	return pf, nil
}

// ResolvePackEntries walks OFS_DELTA and REF_DELTA chains in place,
// rewriting each entry's Type to its resolved base type and Data to the
// expanded object bytes. OFS_DELTA bases are found by matching Offset
// against entry.Offset - BaseDistance among entries in the same slice.
// REF_DELTA bases are found by OID, either among entries in the same slice
// (for a self-contained pack) or via the optional externalBase lookup
// functions. Returns *Corrupt-wrapped errors on any base that cannot be
// located.
func ResolvePackEntries(entries []PackEntry, externalBase ...func(Hash) (ObjectType, []byte, bool)) error {
	byOffset := make(map[uint64]int, len(entries))
	for i, e := range entries {
		byOffset[e.Offset] = i
	}

	resolved := make([]bool, len(entries))
	var resolve func(i int, depth int) error
	resolve = func(i int, depth int) error {
		if depth > 1<<20 {
			return fmt.Errorf("%w: delta chain too deep or cyclic", ErrCorrupt)
		}
		if resolved[i] {
			return nil
		}
		e := &entries[i]
		if !e.OriginalType.IsDelta() {
			resolved[i] = true
			return nil
		}

		var baseType ObjectType
		var baseData []byte
		switch e.OriginalType {
		case PackOfsDelta:
			baseOffset := e.Offset - e.BaseDistance
			bi, ok := byOffset[baseOffset]
			if !ok {
				return fmt.Errorf("%w: ofs-delta base at offset %d not found", ErrCorrupt, baseOffset)
			}
			if err := resolve(bi, depth+1); err != nil {
				return err
			}
			bt, ok := entries[bi].Type.BaseObjectType()
			if !ok {
				return fmt.Errorf("%w: ofs-delta base resolved to non-base type", ErrCorrupt)
			}
			baseType, baseData = bt, entries[bi].Data
		case PackRefDelta:
			found := false
			for bi := range entries {
				if entries[bi].OriginalType.IsDelta() {
					continue
				}
				bh := HashObject(mustBaseType(entries[bi].OriginalType), entries[bi].Data)
				if bh == e.BaseRef {
					baseType, baseData = mustBaseType(entries[bi].OriginalType), entries[bi].Data
					found = true
					break
				}
			}
			if !found {
				for bi := range entries {
					if !entries[bi].OriginalType.IsDelta() {
						continue
					}
					if err := resolve(bi, depth+1); err != nil {
						continue
					}
					bt, ok := entries[bi].Type.BaseObjectType()
					if ok && HashObject(bt, entries[bi].Data) == e.BaseRef {
						baseType, baseData = bt, entries[bi].Data
						found = true
						break
					}
				}
			}
			if !found {
				for _, lookup := range externalBase {
					if lookup == nil {
						continue
					}
					if bt, bd, ok := lookup(e.BaseRef); ok {
						baseType, baseData, found = bt, bd, true
						break
					}
				}
			}
			if !found {
				return fmt.Errorf("%w: ref-delta base %s not found", ErrCorrupt, e.BaseRef)
			}
		}

		expanded, err := applyDelta(baseData, e.Data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		packType, err := objectTypeToPackType(baseType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		e.Type = packType
		e.Data = expanded
		e.Size = uint64(len(expanded))
		resolved[i] = true
		return nil
	}

	for i := range entries {
		if err := resolve(i, 0); err != nil {
			return err
		}
	}
	return nil
}

func mustBaseType(t PackObjectType) ObjectType {
	bt, _ := t.BaseObjectType()
	return bt
}

func decodePackEntryHeaderStrict(data []byte) (PackObjectType, uint64, int, error) {
	if len(data) == 0 {
		return 0, 0, 0, fmt.Errorf("entry header truncated")
	}

	b := data[0]
	objType := PackObjectType((b >> 4) & 0x7)
	size := uint64(b & 0x0f)
	shift := uint(4)
	consumed := 1

	for b&0x80 != 0 {
		if consumed >= len(data) {
			return 0, 0, 0, fmt.Errorf("entry header truncated")
		}
		b = data[consumed]
		size |= uint64(b&0x7f) << shift
		shift += 7
		consumed++
	}

	return objType, size, consumed, nil
}
