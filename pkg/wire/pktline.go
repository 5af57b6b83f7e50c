// Package wire implements the collaborator-facing message layer (spec
// §6/§11): pkt-line framing, capability advertisement, and the
// upload-pack/receive-pack negotiation vocabulary. It carries message
// semantics only — process spawning and the actual socket/pipe plumbing
// belong to the collaborator, per spec §1's scope cut.
//
// Grounded in shape on the teacher's pkg/remote/sideband.go (a framed
// reader/writer pair multiplexing data/progress/error channels over an
// io.Reader/io.Writer) and pkg/remote/protocol.go's Capabilities set type,
// re-expressed against Git's pkt-line wire format: 4 ASCII-hex length
// digits instead of the teacher's 4-byte binary length, and a single flush
// packet instead of a channel-byte discriminator.
package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// MaxPacketData is the largest payload a single pkt-line may carry
// (65516 bytes: Git's 65520-byte pkt-line ceiling minus the 4-byte
// length header).
const MaxPacketData = 65516

// Flush is the zero-length packet ("0000") that terminates a section of
// the negotiation (the ref advertisement, the want list, the have list).
var Flush = []byte(nil)

var ErrPacketTooLong = errors.New("wire: pkt-line payload exceeds 65516 bytes")

// WritePacket writes data as one length-prefixed pkt-line. A nil or
// zero-length data writes the flush packet "0000".
func WritePacket(w io.Writer, data []byte) error {
	if len(data) == 0 {
		_, err := w.Write([]byte("0000"))
		return err
	}
	if len(data) > MaxPacketData {
		return ErrPacketTooLong
	}
	total := len(data) + 4
	if _, err := fmt.Fprintf(w, "%04x", total); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// WriteLine writes s as a pkt-line, appending a trailing "\n" the way
// every line-oriented packet (want/have/done/ACK/NAK/ref ads) does.
func WriteLine(w io.Writer, s string) error {
	return WritePacket(w, []byte(s+"\n"))
}

// PacketReader reads a stream of pkt-line framed packets.
type PacketReader struct {
	r *bufio.Reader
}

// NewPacketReader wraps r for pkt-line reading.
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{r: bufio.NewReader(r)}
}

// ReadPacket reads one packet, returning nil, nil for a flush packet and
// io.EOF once the underlying reader is exhausted between packets.
func (pr *PacketReader) ReadPacket() ([]byte, error) {
	var lenHex [4]byte
	if _, err := io.ReadFull(pr.r, lenHex[:]); err != nil {
		return nil, err
	}
	var length int
	if _, err := fmt.Sscanf(string(lenHex[:]), "%04x", &length); err != nil {
		return nil, fmt.Errorf("wire: bad pkt-line length %q: %w", lenHex, err)
	}
	if length == 0 {
		return nil, nil
	}
	if length < 4 {
		return nil, fmt.Errorf("wire: pkt-line length %d too short", length)
	}
	payload := make([]byte, length-4)
	if _, err := io.ReadFull(pr.r, payload); err != nil {
		return nil, fmt.Errorf("wire: short pkt-line payload: %w", err)
	}
	return payload, nil
}

// ReadLines reads packets until a flush, stripping each packet's trailing
// "\n" (the format every line-oriented section of the negotiation uses).
func (pr *PacketReader) ReadLines() ([]string, error) {
	var lines []string
	for {
		pkt, err := pr.ReadPacket()
		if err != nil {
			return nil, err
		}
		if pkt == nil {
			return lines, nil
		}
		s := string(pkt)
		if n := len(s); n > 0 && s[n-1] == '\n' {
			s = s[:n-1]
		}
		lines = append(lines, s)
	}
}
