package wire

import (
	"fmt"
	"io"
	"strings"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

// ZeroOID is the 40-zero placeholder spec §6 uses for an absent ref side
// in a receive-pack update command.
const ZeroOID = object.Hash("0000000000000000000000000000000000000000")

// RefAdvertisement is one "<oid> <ref>" line from the first non-flush
// packet of a session, carrying the peer's capability list alongside the
// first entry only (spec §6: "NUL-separated from a ... capability list").
type RefAdvertisement struct {
	Ref          string
	OID          object.Hash
	Capabilities Capabilities // only set on the first advertised ref
}

// WriteRefAdvertisement writes refs as the initial pkt-line burst,
// NUL-joining caps onto the first line per spec, then a flush packet.
func WriteRefAdvertisement(pr io.Writer, refs []RefAdvertisement, caps Capabilities) error {
	for i, ad := range refs {
		line := fmt.Sprintf("%s %s", ad.OID, ad.Ref)
		if i == 0 {
			line += "\x00" + caps.String()
		}
		if err := WriteLine(pr, line); err != nil {
			return err
		}
	}
	return WritePacket(pr, nil)
}

// ReadRefAdvertisement reads the initial advertisement burst, splitting
// the first line's NUL-delimited capability suffix back out.
func (pr *PacketReader) ReadRefAdvertisement() ([]RefAdvertisement, Capabilities, error) {
	lines, err := pr.ReadLines()
	if err != nil {
		return nil, Capabilities{}, err
	}
	var caps Capabilities
	ads := make([]RefAdvertisement, 0, len(lines))
	for i, line := range lines {
		if i == 0 {
			if idx := strings.IndexByte(line, 0); idx >= 0 {
				caps = ParseCapabilities(line[idx+1:])
				line = line[:idx]
			}
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			return nil, Capabilities{}, fmt.Errorf("wire: malformed ref advertisement line %q", line)
		}
		ads = append(ads, RefAdvertisement{OID: object.Hash(parts[0]), Ref: parts[1]})
	}
	if len(ads) > 0 {
		ads[0].Capabilities = caps
	}
	return ads, caps, nil
}

// WantLine / HaveLine render the client's upload-pack negotiation lines.
func WantLine(oid object.Hash) string { return "want " + string(oid) }
func HaveLine(oid object.Hash) string { return "have " + string(oid) }

const doneLine = "done"

// ParseWantsHaves splits a line previously read via ReadLines into its
// verb and OID, for the server side of upload-pack negotiation.
func ParseWantsHaves(line string) (verb string, oid object.Hash, done bool, err error) {
	if line == doneLine {
		return "", "", true, nil
	}
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 || (parts[0] != "want" && parts[0] != "have") {
		return "", "", false, fmt.Errorf("wire: malformed negotiation line %q", line)
	}
	return parts[0], object.Hash(parts[1]), false, nil
}

// AckStatus is the server's response to a client's negotiation round.
type AckStatus int

const (
	NAK AckStatus = iota
	ACKContinue
	ACKCommon
	ACKReady
)

func (s AckStatus) String() string {
	switch s {
	case ACKContinue, ACKCommon, ACKReady:
		return "ACK"
	default:
		return "NAK"
	}
}

// UpdateCommand is one "<old> <new> <ref>" receive-pack line (spec §6).
// Old == ZeroOID means the ref is being created; New == ZeroOID means it
// is being deleted.
type UpdateCommand struct {
	Old object.Hash
	New object.Hash
	Ref string
}

func (u UpdateCommand) String() string {
	return fmt.Sprintf("%s %s %s", u.Old, u.New, u.Ref)
}

// ParseUpdateCommand parses one receive-pack update line.
func ParseUpdateCommand(line string) (UpdateCommand, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return UpdateCommand{}, fmt.Errorf("wire: malformed update command %q", line)
	}
	return UpdateCommand{Old: object.Hash(parts[0]), New: object.Hash(parts[1]), Ref: parts[2]}, nil
}

// UpdateResult is one "ok <ref>" / "ng <ref> <reason>" report-status line.
type UpdateResult struct {
	Ref    string
	OK     bool
	Reason string
}

func (r UpdateResult) String() string {
	if r.OK {
		return "ok " + r.Ref
	}
	return fmt.Sprintf("ng %s %s", r.Ref, r.Reason)
}

// UnpackStatus is the receive-pack "unpack ok" / "unpack <error>" line
// sent before the per-ref UpdateResult lines.
func UnpackStatus(err error) string {
	if err == nil {
		return "unpack ok"
	}
	return "unpack " + err.Error()
}
