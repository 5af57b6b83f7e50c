package wire

import (
	"bytes"
	"testing"

	"github.com/harpreetsinghsandhu021/tide-version-control/pkg/object"
)

func TestCapabilitiesIntersectAndString(t *testing.T) {
	server := NewCapabilities(CapReportStatus, CapDeleteRefs, CapOfsDelta)
	client := NewCapabilities(CapReportStatus, CapZstd)

	negotiated := server.Intersect(client)
	if !negotiated.Has(CapReportStatus) {
		t.Fatal("expected report-status in the negotiated set")
	}
	if negotiated.Has(CapDeleteRefs) || negotiated.Has(CapZstd) {
		t.Fatalf("negotiated set should only contain the common capability, got %q", negotiated.String())
	}
	if negotiated.String() != CapReportStatus {
		t.Fatalf("String() = %q, want %q", negotiated.String(), CapReportStatus)
	}
}

func TestParseCapabilitiesSpaceDelimited(t *testing.T) {
	c := ParseCapabilities("report-status delete-refs ofs-delta")
	for _, name := range []string{CapReportStatus, CapDeleteRefs, CapOfsDelta} {
		if !c.Has(name) {
			t.Fatalf("expected %q in parsed capabilities", name)
		}
	}
}

func TestRefAdvertisementRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	refs := []RefAdvertisement{
		{Ref: "refs/heads/main", OID: object.Hash("1111111111111111111111111111111111111111")},
		{Ref: "refs/heads/dev", OID: object.Hash("2222222222222222222222222222222222222222")},
	}
	caps := NewCapabilities(CapReportStatus, CapOfsDelta)

	if err := WriteRefAdvertisement(&buf, refs, caps); err != nil {
		t.Fatalf("WriteRefAdvertisement: %v", err)
	}

	pr := NewPacketReader(&buf)
	gotRefs, gotCaps, err := pr.ReadRefAdvertisement()
	if err != nil {
		t.Fatalf("ReadRefAdvertisement: %v", err)
	}
	if len(gotRefs) != 2 {
		t.Fatalf("got %d refs, want 2", len(gotRefs))
	}
	if gotRefs[0].Ref != "refs/heads/main" || gotRefs[0].OID != refs[0].OID {
		t.Fatalf("gotRefs[0] = %+v, want %+v", gotRefs[0], refs[0])
	}
	if gotRefs[1].Ref != "refs/heads/dev" {
		t.Fatalf("gotRefs[1].Ref = %q, want refs/heads/dev", gotRefs[1].Ref)
	}
	if !gotCaps.Has(CapReportStatus) || !gotCaps.Has(CapOfsDelta) {
		t.Fatalf("gotCaps = %q, want both report-status and ofs-delta", gotCaps.String())
	}
}

func TestParseWantsHaves(t *testing.T) {
	verb, oid, done, err := ParseWantsHaves("want 1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("ParseWantsHaves: %v", err)
	}
	if verb != "want" || done || oid != object.Hash("1111111111111111111111111111111111111111") {
		t.Fatalf("got verb=%q oid=%q done=%v", verb, oid, done)
	}

	_, _, done, err = ParseWantsHaves("done")
	if err != nil || !done {
		t.Fatalf("ParseWantsHaves(done) = (_, _, %v, %v), want (_, _, true, nil)", done, err)
	}
}

func TestParseUpdateCommand(t *testing.T) {
	line := string(ZeroOID) + " 1111111111111111111111111111111111111111 refs/heads/main"
	cmd, err := ParseUpdateCommand(line)
	if err != nil {
		t.Fatalf("ParseUpdateCommand: %v", err)
	}
	if cmd.Old != ZeroOID || cmd.Ref != "refs/heads/main" {
		t.Fatalf("cmd = %+v", cmd)
	}
	if cmd.String() != line {
		t.Fatalf("String() round-trip = %q, want %q", cmd.String(), line)
	}
}

func TestUpdateResultFormatting(t *testing.T) {
	ok := UpdateResult{Ref: "refs/heads/main", OK: true}
	if ok.String() != "ok refs/heads/main" {
		t.Fatalf("ok.String() = %q", ok.String())
	}
	ng := UpdateResult{Ref: "refs/heads/dev", OK: false, Reason: "non-fast-forward"}
	if ng.String() != "ng refs/heads/dev non-fast-forward" {
		t.Fatalf("ng.String() = %q", ng.String())
	}
}
