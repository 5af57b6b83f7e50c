package object

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit. The payload intentionally excludes the signature field itself, so
// that signing happens over the same bytes a verifier reconstructs.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	copyCommit := *c
	copyCommit.Signature = ""
	return MarshalCommit(&copyCommit)
}

// SignCommitSSH signs a commit's signing payload with an SSH private key and
// returns a two-line signature block (the key's SHA256 fingerprint, then the
// signature format and base64 blob) suitable for CommitObj.Signature.
func SignCommitSSH(c *CommitObj, signer ssh.Signer) (string, error) {
	payload := CommitSigningPayload(c)
	sig, err := signer.Sign(nil, payload)
	if err != nil {
		return "", fmt.Errorf("sign commit: %w", err)
	}
	return ssh.FingerprintSHA256(signer.PublicKey()) + "\n" + sig.Format + " " + base64.StdEncoding.EncodeToString(sig.Blob), nil
}

// VerifyCommitSignatureSSH checks c.Signature against payload using the
// given set of trusted SSH public keys (an allowed-signers list). Returns
// nil only if at least one key verifies; otherwise returns ErrInvalid.
func VerifyCommitSignatureSSH(c *CommitObj, trusted []ssh.PublicKey) error {
	if strings.TrimSpace(c.Signature) == "" {
		return fmt.Errorf("%w: commit has no signature", ErrInvalid)
	}
	lines := strings.SplitN(c.Signature, "\n", 2)
	if len(lines) != 2 {
		return fmt.Errorf("%w: malformed signature block", ErrInvalid)
	}
	format, blob, ok := strings.Cut(strings.TrimSpace(lines[1]), " ")
	if !ok {
		return fmt.Errorf("%w: malformed signature block", ErrInvalid)
	}
	blobRaw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return fmt.Errorf("%w: malformed signature blob: %v", ErrInvalid, err)
	}
	sig := &ssh.Signature{Format: format, Blob: blobRaw}
	payload := CommitSigningPayload(c)

	for _, key := range trusted {
		if key.Verify(payload, sig) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: signature does not verify against any trusted key", ErrInvalid)
}
