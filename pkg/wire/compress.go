package wire

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressPackStream wraps dst so a pack stream written through the
// returned writer is zstd-compressed, used when both peers' capability
// sets intersect on "zstd" (spec §11). Grounded on the teacher's
// pkg/remote/compress.go streaming helpers, reduced to the writer/reader
// wrapper shape this package's callers need (a pkt-line payload writer
// doesn't buffer the whole pack in memory the way the teacher's
// compressZstd([]byte) helper does).
func CompressPackStream(dst io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(dst)
}

// DecompressPackStream wraps src so reads come out zstd-decompressed.
func DecompressPackStream(src io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	return &zstdReadCloser{dec: dec}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return nil
}
