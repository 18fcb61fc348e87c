package logsx

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"fmt"
	"io"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// Compress encodes data with the named algorithm. zlib_base85 is
// currently the only one defined, matching compress_data's single
// match-case in the original; any other name is rejected, the wire
// equivalent of the original's TransactionError for an unknown scheme.
func Compress(data string, algorithm models.CompressionAlg) (string, error) {
	if algorithm != models.CompressionAlgZlibBase85 {
		return "", fmt.Errorf("logsx: unknown compression algorithm %q", algorithm)
	}

	var zlibBuf bytes.Buffer
	w := zlib.NewWriter(&zlibBuf)
	if _, err := w.Write([]byte(data)); err != nil {
		return "", fmt.Errorf("logsx: zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("logsx: zlib compress: %w", err)
	}

	var encoded bytes.Buffer
	enc := ascii85.NewEncoder(&encoded)
	if _, err := enc.Write(zlibBuf.Bytes()); err != nil {
		return "", fmt.Errorf("logsx: base85 encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("logsx: base85 encode: %w", err)
	}
	return encoded.String(), nil
}

// decompress reverses Compress, used only by this package's own tests
// (clients do the decoding on their side; the agent never needs to read
// its own compressed output back).
func decompress(encoded string) (string, error) {
	decoded := make([]byte, len(encoded))
	n, _, err := ascii85.Decode(decoded, []byte(encoded), true)
	if err != nil {
		return "", fmt.Errorf("logsx: base85 decode: %w", err)
	}

	r, err := zlib.NewReader(bytes.NewReader(decoded[:n]))
	if err != nil {
		return "", fmt.Errorf("logsx: zlib reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("logsx: zlib decompress: %w", err)
	}
	return string(out), nil
}
