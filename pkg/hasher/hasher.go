package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Algorithm identifies a supported digest algorithm. The algorithm is chosen
// once when an inventory is created and recorded in it, so chunk digests and
// the whole-file digest always use the same variant.
type Algorithm string

const (
	// XXH64 is the default: fast and non-cryptographic, well suited for
	// integrity checks over very large files.
	XXH64 Algorithm = "xxh64"
	// MD5 and SHA256 are slower but widely implemented, useful when chunk
	// digests need to be checked by other tooling.
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"

	Default = XXH64
)

// copyBufferSize bounds memory use while streaming digests, regardless of
// input size.
const copyBufferSize = 4 * 1024 * 1024

// Parse normalizes a user-supplied algorithm name. An empty string selects
// the default.
func Parse(s string) (Algorithm, error) {
	switch s {
	case "":
		return Default, nil
	case "xxh64", "xxhash64":
		return XXH64, nil
	case "md5":
		return MD5, nil
	case "sha256":
		return SHA256, nil
	}
	return "", fmt.Errorf("unknown hash algorithm %q (supported: xxh64, md5, sha256)", s)
}

// New returns a fresh hash state for the given algorithm.
func New(a Algorithm) (hash.Hash, error) {
	switch a {
	case XXH64:
		return xxhash.New(), nil
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	}
	return nil, fmt.Errorf("unknown hash algorithm %q", a)
}

// Sum finalizes a hash state into the hex digest string stored in
// inventories.
func Sum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// HashReader streams r to completion and returns the digest and the number
// of bytes read. Read errors are propagated unchanged.
func HashReader(a Algorithm, r io.Reader) (string, int64, error) {
	h, err := New(a)
	if err != nil {
		return "", 0, err
	}

	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return "", n, err
	}

	return Sum(h), n, nil
}

// HashFile computes the digest of an entire file and returns its size.
func HashFile(a Algorithm, path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	return HashReader(a, f)
}
