package hasher

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Algorithm
		wantErr  bool
	}{
		{"", Default, false},
		{"xxh64", XXH64, false},
		{"xxhash64", XXH64, false},
		{"md5", MD5, false},
		{"sha256", SHA256, false},
		{"crc32", "", true},
		{"XXH64", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestKnownDigests(t *testing.T) {
	tests := []struct {
		name     string
		algo     Algorithm
		input    string
		expected string
	}{
		{"xxh64 empty", XXH64, "", "ef46db3751d8e999"},
		{"md5 empty", MD5, "", "d41d8cd98f00b204e9800998ecf8427e"},
		{"md5 abc", MD5, "abc", "900150983cd24fb0d6963f7d28e17f72"},
		{"sha256 empty", SHA256, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"sha256 abc", SHA256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest, n, err := HashReader(tt.algo, bytes.NewReader([]byte(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, digest)
			assert.Equal(t, int64(len(tt.input)), n)
		})
	}
}

func TestHashFileMatchesHashReader(t *testing.T) {
	data := make([]byte, 3*1024*1024+17)
	_, err := rand.Read(data)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))

	for _, algo := range []Algorithm{XXH64, MD5, SHA256} {
		t.Run(string(algo), func(t *testing.T) {
			fromFile, size, err := HashFile(algo, path)
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), size)

			fromReader, _, err := HashReader(algo, bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, fromReader, fromFile)
		})
	}
}

func TestHashFileMissing(t *testing.T) {
	_, _, err := HashFile(XXH64, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
