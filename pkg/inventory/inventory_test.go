package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shard/pkg/hasher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalChunksFor(t *testing.T) {
	tests := []struct {
		name      string
		size      int64
		chunkSize int64
		expected  int
	}{
		{"zero-length file", 0, 1024, 0},
		{"smaller than one chunk", 100, 1024, 1},
		{"exact multiple has no empty trailing chunk", 4096, 1024, 4},
		{"one byte over", 4097, 1024, 5},
		{"single byte", 1, 1024, 1},
		{"large file at 1000MiB chunks", 12180089987, 1000 * 1024 * 1024, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TotalChunksFor(tt.size, tt.chunkSize))
		})
	}
}

func TestNewPartitionsOriginal(t *testing.T) {
	sizes := []int64{0, 1, 1023, 1024, 1025, 10*1024 + 7}
	for _, size := range sizes {
		inv := New("data.tar", size, "abc123", hasher.XXH64, 1024)
		require.Equal(t, TotalChunksFor(size, 1024), inv.TotalChunks)

		var sum int64
		var next int64
		for i := 1; i <= inv.TotalChunks; i++ {
			spec, ok := inv.Spec(i)
			require.True(t, ok)
			assert.Equal(t, next, spec.Offset, "offsets must be contiguous")
			assert.Equal(t, StatusPending, spec.Status)
			assert.Positive(t, spec.Size)
			next += spec.Size
			sum += spec.Size
		}
		assert.Equal(t, size, sum, "chunk sizes must sum to the original size")
	}
}

func TestMarkCompletedAndFailedCounters(t *testing.T) {
	inv := New("data.tar", 3000, "abc123", hasher.XXH64, 1024)
	require.Equal(t, 3, inv.TotalChunks)
	before := inv.LastUpdated

	time.Sleep(time.Millisecond)
	inv.MarkCompleted(1, 1024, "h1", 50*time.Millisecond)
	inv.MarkCompleted(2, 1024, "h2", 40*time.Millisecond)
	inv.MarkFailed(3)

	assert.Equal(t, 2, inv.ChunkStatus.TotalProcessed)
	assert.Equal(t, 1, inv.ChunkStatus.ChunksRemaining)
	assert.True(t, inv.LastUpdated.After(before))

	spec, _ := inv.Spec(3)
	assert.Equal(t, StatusFailed, spec.Status)
	assert.Empty(t, spec.Hash)

	assert.Equal(t, []int{1, 2}, inv.Indices(StatusCompleted))
	assert.Equal(t, []int{3}, inv.Indices(StatusFailed))
	assert.Empty(t, inv.Indices(StatusPending))

	// Regenerating a failed chunk repairs the counters.
	inv.MarkCompleted(3, 952, "h3", 10*time.Millisecond)
	assert.Equal(t, 3, inv.ChunkStatus.TotalProcessed)
	assert.Equal(t, 0, inv.ChunkStatus.ChunksRemaining)
}

func TestMarkPendingClearsDigest(t *testing.T) {
	inv := New("data.tar", 3000, "abc123", hasher.XXH64, 1024)
	inv.MarkCompleted(2, 1024, "h2", 40*time.Millisecond)
	require.Equal(t, 1, inv.ChunkStatus.TotalProcessed)

	inv.MarkPending(2)

	spec, _ := inv.Spec(2)
	assert.Equal(t, StatusPending, spec.Status)
	assert.Empty(t, spec.Hash)
	assert.Zero(t, spec.ProcessingTime)
	assert.Equal(t, 0, inv.ChunkStatus.TotalProcessed)
	assert.Equal(t, 3, inv.ChunkStatus.ChunksRemaining)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	inv := New("data.tar", 2500, "deadbeef", hasher.SHA256, 1024)
	inv.MarkCompleted(1, 1024, "h1", 25*time.Millisecond)
	require.NoError(t, inv.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, inv.OriginalFilename, loaded.OriginalFilename)
	assert.Equal(t, inv.OriginalSize, loaded.OriginalSize)
	assert.Equal(t, inv.OriginalHash, loaded.OriginalHash)
	assert.Equal(t, inv.HashType, loaded.HashType)
	assert.Equal(t, inv.ChunkSize, loaded.ChunkSize)
	assert.Equal(t, inv.TotalChunks, loaded.TotalChunks)
	assert.Equal(t, inv.ChunkStatus, loaded.ChunkStatus)

	spec, ok := loaded.Spec(1)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, spec.Status)
	assert.Equal(t, "h1", spec.Hash)
	assert.InDelta(t, 0.025, spec.ProcessingTime, 0.001)

	// Atomic save leaves no temp files behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()

	garbled := filepath.Join(dir, "garbled.json")
	require.NoError(t, os.WriteFile(garbled, []byte("{not json"), 0644))
	_, err := Load(garbled)
	assert.ErrorIs(t, err, ErrCorrupt)

	// Valid JSON but structurally broken.
	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"original_filename":""}`), 0644))
	_, err = Load(empty)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestVerifyFlagsCounterDrift(t *testing.T) {
	inv := New("data.tar", 2048, "deadbeef", hasher.XXH64, 1024)
	inv.MarkCompleted(1, 1024, "h1", time.Millisecond)
	require.Empty(t, inv.Verify())

	inv.ChunkStatus.TotalProcessed = 2
	issues := inv.Verify()
	require.NotEmpty(t, issues)
	assert.Contains(t, strings.Join(issues, "; "), "total_processed")
}

func TestVerifyFlagsCompletedWithoutHash(t *testing.T) {
	inv := New("data.tar", 1024, "deadbeef", hasher.XXH64, 1024)
	spec, _ := inv.Spec(1)
	spec.Status = StatusCompleted
	inv.ChunkStatus.TotalProcessed = 1
	inv.ChunkStatus.ChunksRemaining = 0

	issues := inv.Verify()
	require.NotEmpty(t, issues)
	assert.Contains(t, strings.Join(issues, "; "), "without a hash")
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	inv := New("data.tar", 100, "abc", hasher.XXH64, 1024)
	require.NoError(t, inv.Save(path))

	backupPath, err := Backup(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(backupPath, path+"."))
	assert.True(t, strings.HasSuffix(backupPath, ".backup"))

	original, err := os.ReadFile(path)
	require.NoError(t, err)
	copied, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, original, copied)
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()

	a := New("data.tar", 3000, "abc", hasher.XXH64, 1024)
	a.MarkCompleted(1, 1024, "h1", time.Millisecond)
	pathA := filepath.Join(dir, "a.json")
	require.NoError(t, a.Save(pathA))

	b := New("data.tar", 3000, "abc", hasher.XXH64, 1024)
	b.MarkCompleted(3, 952, "h3", time.Millisecond)
	pathB := filepath.Join(dir, "b.json")
	require.NoError(t, b.Save(pathB))

	merged, err := Merge([]string{pathA, pathB})
	require.NoError(t, err)
	assert.Equal(t, 2, merged.ChunkStatus.TotalProcessed)
	assert.Equal(t, 1, merged.ChunkStatus.ChunksRemaining)
	assert.Equal(t, []int{1, 3}, merged.Indices(StatusCompleted))
}

func TestMergeRejectsDifferentOriginals(t *testing.T) {
	dir := t.TempDir()

	a := New("data.tar", 3000, "abc", hasher.XXH64, 1024)
	pathA := filepath.Join(dir, "a.json")
	require.NoError(t, a.Save(pathA))

	b := New("other.tar", 4000, "def", hasher.XXH64, 1024)
	pathB := filepath.Join(dir, "b.json")
	require.NoError(t, b.Save(pathB))

	_, err := Merge([]string{pathA, pathB})
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}
