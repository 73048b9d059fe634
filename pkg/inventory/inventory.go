package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"shard/pkg/hasher"
)

var (
	// ErrNotFound is returned when no inventory file exists at the expected
	// location.
	ErrNotFound = errors.New("inventory not found")

	// ErrCorrupt is returned when an inventory file exists but cannot be
	// parsed or fails structural validation.
	ErrCorrupt = errors.New("inventory corrupt")

	// ErrIdentityMismatch is returned when inventories for different
	// original files are combined.
	ErrIdentityMismatch = errors.New("inventory identity mismatch")
)

// Status of a single chunk within an inventory.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ChunkSpec is the persisted record for one chunk. Hash and ProcessingTime
// are only meaningful once the chunk is completed.
type ChunkSpec struct {
	ChunkID        string  `json:"chunk_id"`
	Status         Status  `json:"status"`
	Size           int64   `json:"size"`
	Hash           string  `json:"hash,omitempty"`
	Offset         int64   `json:"offset"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
}

// ChunkCounters tracks batch progress across invocations.
type ChunkCounters struct {
	TotalProcessed  int `json:"total_processed"`
	ChunksRemaining int `json:"chunks_remaining"`
}

// Inventory is the durable record tying one original file to its chunks.
// The chunking engine is its sole writer; reconstruction only reads it.
type Inventory struct {
	OriginalFilename string                `json:"original_filename"`
	OriginalSize     int64                 `json:"original_size"`
	OriginalHash     string                `json:"original_hash"`
	HashType         hasher.Algorithm      `json:"hash_type"`
	ChunkSize        int64                 `json:"chunk_size"`
	TotalChunks      int                   `json:"total_chunks"`
	CreationTime     time.Time             `json:"creation_time"`
	LastUpdated      time.Time             `json:"last_updated"`
	ChunkStatus      ChunkCounters         `json:"chunk_status"`
	Chunks           map[string]*ChunkSpec `json:"chunks"`
}

// TotalChunksFor computes how many chunks a file of the given size splits
// into. A size that divides evenly produces no trailing empty chunk, and a
// zero-length file produces zero chunks.
func TotalChunksFor(size, chunkSize int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// New builds an inventory for the given original file with every chunk
// pre-populated as pending. Offsets partition [0, size) exactly.
func New(originalName string, size int64, hash string, algo hasher.Algorithm, chunkSize int64) *Inventory {
	total := TotalChunksFor(size, chunkSize)
	now := time.Now()

	inv := &Inventory{
		OriginalFilename: originalName,
		OriginalSize:     size,
		OriginalHash:     hash,
		HashType:         algo,
		ChunkSize:        chunkSize,
		TotalChunks:      total,
		CreationTime:     now,
		LastUpdated:      now,
		ChunkStatus: ChunkCounters{
			TotalProcessed:  0,
			ChunksRemaining: total,
		},
		Chunks: make(map[string]*ChunkSpec, total),
	}

	for i := 1; i <= total; i++ {
		offset := int64(i-1) * chunkSize
		expected := chunkSize
		if size-offset < chunkSize {
			expected = size - offset
		}
		inv.Chunks[key(i)] = &ChunkSpec{
			ChunkID: ChunkFileName(originalName, i, total),
			Status:  StatusPending,
			Size:    expected,
			Offset:  offset,
		}
	}

	return inv
}

func key(index int) string {
	return strconv.Itoa(index)
}

// Spec returns the chunk record for a 1-based index.
func (inv *Inventory) Spec(index int) (*ChunkSpec, bool) {
	spec, ok := inv.Chunks[key(index)]
	return spec, ok
}

// MarkCompleted records a successful chunk write.
func (inv *Inventory) MarkCompleted(index int, size int64, hash string, elapsed time.Duration) {
	spec, ok := inv.Spec(index)
	if !ok {
		return
	}
	spec.Status = StatusCompleted
	spec.Size = size
	spec.Hash = hash
	spec.ProcessingTime = elapsed.Seconds()
	inv.recount()
}

// MarkPending resets a chunk to pending, clearing any previous digest.
// Used before regenerating a chunk so an interruption mid-write leaves the
// record accurate rather than claiming a completed chunk that no longer
// exists intact.
func (inv *Inventory) MarkPending(index int) {
	spec, ok := inv.Spec(index)
	if !ok {
		return
	}
	spec.Status = StatusPending
	spec.Hash = ""
	spec.ProcessingTime = 0
	inv.recount()
}

// MarkFailed records a failed chunk write. Any previous digest is cleared so
// the chunk can never be mistaken for completed.
func (inv *Inventory) MarkFailed(index int) {
	spec, ok := inv.Spec(index)
	if !ok {
		return
	}
	spec.Status = StatusFailed
	spec.Hash = ""
	spec.ProcessingTime = 0
	inv.recount()
}

func (inv *Inventory) recount() {
	completed := 0
	for _, spec := range inv.Chunks {
		if spec.Status == StatusCompleted {
			completed++
		}
	}
	inv.ChunkStatus.TotalProcessed = completed
	inv.ChunkStatus.ChunksRemaining = inv.TotalChunks - completed
	inv.LastUpdated = time.Now()
}

// Indices returns all chunk indices with the given status, ascending.
func (inv *Inventory) Indices(status Status) []int {
	var indices []int
	for k, spec := range inv.Chunks {
		if spec.Status != status {
			continue
		}
		if i, err := strconv.Atoi(k); err == nil {
			indices = append(indices, i)
		}
	}
	sort.Ints(indices)
	return indices
}

// Load reads and validates an inventory file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	if issues := inv.Verify(); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, path, issues[0])
	}

	return &inv, nil
}

// Save writes the inventory atomically: marshal to a temp file in the same
// directory, then rename over the target. A crash mid-write never leaves a
// half-written inventory behind.
func (inv *Inventory) Save(path string) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp inventory: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write inventory: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace inventory: %w", err)
	}

	return nil
}

// Verify checks structural integrity: required fields, sequential chunk
// indices, counter consistency, and completed chunks carrying a digest.
// It returns a list of human-readable issues, empty when the inventory is
// sound.
func (inv *Inventory) Verify() []string {
	var issues []string

	if inv.OriginalFilename == "" {
		issues = append(issues, "missing original_filename")
	}
	if inv.OriginalSize < 0 {
		issues = append(issues, "negative original_size")
	}
	if inv.OriginalHash == "" && inv.OriginalSize > 0 {
		issues = append(issues, "missing original_hash")
	}
	if inv.ChunkSize <= 0 {
		issues = append(issues, "chunk_size must be positive")
	}
	if inv.TotalChunks != TotalChunksFor(inv.OriginalSize, max64(inv.ChunkSize, 1)) {
		issues = append(issues, fmt.Sprintf("total_chunks %d does not match original_size %d at chunk_size %d",
			inv.TotalChunks, inv.OriginalSize, inv.ChunkSize))
	}
	if len(inv.Chunks) != inv.TotalChunks {
		issues = append(issues, fmt.Sprintf("expected %d chunk records, found %d", inv.TotalChunks, len(inv.Chunks)))
	}

	completed := 0
	var sum int64
	for i := 1; i <= inv.TotalChunks; i++ {
		spec, ok := inv.Spec(i)
		if !ok {
			issues = append(issues, fmt.Sprintf("chunk %d missing from inventory", i))
			continue
		}
		if want := int64(i-1) * inv.ChunkSize; spec.Offset != want {
			issues = append(issues, fmt.Sprintf("chunk %d offset %d, expected %d", i, spec.Offset, want))
		}
		if spec.ChunkID == "" {
			issues = append(issues, fmt.Sprintf("chunk %d missing chunk_id", i))
		}
		switch spec.Status {
		case StatusCompleted:
			completed++
			if spec.Hash == "" {
				issues = append(issues, fmt.Sprintf("chunk %d completed without a hash", i))
			}
		case StatusPending, StatusFailed:
		default:
			issues = append(issues, fmt.Sprintf("chunk %d has unknown status %q", i, spec.Status))
		}
		sum += spec.Size
	}

	if len(inv.Chunks) == inv.TotalChunks && sum != inv.OriginalSize {
		issues = append(issues, fmt.Sprintf("chunk sizes sum to %d, original_size is %d", sum, inv.OriginalSize))
	}
	if completed != inv.ChunkStatus.TotalProcessed {
		issues = append(issues, fmt.Sprintf("chunk_status.total_processed is %d, found %d completed chunks",
			inv.ChunkStatus.TotalProcessed, completed))
	}
	if remaining := inv.TotalChunks - completed; remaining != inv.ChunkStatus.ChunksRemaining {
		issues = append(issues, fmt.Sprintf("chunk_status.chunks_remaining is %d, expected %d",
			inv.ChunkStatus.ChunksRemaining, remaining))
	}

	return issues
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// SameIdentity reports whether two inventories describe the same original
// file at the same chunk layout.
func (inv *Inventory) SameIdentity(other *Inventory) bool {
	return inv.OriginalFilename == other.OriginalFilename &&
		inv.OriginalSize == other.OriginalSize &&
		inv.OriginalHash == other.OriginalHash &&
		inv.HashType == other.HashType &&
		inv.ChunkSize == other.ChunkSize
}

// Backup copies the inventory file to a timestamped sibling and returns the
// backup path.
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read inventory for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s.%s.backup", path, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write inventory backup: %w", err)
	}

	return backupPath, nil
}

// Merge combines several partial inventories for the same original file into
// one, keeping every completed chunk record. Inventories describing a
// different original are rejected.
func Merge(paths []string) (*Inventory, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no inventories to merge")
	}

	var base *Inventory
	for _, path := range paths {
		inv, err := Load(path)
		if err != nil {
			return nil, err
		}

		if base == nil {
			base = inv
			continue
		}
		if !base.SameIdentity(inv) {
			return nil, fmt.Errorf("%w: %s", ErrIdentityMismatch, path)
		}

		for k, spec := range inv.Chunks {
			if spec.Status == StatusCompleted {
				base.Chunks[k] = spec
			}
		}
	}

	base.recount()
	return base, nil
}
