package chunker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"shard/pkg/diskspace"
	"shard/pkg/hasher"
	"shard/pkg/inventory"
	"shard/pkg/utils"

	"go.uber.org/zap"
)

var (
	// ErrSourceNotFound is returned when the source path does not exist or
	// is not a regular file.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrInsufficientSpace is returned by the advisory pre-flight space
	// check. The check runs once per invocation and is not a reservation.
	ErrInsufficientSpace = errors.New("insufficient disk space")

	// ErrChunkSizeMismatch is returned when an existing inventory was
	// created with a different chunk size. Chunk size is fixed for the
	// lifetime of an inventory; changing it would invalidate every offset.
	ErrChunkSizeMismatch = errors.New("chunk size mismatch")

	// ErrChunkIndexOutOfRange is returned when a target chunk index falls
	// outside [1, total_chunks].
	ErrChunkIndexOutOfRange = errors.New("chunk index out of range")

	// ErrSourceChanged is returned when the source file's size no longer
	// matches an existing inventory. Proceeding would quietly produce
	// chunks that cannot reconstruct either version of the file.
	ErrSourceChanged = errors.New("source file changed since inventory creation")

	// ErrChunkWriteFailed is returned, alongside the summary, after a batch
	// in which at least one chunk failed. A failure never aborts the batch:
	// the chunk is recorded as failed and the run continues, so one bad
	// chunk cannot block the rest.
	ErrChunkWriteFailed = errors.New("chunk write failed")
)

// SpaceMargin is added on top of the bytes about to be written when probing
// free space.
const SpaceMargin = 64 * utils.MegaByte

// Options controls a single chunking run.
type Options struct {
	// ChunkSize in bytes. Must be positive, and must match the recorded
	// chunk size when an inventory already exists.
	ChunkSize int64

	// OutputDir receives the chunk artifacts. Defaults to the source
	// file's directory.
	OutputDir string

	// InventoryPath overrides the default inventory location
	// (<source_dir>/<name_without_ext>.json).
	InventoryPath string

	// TargetChunk selects exactly one 1-based chunk index to (re)generate.
	// Zero processes every chunk.
	TargetChunk int

	// Algorithm selects the digest algorithm for a new inventory. An
	// existing inventory's recorded algorithm always wins.
	Algorithm hasher.Algorithm
}

// Summary reports the outcome of a chunking run.
type Summary struct {
	OriginalFilename string
	OriginalSize     int64
	OriginalHash     string
	HashType         hasher.Algorithm
	TotalChunks      int
	Processed        int
	Failed           []int
	Remaining        int
	InventoryPath    string
	OutputDir        string
}

// Chunker splits a source file into fixed-size, independently hashed chunk
// artifacts and maintains the inventory describing them. Runs are strictly
// sequential; one invocation at a time per source file.
type Chunker struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Chunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{logger: logger}
}

// Chunk splits sourcePath according to opts. When an inventory for the
// source already exists it is loaded and only its chunk records are
// updated; the whole-file hash is computed once, at inventory creation.
// A batch with failed chunks still returns its summary, together with
// ErrChunkWriteFailed naming the failed indices.
func (c *Chunker) Chunk(sourcePath string, opts Options) (*Summary, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}

	fi, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return nil, fmt.Errorf("failed to stat source: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrSourceNotFound, sourcePath)
	}

	base := filepath.Base(sourcePath)
	sourceDir := filepath.Dir(sourcePath)

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = sourceDir
	}
	invPath := opts.InventoryPath
	if invPath == "" {
		invPath = inventory.PathFor(sourceDir, base)
	}

	inv, err := c.loadOrCreate(sourcePath, base, invPath, fi.Size(), opts)
	if err != nil {
		return nil, err
	}

	indices, err := selectIndices(inv.TotalChunks, opts.TargetChunk)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := c.checkSpace(outputDir, inv, indices); err != nil {
		return nil, err
	}

	// Persist the inventory before writing anything so a crash mid-batch
	// still leaves a recoverable record with pending statuses. Chunks about
	// to be rewritten go back to pending first: their artifacts are stale
	// the moment writing starts.
	for _, i := range indices {
		inv.MarkPending(i)
	}
	if err := inv.Save(invPath); err != nil {
		return nil, err
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	summary := &Summary{
		OriginalFilename: inv.OriginalFilename,
		OriginalSize:     inv.OriginalSize,
		OriginalHash:     inv.OriginalHash,
		HashType:         inv.HashType,
		TotalChunks:      inv.TotalChunks,
		InventoryPath:    invPath,
		OutputDir:        outputDir,
	}

	for _, i := range indices {
		spec, ok := inv.Spec(i)
		if !ok {
			return nil, fmt.Errorf("%w: chunk %d missing from inventory", inventory.ErrCorrupt, i)
		}

		artifact := filepath.Join(outputDir, spec.ChunkID)
		start := time.Now()

		digest, werr := c.writeChunk(src, spec, artifact, inv.HashType)
		elapsed := time.Since(start)

		if werr != nil {
			inv.MarkFailed(i)
			summary.Failed = append(summary.Failed, i)
			// A partial artifact must never pass for a completed chunk.
			os.Remove(artifact)
			c.logger.Error("chunk failed",
				zap.String("chunk_id", spec.ChunkID),
				zap.String("status", string(inventory.StatusFailed)),
				zap.Int64("size", spec.Size),
				zap.Duration("duration", elapsed),
				zap.Error(werr))
		} else {
			inv.MarkCompleted(i, spec.Size, digest, elapsed)
			summary.Processed++
			c.logger.Info("chunk completed",
				zap.String("chunk_id", spec.ChunkID),
				zap.String("status", string(inventory.StatusCompleted)),
				zap.Int64("size", spec.Size),
				zap.Duration("duration", elapsed),
				zap.String("hash", digest))
		}

		// Durable progress after every chunk: a process killed mid-batch
		// resumes from exactly what the inventory last recorded.
		if err := inv.Save(invPath); err != nil {
			return nil, err
		}
	}

	summary.Remaining = inv.ChunkStatus.ChunksRemaining
	c.logger.Info("chunking finished",
		zap.String("file", inv.OriginalFilename),
		zap.Int("processed", summary.Processed),
		zap.Int("failed", len(summary.Failed)),
		zap.Int("remaining", summary.Remaining),
		zap.Int("total", summary.TotalChunks))

	if len(summary.Failed) > 0 {
		return summary, fmt.Errorf("%w: chunks %v", ErrChunkWriteFailed, summary.Failed)
	}

	return summary, nil
}

func (c *Chunker) loadOrCreate(sourcePath, base, invPath string, size int64, opts Options) (*inventory.Inventory, error) {
	inv, err := inventory.Load(invPath)
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		algo := opts.Algorithm
		if algo == "" {
			algo = hasher.Default
		}

		c.logger.Info("hashing source file",
			zap.String("file", base),
			zap.String("algorithm", string(algo)))
		start := time.Now()
		digest, hashedSize, err := hasher.HashFile(algo, sourcePath)
		if err != nil {
			return nil, fmt.Errorf("failed to hash source: %w", err)
		}
		c.logger.Info("source hashed",
			zap.String("file", base),
			zap.String("hash", digest),
			zap.Int64("size", hashedSize),
			zap.Duration("duration", time.Since(start)))

		return inventory.New(base, hashedSize, digest, algo, opts.ChunkSize), nil

	case err != nil:
		return nil, err

	default:
		if inv.ChunkSize != opts.ChunkSize {
			return nil, fmt.Errorf("%w: inventory records %d bytes, %d requested",
				ErrChunkSizeMismatch, inv.ChunkSize, opts.ChunkSize)
		}
		if inv.OriginalSize != size {
			return nil, fmt.Errorf("%w: inventory records %d bytes, source is %d",
				ErrSourceChanged, inv.OriginalSize, size)
		}
		c.logger.Info("loaded existing inventory",
			zap.String("path", invPath),
			zap.Int("total_chunks", inv.TotalChunks),
			zap.Int("completed", inv.ChunkStatus.TotalProcessed))
		return inv, nil
	}
}

func selectIndices(total, target int) ([]int, error) {
	if target != 0 {
		if target < 1 || target > total {
			return nil, fmt.Errorf("%w: chunk %d not in [1, %d]", ErrChunkIndexOutOfRange, target, total)
		}
		return []int{target}, nil
	}

	indices := make([]int, 0, total)
	for i := 1; i <= total; i++ {
		indices = append(indices, i)
	}
	return indices, nil
}

func (c *Chunker) checkSpace(outputDir string, inv *inventory.Inventory, indices []int) error {
	var required int64
	for _, i := range indices {
		if spec, ok := inv.Spec(i); ok {
			required += spec.Size
		}
	}
	required += SpaceMargin

	available, ok, err := diskspace.Check(outputDir, required)
	if err != nil {
		// Advisory only: an unprobeable filesystem falls through to real
		// write errors.
		c.logger.Warn("disk space probe failed", zap.String("dir", outputDir), zap.Error(err))
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: %s available in %s, %s required",
			ErrInsufficientSpace, utils.FormatDataSize(available), outputDir, utils.FormatDataSize(required))
	}

	c.logger.Debug("disk space ok",
		zap.String("dir", outputDir),
		zap.Int64("available", available),
		zap.Int64("required", required))
	return nil
}

// writeChunk streams exactly spec.Size bytes from the source at spec.Offset
// into the artifact, hashing in the same pass.
func (c *Chunker) writeChunk(src *os.File, spec *inventory.ChunkSpec, artifact string, algo hasher.Algorithm) (string, error) {
	h, err := hasher.New(algo)
	if err != nil {
		return "", err
	}

	out, err := os.Create(artifact)
	if err != nil {
		return "", err
	}

	section := io.NewSectionReader(src, spec.Offset, spec.Size)
	n, err := io.Copy(io.MultiWriter(out, h), section)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if n != spec.Size {
		return "", fmt.Errorf("short read: got %d bytes, expected %d", n, spec.Size)
	}

	return hasher.Sum(h), nil
}
