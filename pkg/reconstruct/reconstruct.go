package reconstruct

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"shard/pkg/hasher"
	"shard/pkg/inventory"

	"go.uber.org/zap"
)

var (
	// ErrHashMismatch is returned when the rebuilt file's whole-file digest
	// disagrees with the inventory. The output file is kept: the check is a
	// post-hoc integrity signal, not a preventer of writing.
	ErrHashMismatch = errors.New("hash verification failed")

	// ErrSizeMismatch is returned when the rebuilt file's byte count
	// disagrees with the recorded original size.
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrOutputExists is returned rather than overwriting a file at the
	// reconstruction target path.
	ErrOutputExists = errors.New("output file already exists")
)

// Problem describes one chunk blocking reconstruction.
type Problem struct {
	Index  int
	ID     string
	Reason string
}

// BlockedError reports every chunk that is missing or invalid, so an
// operator can regenerate all of them in one pass instead of discovering
// them one at a time.
type BlockedError struct {
	Problems []Problem
}

func (e *BlockedError) Error() string {
	ids := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		ids[i] = fmt.Sprintf("%s (%s)", p.ID, p.Reason)
	}
	return fmt.Sprintf("reconstruction blocked: %d chunks missing or invalid: %s",
		len(e.Problems), strings.Join(ids, ", "))
}

// ChunkRef is one chunk in a reconstruction plan, with its artifact path
// resolved.
type ChunkRef struct {
	Index int
	ID    string
	Path  string
	Size  int64
	Hash  string
}

// Plan is the pre-flight view of a reconstruction: the ordered chunks to
// concatenate and every problem found. It is computed per invocation and
// never persisted.
type Plan struct {
	InventoryPath string
	Inventory     *inventory.Inventory
	ChunksDir     string
	Chunks        []ChunkRef
	Problems      []Problem
}

// Complete reports whether every required chunk is present and valid.
func (p *Plan) Complete() bool {
	return len(p.Problems) == 0
}

// Result reports a finished reconstruction.
type Result struct {
	OutputPath   string
	BytesWritten int64
	HashVerified bool
}

// Reconstructor rebuilds an original file from its chunk artifacts. It only
// reads the inventory; the chunking engine remains its sole writer.
type Reconstructor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{logger: logger}
}

// Plan locates the inventory from any one chunk artifact path and checks
// every chunk: recorded as completed, artifact present, size correct, and
// (validate) digest matching. All failures are collected, not just the
// first.
func (r *Reconstructor) Plan(anyChunkPath string, validate bool) (*Plan, error) {
	invPath, inv, err := inventory.Locate(anyChunkPath)
	if err != nil {
		return nil, err
	}
	return r.planFrom(invPath, inv, filepath.Dir(anyChunkPath), validate)
}

// PlanInventory builds a plan directly from an inventory file, resolving
// artifacts beside it. Used for auditing without a sample chunk.
func (r *Reconstructor) PlanInventory(invPath string, validate bool) (*Plan, error) {
	inv, err := inventory.Load(invPath)
	if err != nil {
		return nil, err
	}
	return r.planFrom(invPath, inv, filepath.Dir(invPath), validate)
}

func (r *Reconstructor) planFrom(invPath string, inv *inventory.Inventory, chunksDir string, validate bool) (*Plan, error) {
	plan := &Plan{
		InventoryPath: invPath,
		Inventory:     inv,
		ChunksDir:     chunksDir,
	}

	for i := 1; i <= inv.TotalChunks; i++ {
		spec, ok := inv.Spec(i)
		if !ok {
			plan.Problems = append(plan.Problems, Problem{
				Index:  i,
				ID:     inventory.ChunkFileName(inv.OriginalFilename, i, inv.TotalChunks),
				Reason: "not recorded in inventory",
			})
			continue
		}

		ref := ChunkRef{
			Index: i,
			ID:    spec.ChunkID,
			Path:  filepath.Join(chunksDir, spec.ChunkID),
			Size:  spec.Size,
			Hash:  spec.Hash,
		}

		if spec.Status != inventory.StatusCompleted {
			plan.Problems = append(plan.Problems, Problem{i, spec.ChunkID, fmt.Sprintf("status %s", spec.Status)})
			continue
		}

		fi, err := os.Stat(ref.Path)
		if err != nil {
			plan.Problems = append(plan.Problems, Problem{i, spec.ChunkID, "artifact missing"})
			continue
		}
		if fi.Size() != spec.Size {
			plan.Problems = append(plan.Problems, Problem{i, spec.ChunkID,
				fmt.Sprintf("size mismatch: expected %d, got %d", spec.Size, fi.Size())})
			continue
		}

		if validate {
			digest, _, err := hasher.HashFile(inv.HashType, ref.Path)
			if err != nil {
				plan.Problems = append(plan.Problems, Problem{i, spec.ChunkID, fmt.Sprintf("unreadable: %v", err)})
				continue
			}
			if digest != spec.Hash {
				plan.Problems = append(plan.Problems, Problem{i, spec.ChunkID,
					fmt.Sprintf("hash mismatch: expected %s, got %s", spec.Hash, digest)})
				continue
			}
		}

		plan.Chunks = append(plan.Chunks, ref)
	}

	return plan, nil
}

// Reconstruct rebuilds the original file into outputDir (current directory
// when empty). With validate, every chunk digest is checked pre-flight and
// the whole-file digest is checked after writing; without it, both hash
// passes are skipped and only sizes are enforced.
func (r *Reconstructor) Reconstruct(anyChunkPath, outputDir string, validate bool) (*Result, error) {
	plan, err := r.Plan(anyChunkPath, validate)
	if err != nil {
		return nil, err
	}
	return r.build(plan, outputDir, validate)
}

// ReconstructFromInventory rebuilds directly from an inventory file, with
// artifacts resolved beside it. Covers the zero-chunk case, where no
// artifact exists to point at.
func (r *Reconstructor) ReconstructFromInventory(invPath, outputDir string, validate bool) (*Result, error) {
	plan, err := r.PlanInventory(invPath, validate)
	if err != nil {
		return nil, err
	}
	return r.build(plan, outputDir, validate)
}

func (r *Reconstructor) build(plan *Plan, outputDir string, validate bool) (*Result, error) {
	inv := plan.Inventory
	r.logger.Info("reconstruction plan ready",
		zap.String("file", inv.OriginalFilename),
		zap.Int("total_chunks", inv.TotalChunks),
		zap.Int("problems", len(plan.Problems)),
		zap.Bool("validate", validate))

	if !plan.Complete() {
		return nil, &BlockedError{Problems: plan.Problems}
	}

	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(outputDir, inv.OriginalFilename)
	if _, err := os.Stat(outputPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrOutputExists, outputPath)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	var whole io.Writer = out
	var wholeHash = func() string { return "" }
	if validate {
		h, err := hasher.New(inv.HashType)
		if err != nil {
			out.Close()
			return nil, err
		}
		whole = io.MultiWriter(out, h)
		wholeHash = func() string { return hasher.Sum(h) }
	}

	var written int64
	for _, ref := range plan.Chunks {
		n, err := appendChunk(whole, ref.Path)
		written += n
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("failed to append %s: %w", ref.ID, err)
		}
		r.logger.Debug("chunk appended",
			zap.String("chunk_id", ref.ID),
			zap.Int64("size", n),
			zap.Int64("written", written))
	}

	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize output file: %w", err)
	}

	result := &Result{OutputPath: outputPath, BytesWritten: written}

	if written != inv.OriginalSize {
		return result, fmt.Errorf("%w: expected %d bytes, wrote %d", ErrSizeMismatch, inv.OriginalSize, written)
	}

	if validate {
		digest := wholeHash()
		if digest != inv.OriginalHash {
			return result, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, inv.OriginalHash, digest)
		}
		result.HashVerified = true
	}

	r.logger.Info("reconstruction complete",
		zap.String("output", outputPath),
		zap.Int64("bytes", written),
		zap.Bool("hash_verified", result.HashVerified))

	return result, nil
}

func appendChunk(dst io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(dst, f)
}
