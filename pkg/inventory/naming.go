package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Chunk artifacts are named <original_basename>.chunk<NNN>.bin with the
// index zero-padded to at least three digits, wider when total_chunks needs
// more. The inventory lives beside them as <name_without_ext>.json. Keeping
// the convention in one place lets reconstruction resolve every sibling
// path from a single sample chunk file.

const minIndexWidth = 3

var chunkNamePattern = regexp.MustCompile(`^(.+)\.chunk(\d+)\.bin$`)

// indexWidth returns the zero-pad width for a chunk count.
func indexWidth(total int) int {
	width := len(strconv.Itoa(total))
	if width < minIndexWidth {
		width = minIndexWidth
	}
	return width
}

// ChunkFileName builds the artifact name for a 1-based chunk index.
func ChunkFileName(originalName string, index, total int) string {
	return fmt.Sprintf("%s.chunk%0*d.bin", originalName, indexWidth(total), index)
}

// ParseChunkFileName extracts the original file name and chunk index from an
// artifact name. ok is false when the name does not follow the convention.
func ParseChunkFileName(name string) (original string, index int, ok bool) {
	m := chunkNamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", 0, false
	}
	index, err := strconv.Atoi(m[2])
	if err != nil || index < 1 {
		return "", 0, false
	}
	return m[1], index, true
}

// FileName returns the inventory file name for an original file name:
// the extension is replaced with .json.
func FileName(originalName string) string {
	return strings.TrimSuffix(originalName, filepath.Ext(originalName)) + ".json"
}

// PathFor returns the inventory path beside the given directory for an
// original file name.
func PathFor(dir, originalName string) string {
	return filepath.Join(dir, FileName(originalName))
}

// Locate resolves and loads the inventory describing the file a chunk
// artifact belongs to. The name derived from the chunk file is tried first;
// failing that, the newest sibling .json that parses as an inventory for
// the same original wins.
func Locate(chunkPath string) (string, *Inventory, error) {
	dir := filepath.Dir(chunkPath)

	original, _, parsed := ParseChunkFileName(chunkPath)
	if parsed {
		path := PathFor(dir, original)
		if inv, err := Load(path); err == nil {
			if inv.OriginalFilename == original {
				return path, inv, nil
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to scan %s for inventories: %w", dir, err)
	}

	var (
		bestPath string
		bestInv  *Inventory
	)
	var bestMod int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		inv, err := Load(path)
		if err != nil {
			continue
		}
		if parsed && inv.OriginalFilename != original {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if bestInv == nil || info.ModTime().UnixNano() > bestMod {
			bestPath, bestInv, bestMod = path, inv, info.ModTime().UnixNano()
		}
	}

	if bestInv == nil {
		return "", nil, fmt.Errorf("%w: no inventory beside %s", ErrNotFound, chunkPath)
	}
	return bestPath, bestInv, nil
}
