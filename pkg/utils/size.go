package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseDataSize parses human-friendly data sizes like "1000MB", "1.5GB",
// "512KB" and returns the size in bytes. All units are binary (1024-based):
// chunk sizing has always treated 1 MB as 1048576 bytes, and inventory
// offset math depends on that. Supported units: B, KB/K/KiB, MB/M/MiB,
// GB/G/GiB, TB/T/TiB, PB/P/PiB. A bare number is taken as bytes.
func ParseDataSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(sizeStr)
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Check if it's just a number (bytes)
	if val, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
		return val, nil
	}

	re := regexp.MustCompile(`^([\d.]+)\s*([A-Za-z]+)$`)
	matches := re.FindStringSubmatch(sizeStr)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid size format: %s (expected format like '1000MB', '512KB', '1.5GB')", sizeStr)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %s", matches[1])
	}

	unit := strings.ToUpper(matches[2])
	multiplier := getMultiplier(unit)
	if multiplier == 0 {
		return 0, fmt.Errorf("unknown unit: %s (supported: B, KB, MB, GB, TB, PB)", matches[2])
	}

	bytes := int64(value * float64(multiplier))
	if bytes < 0 {
		return 0, fmt.Errorf("size overflow or negative value")
	}

	return bytes, nil
}

// FormatDataSize formats bytes into human-readable format
func FormatDataSize(bytes int64) string {
	if bytes < 0 {
		return "invalid"
	}

	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	exp := 0
	div := int64(unit)

	for n := bytes / unit; n >= unit && exp < len(units)-2; n /= unit {
		div *= unit
		exp++
	}
	exp++ // Adjust for the initial division

	value := float64(bytes) / float64(div)

	// Format with appropriate decimal places
	if value == float64(int64(value)) {
		return fmt.Sprintf("%.0f %s", value, units[exp])
	} else if value*10 == float64(int64(value*10)) {
		return fmt.Sprintf("%.1f %s", value, units[exp])
	}
	return fmt.Sprintf("%.2f %s", value, units[exp])
}

// getMultiplier returns the byte multiplier for a given unit
func getMultiplier(unit string) int64 {
	switch unit {
	case "B", "BYTE", "BYTES":
		return Byte
	case "K", "KB", "KIB":
		return KiloByte
	case "M", "MB", "MIB":
		return MegaByte
	case "G", "GB", "GIB":
		return GigaByte
	case "T", "TB", "TIB":
		return TeraByte
	case "P", "PB", "PIB":
		return PetaByte
	default:
		return 0
	}
}

// Common size constants for convenience
const (
	Byte     int64 = 1
	KiloByte int64 = 1024
	MegaByte int64 = 1024 * 1024
	GigaByte int64 = 1024 * 1024 * 1024
	TeraByte int64 = 1024 * 1024 * 1024 * 1024
	PetaByte int64 = 1024 * 1024 * 1024 * 1024 * 1024
)

// ParseDataSizeWithDefault parses a size string and returns default if empty or invalid
func ParseDataSizeWithDefault(sizeStr string, defaultSize int64) int64 {
	if sizeStr == "" {
		return defaultSize
	}

	size, err := ParseDataSize(sizeStr)
	if err != nil {
		return defaultSize
	}

	return size
}
