package sandbox

import (
	"strconv"
	"strings"
)

const defaultMemoryBytes = 512 << 20

// ParseMemory converts a human memory string ("512MB", "2GB", "64kb")
// into bytes, binary units. Unrecognized units read as MB; an unparsable
// string falls back to 512MB, so a resource limit always exists.
func ParseMemory(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return defaultMemoryBytes
	}

	numEnd := len(s)
	for i, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			numEnd = i
			break
		}
	}
	num, err := strconv.ParseFloat(s[:numEnd], 64)
	if err != nil || num <= 0 {
		return defaultMemoryBytes
	}

	var mult float64
	switch strings.TrimSpace(s[numEnd:]) {
	case "B":
		mult = 1
	case "KB", "K", "KIB":
		mult = 1 << 10
	case "GB", "G", "GIB":
		mult = 1 << 30
	case "TB", "T", "TIB":
		mult = 1 << 40
	default: // MB, M, MIB, and anything unrecognized
		mult = 1 << 20
	}
	return int64(num * mult)
}

// NanoCPUs converts a fractional CPU count to the engine's nano-CPU unit.
func NanoCPUs(cpus float64) int64 {
	if cpus <= 0 {
		cpus = 1
	}
	return int64(cpus * 1e9)
}
