package toolchain

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CacheFile is the name of the probe cache inside the cache directory.
const CacheFile = "toolchain.json"

// SaveCache writes loc to dir so a later build can skip the probe.
func SaveCache(dir string, loc *Location) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	data, err := json.MarshalIndent(loc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding toolchain: %w", err)
	}
	path := filepath.Join(dir, CacheFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// LoadCache reads the Location saved by SaveCache. A missing cache
// returns an error wrapping fs.ErrNotExist.
func LoadCache(dir string) (*Location, error) {
	path := filepath.Join(dir, CacheFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var loc Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if loc.Executable == "" {
		return nil, fmt.Errorf("%s: no executable recorded", path)
	}
	return &loc, nil
}
