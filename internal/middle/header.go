package middle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// header is the small version-tagged manifest written once at store
// creation (§6.4); New does not read an existing header back. It carries no resumability
// guarantee — a crash leaves the on-disk state undefined and a fresh
// store must be created.
type header struct {
	Version   int    `toml:"version"`
	Dialect   string `toml:"dialect"`
	Mode      Mode   `toml:"mode"`
	StartedAt string `toml:"started_at"`
}

const headerVersion = 1
const headerFileName = "middle.toml"

func writeHeader(dir string, mode Mode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	h := header{Version: headerVersion, Dialect: "postgresql", Mode: mode}
	f, err := os.Create(filepath.Join(dir, headerFileName))
	if err != nil {
		return fmt.Errorf("create header: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(h); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	return nil
}

// readHeader loads the manifest written by writeHeader, for tooling that
// needs to inspect a store without opening it for writes.
func readHeader(dir string) (header, error) {
	var h header
	_, err := toml.DecodeFile(filepath.Join(dir, headerFileName), &h)
	if err != nil {
		return header{}, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
