package deps

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// AliasFileName is the per-project alias override file.
const AliasFileName = "ALIASES.toml"

// AliasFile is the parsed form of ALIASES.toml:
//
//	depth = 2
//
//	[aliases]
//	"@/" = "src"
//	"~/" = "src"
type AliasFile struct {
	Aliases map[string]string `toml:"aliases"`
	Depth   int               `toml:"depth,omitempty"`
}

// LoadAliases parses an alias file. A missing file returns nil and no error.
func LoadAliases(filePath string) (*AliasFile, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", AliasFileName, err)
	}

	var af AliasFile
	if err := toml.Unmarshal(data, &af); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", AliasFileName, err)
	}
	if af.Depth < 0 {
		return nil, fmt.Errorf("%s: depth must be >= 0, got %d", AliasFileName, af.Depth)
	}
	return &af, nil
}

// Merge overlays the file onto opts. File aliases replace configured ones
// with the same prefix.
func (af *AliasFile) Merge(opts Options) Options {
	if af == nil {
		return opts
	}
	merged := make(map[string]string)
	base := opts.Aliases
	if base == nil {
		base = DefaultAliases()
	}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range af.Aliases {
		merged[k] = v
	}
	opts.Aliases = merged
	if af.Depth > 0 {
		opts.Depth = af.Depth
	}
	return opts
}
