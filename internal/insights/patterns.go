package insights

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/vshop/insights/internal/models"
	"gopkg.in/yaml.v3"
)

// Pattern maps attribute names or ids matching Regexp onto Key.
type Pattern struct {
	Key    models.AttributeKey
	Regexp *regexp.Regexp
}

type patternEntry struct {
	Key     string `yaml:"key"`
	Pattern string `yaml:"pattern"`
}

type patternFile struct {
	Patterns []patternEntry `yaml:"patterns"`
}

// Order matters: an attribute is assigned to the first entry that matches it.
var defaultPatternEntries = []patternEntry{
	{Key: "battery", Pattern: `battery|batería|capacidad.*batería`},
	{Key: "camera", Pattern: `camera|cámara|megapixel|mp.*cámara`},
	{Key: "ram", Pattern: `^ram$|memoria.*ram|memory`},
	{Key: "storage", Pattern: `storage|almacenamiento|internal.*memory|memoria.*interna`},
	{Key: "processor", Pattern: `processor|procesador|cpu|chipset|chip`},
	{Key: "screen", Pattern: `screen|pantalla|display|resolución`},
}

var defaultPatterns = mustCompilePatterns(defaultPatternEntries)

// DefaultPatterns returns a copy of the built-in table.
func DefaultPatterns() []Pattern {
	out := make([]Pattern, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}

// LoadPatterns reads a YAML pattern table:
//
//	patterns:
//	  - key: battery
//	    pattern: "battery|batería"
//
// Matching is always case-insensitive.
func LoadPatterns(r io.Reader) ([]Pattern, error) {
	var file patternFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("pattern file is empty")
		}
		return nil, fmt.Errorf("failed to decode pattern file: %w", err)
	}
	if len(file.Patterns) == 0 {
		return nil, errors.New("pattern file defines no patterns")
	}
	return compilePatterns(file.Patterns)
}

func LoadPatternsFile(path string) ([]Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern file: %w", err)
	}
	defer f.Close()

	patterns, err := LoadPatterns(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return patterns, nil
}

func compilePatterns(entries []patternEntry) ([]Pattern, error) {
	patterns := make([]Pattern, 0, len(entries))
	for i, entry := range entries {
		key := models.AttributeKey(strings.ToLower(strings.TrimSpace(entry.Key)))
		if !key.Valid() {
			return nil, fmt.Errorf("pattern %d: unknown attribute key %q", i, entry.Key)
		}
		if strings.TrimSpace(entry.Pattern) == "" {
			return nil, fmt.Errorf("pattern %d: empty expression for %s", i, key)
		}

		re, err := regexp.Compile("(?i)" + entry.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %d (%s): %w", i, key, err)
		}
		patterns = append(patterns, Pattern{Key: key, Regexp: re})
	}
	return patterns, nil
}

func mustCompilePatterns(entries []patternEntry) []Pattern {
	patterns, err := compilePatterns(entries)
	if err != nil {
		panic(err)
	}
	return patterns
}
