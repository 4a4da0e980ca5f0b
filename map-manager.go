package tmxmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrMapManagerNotLoaded = errors.New("tmx: map manager not loaded")
	ErrMapNotFound         = errors.New("tmx: map not found")
)

// MapManager loads every map below a directory. Maps are keyed by their
// path relative to that directory, without extension and with forward
// slashes ("dungeon/level1").
type MapManager struct {
	baseDir    string
	extensions []string
	strict     bool
	opts       []Option

	Maps        map[string]*Map
	Diagnostics map[string][]Diagnostic
	Errors      map[string]error
	IsLoaded    bool
}

func (mm *MapManager) GetMapByName(name string) (*Map, error) {
	if !mm.IsLoaded {
		return nil, ErrMapManagerNotLoaded
	}

	if m, ok := mm.Maps[name]; ok {
		return m, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrMapNotFound, name)
}

// Names returns the loaded map names, sorted.
func (mm *MapManager) Names() []string {
	names := make([]string, 0, len(mm.Maps))
	for name := range mm.Maps {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func NewMapManager(baseDir string, opts ...Option) *MapManager {
	return NewMapManagerFromConfig(&Config{BaseDir: baseDir}, opts...)
}

func NewMapManagerFromConfig(cfg *Config, opts ...Option) *MapManager {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = []string{".tmx"}
	}
	mm := &MapManager{
		baseDir:     cfg.BaseDir,
		extensions:  exts,
		strict:      cfg.Strict,
		opts:        append(cfg.options(), opts...),
		Maps:        make(map[string]*Map),
		Diagnostics: make(map[string][]Diagnostic),
		Errors:      make(map[string]error),
		IsLoaded:    false,
	}

	LoadMaps(mm)

	return mm
}

// LoadMaps loads every map file below the manager's base directory. A map
// that fails to load is recorded in Errors and left out of Maps.
func LoadMaps(mm *MapManager) {
	tmxFiles, err := findTMXFiles(mm.baseDir, mm.extensions)
	if err != nil {
		mm.Errors[mm.baseDir] = err
		return
	}

	for _, tmxFile := range tmxFiles {
		name := mapName(mm.baseDir, tmxFile)

		res, err := Load(tmxFile, mm.opts...)
		if err != nil {
			mm.Errors[name] = err
			continue
		}
		if len(res.Diagnostics) > 0 {
			mm.Diagnostics[name] = res.Diagnostics
			if mm.strict {
				mm.Errors[name] = res.Err()
				continue
			}
		}

		mm.Maps[name] = res.Map
	}

	mm.IsLoaded = true
}

func mapName(baseDir, file string) string {
	rel, err := filepath.Rel(baseDir, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	return filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
}

func findTMXFiles(dir string, exts []string) ([]string, error) {
	var tmxFiles []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && slices.Contains(exts, filepath.Ext(path)) {
			tmxFiles = append(tmxFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tmxFiles, nil
}
