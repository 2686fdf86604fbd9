package similarity

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"

	"github.com/projectlens/go-context-cache/model"
)

// structureDepth bounds how deep the builder looks when hashing the visible
// file structure of a target.
const structureDepth = 2

// manifestNames are the well-known configuration files whose presence makes
// up a target's declared-configuration fingerprint.
var manifestNames = []string{
	"package.json",
	"tsconfig.json",
	"go.mod",
	"go.sum",
	"Cargo.toml",
	"pyproject.toml",
	"requirements.txt",
	"pom.xml",
	"build.gradle",
	"composer.json",
	"Gemfile",
	"Makefile",
	"Dockerfile",
}

// IsManifest reports whether a file name is one of the well-known
// dependency manifests; scan rules watch those with dependency-update
// intent rather than plain file-change intent.
func IsManifest(name string) bool {
	for _, m := range manifestNames {
		if m == name {
			return true
		}
	}
	return false
}

// Builder derives target signatures. The filesystem-observed part is
// memoized per path since tree walks dominate the cost of a comparison.
type Builder struct {
	observed *lru.Cache[string, *observation]
}

type observation struct {
	structureHash     uint64
	configFingerprint uint64
	filePatterns      []string
}

func NewBuilder(cacheSize int) (*Builder, error) {
	c, err := lru.New[string, *observation](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create signature cache: %w", err)
	}
	return &Builder{observed: c}, nil
}

// Build derives the ephemeral comparison key for a target: what the caller
// declared merged with what is observable on disk.
func (b *Builder) Build(target *model.Target) *model.Signature {
	sig := model.NewSignature()
	for _, d := range target.Dependencies {
		sig.Dependencies[d] = struct{}{}
	}
	for _, p := range target.FilePatterns {
		sig.FilePatterns[p] = struct{}{}
	}

	if target.Path == "" {
		return sig
	}

	obs := b.observe(target.Path)
	sig.StructureHash = obs.structureHash
	sig.ConfigFingerprint = obs.configFingerprint
	for _, p := range obs.filePatterns {
		sig.FilePatterns[p] = struct{}{}
	}
	return sig
}

// Forget drops the memoized observation for a path. Called after the path's
// contents are known to have changed.
func (b *Builder) Forget(path string) {
	b.observed.Remove(filepath.Clean(path))
}

func (b *Builder) observe(path string) *observation {
	path = filepath.Clean(path)
	if obs, ok := b.observed.Get(path); ok {
		return obs
	}

	names := listNames(path, structureDepth)
	sort.Strings(names)

	structHasher := xxh3.New()
	for _, n := range names {
		_, _ = structHasher.WriteString(n)
		_, _ = structHasher.Write([]byte{0})
	}

	var patterns []string
	configHasher := xxh3.New()
	for _, m := range manifestNames {
		info, err := os.Stat(filepath.Join(path, m))
		if err != nil {
			continue
		}
		patterns = append(patterns, m)
		_, _ = configHasher.WriteString(fmt.Sprintf("%s:%d", m, info.Size()))
	}

	obs := &observation{
		structureHash:     structHasher.Sum64(),
		configFingerprint: configHasher.Sum64(),
		filePatterns:      patterns,
	}
	b.observed.Add(path, obs)
	return obs
}

// listNames collects path-relative names of visible files and directories
// down to the given depth. Hidden entries are skipped.
func listNames(root string, depth int) []string {
	var names []string
	var walk func(dir, prefix string, left int)
	walk = func(dir, prefix string, left int) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			name := e.Name()
			if len(name) > 0 && name[0] == '.' {
				continue
			}
			rel := filepath.Join(prefix, name)
			names = append(names, rel)
			if e.IsDir() && left > 1 {
				walk(filepath.Join(dir, name), rel, left-1)
			}
		}
	}
	walk(root, "", depth)
	return names
}
