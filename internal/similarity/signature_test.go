package similarity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projectlens/go-context-cache/model"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestBuildMergesDeclaredAndObserved(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"name":"a"}`)
	writeFile(t, dir, "main.ts", "export {}")

	b, err := NewBuilder(16)
	require.NoError(t, err)

	sig := b.Build(&model.Target{
		Path:         dir,
		Dependencies: []string{"react"},
		FilePatterns: []string{"tsconfig.json"},
	})

	require.Contains(t, sig.Dependencies, "react")
	require.Contains(t, sig.FilePatterns, "tsconfig.json")
	require.Contains(t, sig.FilePatterns, "package.json", "observed manifest merged in")
	require.NotZero(t, sig.StructureHash)
	require.NotZero(t, sig.ConfigFingerprint)
}

func TestBuildMemoizesUntilForget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module a")

	b, err := NewBuilder(16)
	require.NoError(t, err)

	target := &model.Target{Path: dir}
	first := b.Build(target)

	// New files are invisible while the observation is memoized.
	writeFile(t, dir, "extra.go", "package a")
	require.Equal(t, first.StructureHash, b.Build(target).StructureHash)

	b.Forget(dir)
	require.NotEqual(t, first.StructureHash, b.Build(target).StructureHash)
}

func TestBuildSkipsHiddenEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module a")

	b, err := NewBuilder(16)
	require.NoError(t, err)
	before := b.Build(&model.Target{Path: dir}).StructureHash

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	writeFile(t, dir, ".env", "SECRET=1")

	b.Forget(dir)
	require.Equal(t, before, b.Build(&model.Target{Path: dir}).StructureHash)
}

func TestBuildWithoutPathUsesDeclarationsOnly(t *testing.T) {
	b, err := NewBuilder(16)
	require.NoError(t, err)

	sig := b.Build(&model.Target{Dependencies: []string{"gin"}})
	require.Contains(t, sig.Dependencies, "gin")
	require.Zero(t, sig.StructureHash)
}

func TestIsManifest(t *testing.T) {
	require.True(t, IsManifest("package.json"))
	require.True(t, IsManifest("go.mod"))
	require.False(t, IsManifest("main.go"))
}
