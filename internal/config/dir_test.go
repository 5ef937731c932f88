package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUnit(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadDirParsesAndSortsUnitFiles(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "zeta.unit", "[Service]\nName=zeta\nExec=/bin/true\n")
	writeUnit(t, dir, "alpha.unit", "[Service]\nName=alpha\nExec=/bin/true\n")
	writeUnit(t, dir, "ignored.txt", "not a unit file")

	cfgs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)
	assert.Equal(t, "alpha", cfgs[0].Name)
	assert.Equal(t, "zeta", cfgs[1].Name)
}

func TestLoadDirMissingDirectoryIsNotAnError(t *testing.T) {
	cfgs, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Nil(t, cfgs)
}

func TestLoadDirPropagatesParseError(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "broken.unit", "[Service]\nName=broken\nBogusKey=1\n")

	_, err := LoadDir(dir)
	assert.Error(t, err)
}
