package trace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/cohsim/internal/trace"
)

func writeTrace(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "app_proc0.trace", "R 0x100\nw 0x104\n\nR 0X108\n")

	refs, err := trace.ParseFile(filepath.Join(dir, "app_proc0.trace"))
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, trace.OpRead, refs[0].Op)
	assert.Equal(t, uint32(0x100), refs[0].Address)
	assert.Equal(t, trace.OpWrite, refs[1].Op)
	assert.Equal(t, uint32(0x104), refs[1].Address)
	assert.Equal(t, trace.OpRead, refs[2].Op)
	assert.Equal(t, uint32(0x108), refs[2].Address)
}

func TestParseFileRejectsBadOp(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "bad_proc0.trace", "X 0x100\n")

	_, err := trace.ParseFile(filepath.Join(dir, "bad_proc0.trace"))
	assert.Error(t, err)
}

func TestParseFileRejectsBadAddress(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "bad_proc0.trace", "R zzz\n")

	_, err := trace.ParseFile(filepath.Join(dir, "bad_proc0.trace"))
	assert.Error(t, err)
}

func TestLoadCores(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "app_proc0.trace", "R 0x0\n")
	writeTrace(t, dir, "app_proc1.trace", "W 0x4\n")

	perCore, err := trace.LoadCores(dir, "app", 2)
	require.NoError(t, err)
	require.Len(t, perCore, 2)
	assert.Len(t, perCore[0], 1)
	assert.Len(t, perCore[1], 1)
}
