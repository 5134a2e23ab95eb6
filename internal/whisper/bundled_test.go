package whisper

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveBundledEnginePathFindsLibexecSibling(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	binDir := filepath.Join(root, "bin")
	engineDir := filepath.Join(root, "libexec", "whisper")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	require.NoError(t, os.MkdirAll(engineDir, 0o755))

	self := filepath.Join(binDir, "voxscribe")
	require.NoError(t, os.WriteFile(self, []byte(""), 0o755))

	enginePath := filepath.Join(engineDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveBundledEnginePath(self)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestResolveBundledEnginePathMissing(t *testing.T) {
	t.Parallel()

	self := filepath.Join(t.TempDir(), "bin", "voxscribe")
	require.NoError(t, os.MkdirAll(filepath.Dir(self), 0o755))
	require.NoError(t, os.WriteFile(self, []byte(""), 0o755))

	_, err := ResolveBundledEnginePath(self)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bundled whisper engine not found")
}

func TestResolveBundledEnginePathFindsPackagingPathForLocalDev(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	self := filepath.Join(root, "voxscribe")
	require.NoError(t, os.WriteFile(self, []byte(""), 0o755))

	targetDir := filepath.Join(root, "packaging", "whisper", fmt.Sprintf("%s_%s", runtime.GOOS, normalizeArch(runtime.GOARCH)))
	require.NoError(t, os.MkdirAll(targetDir, 0o755))
	enginePath := filepath.Join(targetDir, engineBinaryName())
	require.NoError(t, os.WriteFile(enginePath, []byte(""), 0o755))

	resolved, err := ResolveBundledEnginePath(self)
	require.NoError(t, err)
	require.Equal(t, enginePath, resolved)
}

func TestParseJSONOutput(t *testing.T) {
	t.Parallel()

	content := []byte(`{
		"transcription": [
			{"offsets": {"from": 0, "to": 2500}, "text": " Hello there."},
			{"offsets": {"from": 2500, "to": 5100}, "text": " General Kenobi."},
			{"offsets": {"from": 5100, "to": 5100}, "text": "   "}
		]
	}`)

	out, err := ParseJSONOutput(content)
	require.NoError(t, err)
	require.Equal(t, "Hello there. General Kenobi.", out.Text)
	require.Len(t, out.Chunks, 2)
	require.Equal(t, 0.0, out.Chunks[0].Start)
	require.Equal(t, 2.5, out.Chunks[0].End)
	require.Equal(t, 2.5, out.Chunks[1].Start)
	require.Equal(t, 5.1, out.Chunks[1].End)
	require.Equal(t, "General Kenobi.", out.Chunks[1].Text)
}

func TestParseJSONOutputRejectsMalformedPayload(t *testing.T) {
	t.Parallel()

	_, err := ParseJSONOutput([]byte("<!DOCTYPE html><html></html>"))
	require.Error(t, err)
}

func TestIsMissingSharedLibraryError(t *testing.T) {
	t.Parallel()

	require.True(t, isMissingSharedLibraryError("error while loading shared libraries: libwhisper.so.1: cannot open shared object file"))
	require.True(t, isMissingSharedLibraryError("dyld: Library not loaded: @rpath/libwhisper.dylib"))
	require.False(t, isMissingSharedLibraryError("some other runtime error"))
}

func TestIsIllegalInstructionError(t *testing.T) {
	t.Parallel()

	require.True(t, isIllegalInstructionError("signal: illegal instruction (core dumped)"))
	require.False(t, isIllegalInstructionError("some other runtime error"))
	require.False(t, isIllegalInstructionError(""))
}
