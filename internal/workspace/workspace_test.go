package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
)

// TestCreateIn_UniqueNames checks that every workspace gets its own prefixed directory.
func TestCreateIn_UniqueNames(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	first, err := CreateIn(root, "vscode-installer")
	require.NoError(t, err)

	second, err := CreateIn(root, "vscode-installer")
	require.NoError(t, err)

	require.NotEqual(t, first.Path(), second.Path())
	require.True(t, strings.HasPrefix(filepath.Base(first.Path()), "vscode-installer-"))

	info, err := os.Stat(first.Path())
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

// TestCreateFile_ReplacesExisting verifies that CreateFile truncates a stale file.
func TestCreateFile_ReplacesExisting(t *testing.T) {
	t.Parallel()

	ws, err := CreateIn(t.TempDir(), "ws")
	require.NoError(t, err)

	path := filepath.Join(ws.Path(), "setup.exe")
	require.NoError(t, os.WriteFile(path, []byte("stale contents"), 0o600))

	file, err := ws.CreateFile("setup.exe")
	require.NoError(t, err)

	_, err = file.WriteString("new")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

// TestDestroy removes the directory together with its contents.
func TestDestroy(t *testing.T) {
	t.Parallel()

	ws, err := CreateIn(t.TempDir(), "ws")
	require.NoError(t, err)

	file, err := ws.CreateFile("setup.exe")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, ws.Destroy())

	_, err = os.Stat(ws.Path())
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestCreateIn_Failure wraps filesystem errors as workspace errors.
func TestCreateIn_Failure(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, nil, 0o600))

	_, err := CreateIn(root, "ws")
	require.ErrorIs(t, err, installer.ErrWorkspace)
}
