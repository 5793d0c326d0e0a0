package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oshokin/code-winstaller/internal/domain/installer"
)

const (
	// dirPermissions restricts the workspace to the current user.
	dirPermissions os.FileMode = 0o700
	// filePermissions lets the owner execute the downloaded installer.
	filePermissions os.FileMode = 0o700
)

// Workspace is a uniquely named directory under the system temp root.
type Workspace struct {
	path string
}

// Create makes <temp root>/<prefix>-<uuid>. An entry that already exists
// under that name is opened rather than treated as a failure.
func Create(prefix string) (*Workspace, error) {
	return CreateIn(os.TempDir(), prefix)
}

// CreateIn is Create with an explicit parent directory.
func CreateIn(root, prefix string) (*Workspace, error) {
	path := filepath.Join(root, prefix+"-"+uuid.NewString())

	if err := os.MkdirAll(path, dirPermissions); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w: %w", path, installer.ErrWorkspace, err)
	}

	return &Workspace{path: path}, nil
}

// Path returns the absolute location of the workspace.
func (w *Workspace) Path() string {
	return w.path
}

// CreateFile opens name inside the workspace for reading and writing,
// truncating any file left there before.
func (w *Workspace) CreateFile(name string) (*os.File, error) {
	path := filepath.Join(w.path, filepath.Base(name))

	file, err := os.OpenFile(filepath.Clean(path), os.O_RDWR|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w: %w", path, installer.ErrWorkspace, err)
	}

	return file, nil
}

// Destroy permanently removes the workspace and everything in it.
func (w *Workspace) Destroy() error {
	if err := os.RemoveAll(w.path); err != nil {
		return fmt.Errorf("remove workspace %s: %w: %w", w.path, installer.ErrWorkspace, err)
	}

	return nil
}
