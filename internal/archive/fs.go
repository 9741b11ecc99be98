package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

// FS writes versions under a local directory.
type FS struct {
	root string
}

// NewFS creates the root directory if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, fmt.Errorf("archive directory required for fs driver")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &FS{root: root}, nil
}

func (a *FS) Driver() string { return DriverFS }

// Put writes the version atomically. Rewriting an existing version is
// allowed since its content never changes.
func (a *FS) Put(ctx context.Context, v *core.TemplateVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(v)
	if err != nil {
		return err
	}
	target := a.Path(v)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	if err := atomicWriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	return nil
}

// Path returns where a version is stored.
func (a *FS) Path(v *core.TemplateVersion) string {
	return filepath.Join(a.root, filepath.FromSlash(Key(v)))
}
