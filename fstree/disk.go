// Package fstree provides directory providers for the editor session: a
// disk-backed walker, an in-memory virtual tree, and a change watcher.
package fstree

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/halcyondev/parley/editor"
)

// DefaultIgnoreDirs are directory names skipped during tree walks.
var DefaultIgnoreDirs = []string{".git", "node_modules", "vendor"}

// Disk builds provider trees by walking a root directory. Node ids are
// slash-separated paths relative to the root, so they stay stable across
// re-opens; handles are absolute paths read lazily.
type Disk struct {
	root   string
	ignore map[string]bool
	logger *slog.Logger
}

var _ editor.DirectoryProvider = (*Disk)(nil)

// NewDisk creates a provider rooted at root. ignoreDirs nil means
// DefaultIgnoreDirs.
func NewDisk(root string, ignoreDirs []string, logger *slog.Logger) (*Disk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", abs)
	}
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}
	ignore := make(map[string]bool, len(ignoreDirs))
	for _, name := range ignoreDirs {
		ignore[name] = true
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Disk{root: abs, ignore: ignore, logger: logger}, nil
}

// Root returns the absolute root path.
func (d *Disk) Root() string { return d.root }

// Name returns the root directory's base name, used as the project name.
func (d *Disk) Name() string { return filepath.Base(d.root) }

// ReadTree walks the root and returns its nested node tree. Unreadable
// subdirectories are logged and skipped.
func (d *Disk) ReadTree(ctx context.Context) ([]*editor.FileNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.readDir(ctx, d.root, "")
}

func (d *Disk) readDir(ctx context.Context, dir, rel string) ([]*editor.FileNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return di
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	nodes := make([]*editor.FileNode, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		if entry.IsDir() {
			if d.ignore[name] {
				continue
			}
			children, err := d.readDir(ctx, filepath.Join(dir, name), childRel)
			if err != nil {
				d.logger.Warn("skipping unreadable directory", "dir", childRel, "error", err)
				continue
			}
			nodes = append(nodes, &editor.FileNode{
				ID:       childRel,
				Name:     name,
				Kind:     editor.NodeFolder,
				Children: children,
			})
			continue
		}
		nodes = append(nodes, &editor.FileNode{
			ID:       childRel,
			Name:     name,
			Kind:     editor.NodeFile,
			Language: editor.LanguageForPath(name),
			Handle:   filepath.Join(dir, name),
		})
	}
	return nodes, nil
}

// ReadContent reads the file behind a handle produced by ReadTree.
func (d *Disk) ReadContent(ctx context.Context, handle any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, ok := handle.(string)
	if !ok {
		return "", fmt.Errorf("unrecognized content handle %T", handle)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
