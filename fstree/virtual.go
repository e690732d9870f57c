package fstree

import (
	"context"
	"fmt"

	"github.com/halcyondev/parley/editor"
)

// Virtual serves a fixed in-memory tree whose file nodes carry content
// inline. It backs tests and the built-in demo workspace.
type Virtual struct {
	name  string
	nodes []*editor.FileNode
}

var _ editor.DirectoryProvider = (*Virtual)(nil)

// NewVirtual creates a provider over the given nodes.
func NewVirtual(name string, nodes []*editor.FileNode) *Virtual {
	return &Virtual{name: name, nodes: nodes}
}

// Name returns the virtual workspace's project name.
func (v *Virtual) Name() string { return v.name }

// ReadTree returns the tree as constructed.
func (v *Virtual) ReadTree(ctx context.Context) ([]*editor.FileNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.nodes, nil
}

// ReadContent always fails: virtual nodes carry their content inline and
// never hand out handles.
func (v *Virtual) ReadContent(ctx context.Context, handle any) (string, error) {
	return "", fmt.Errorf("virtual tree has no handle %v", handle)
}

// DemoTree returns the small built-in workspace the binary boots into when
// no root directory is given.
func DemoTree() []*editor.FileNode {
	return []*editor.FileNode{
		{
			ID:   "src",
			Name: "src",
			Kind: editor.NodeFolder,
			Children: []*editor.FileNode{
				{
					ID:       "src/main.py",
					Name:     "main.py",
					Kind:     editor.NodeFile,
					Language: "python",
					Content:  "def main():\n    print(\"hello from parley\")\n\n\nif __name__ == \"__main__\":\n    main()\n",
				},
				{
					ID:       "src/utils.py",
					Name:     "utils.py",
					Kind:     editor.NodeFile,
					Language: "python",
					Content:  "def clamp(n, lo, hi):\n    return max(lo, min(n, hi))\n",
				},
			},
		},
		{
			ID:       "README.md",
			Name:     "README.md",
			Kind:     editor.NodeFile,
			Language: "markdown",
			Content:  "# demo workspace\n\nSay \"open main\" to get started.\n",
		},
	}
}
