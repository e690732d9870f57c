package editor

import (
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// Identity is the stable id and display name resolved for a tree entry.
// The id is the join key between "open in the editor" and "known to the
// registry", so resolution must be referentially stable: the same node
// always resolves to the same id, and re-opening a file reuses its tab.
type Identity struct {
	ID          string
	DisplayName string
}

// ResolveIdentity derives the identity for a node. Nodes that already carry
// an id (virtual nodes, and disk nodes whose provider assigned the relative
// path) keep it. Otherwise the id is path-qualified with parentPath when
// one is known, falling back to the bare name.
func ResolveIdentity(node *FileNode, parentPath string) Identity {
	if node == nil {
		return Identity{}
	}
	name := node.Name
	if name == "" {
		name = node.ID
	}
	if node.ID != "" {
		return Identity{ID: node.ID, DisplayName: name}
	}
	if parentPath != "" {
		return Identity{ID: path.Join(parentPath, name), DisplayName: name}
	}
	return Identity{ID: name, DisplayName: name}
}

// LanguageForPath maps a file name to a lowercase language id using chroma's
// lexer registry. Unknown extensions map to "".
func LanguageForPath(p string) string {
	lexer := lexers.Match(path.Base(p))
	if lexer == nil {
		return ""
	}
	return strings.ToLower(lexer.Config().Name)
}
