package editor

import "context"

// NodeKind distinguishes files from folders in a provider tree.
type NodeKind string

const (
	NodeFile   NodeKind = "file"
	NodeFolder NodeKind = "folder"
)

// FileNode is one entry in a directory provider's tree. A folder carries
// Children. A file carries either pre-populated Content (virtual trees) or
// an opaque Handle the provider can read lazily; the editor never inspects
// a handle, it only passes it back to the provider.
type FileNode struct {
	ID       string
	Name     string
	Kind     NodeKind
	Language string
	Content  string
	Children []*FileNode
	Handle   any
}

// DirectoryProvider supplies a tree of file nodes with on-demand content
// loading. Reads may fail; callers recover locally rather than aborting the
// session.
type DirectoryProvider interface {
	ReadTree(ctx context.Context) ([]*FileNode, error)
	ReadContent(ctx context.Context, handle any) (string, error)
}

// RegistryEntry is one cached file in the shared cross-panel registry.
type RegistryEntry struct {
	ID       string
	Name     string
	Content  string
	Language string
}

// Registry is the shared best-effort cache mapping file id to name, content,
// and language, so panels other than the editor can resolve "the file named
// X" without re-reading disk. Implementations are last-writer-wins; the
// editor never holds a lock across registry calls.
type Registry interface {
	Register(name, id, content, language string)
	Unregister(id string)
	Get(idOrName string) (RegistryEntry, bool)
	RegisterBatch(entries []RegistryEntry)
	Clear()
}
