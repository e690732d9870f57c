package editor

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"
)

// DefaultRegistrySizeCeiling is the content size at or above which a file
// is excluded from the registry walk, to bound memory.
const DefaultRegistrySizeCeiling = 100_000

// InsertMode steers how a free-form assistant reply lands in the active
// tab. This is the direct, non-confirmable mutation path, distinct from the
// accept/reject workflow used for structured code actions.
type InsertMode string

const (
	InsertReplace InsertMode = "replace"
	InsertAppend  InsertMode = "append"
	InsertCursor  InsertMode = "cursor"
)

// AssistantReply is a free-form assistant response. Empty Code marks an
// explain-only reply that must not mutate any tab.
type AssistantReply struct {
	Code        string
	InsertMode  InsertMode
	Explanation string
}

// Session wires user actions and assistant responses to the tab store and
// the external collaborators: directory provider, registry, and activity
// feed.
type Session struct {
	mu          sync.Mutex
	tree        []*FileNode
	project     string
	sizeCeiling int

	tabs     *TabStore
	provider DirectoryProvider
	registry Registry
	feed     *Feed
	logger   *slog.Logger
}

// NewSession creates a session over the given collaborators. provider,
// registry, and feed may be nil.
func NewSession(tabs *TabStore, provider DirectoryProvider, registry Registry, feed *Feed, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		sizeCeiling: DefaultRegistrySizeCeiling,
		tabs:        tabs,
		provider:    provider,
		registry:    registry,
		feed:        feed,
		logger:      logger,
	}
}

// SetProject names the workspace for activity records.
func (s *Session) SetProject(name string) {
	s.mu.Lock()
	s.project = name
	s.mu.Unlock()
	s.tabs.SetProject(name)
}

// SetRegistrySizeCeiling overrides the registry walk's size exclusion.
func (s *Session) SetRegistrySizeCeiling(n int) {
	s.mu.Lock()
	if n > 0 {
		s.sizeCeiling = n
	}
	s.mu.Unlock()
}

// TabStore exposes the underlying store.
func (s *Session) TabStore() *TabStore { return s.tabs }

// Tree returns the current provider tree.
func (s *Session) Tree() []*FileNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Tabs returns the open tabs in order.
func (s *Session) Tabs() []*Tab { return s.tabs.Tabs() }

// ActiveTabID returns the focused tab's id, or "".
func (s *Session) ActiveTabID() string { return s.tabs.ActiveID() }

// Activate focuses the tab with the given id.
func (s *Session) Activate(id string) bool { return s.tabs.Activate(id) }

// CloseTab closes the tab with the given id.
func (s *Session) CloseTab(id string) { s.tabs.Close(id) }

// UpdateBuffer replaces a tab's content after a keystroke.
func (s *Session) UpdateBuffer(id, text string) { s.tabs.UpdateContent(id, text) }

// AcceptEdit applies the tab's pending proposal.
func (s *Session) AcceptEdit(id string, cursorLine int) bool {
	return s.tabs.ApplyPending(id, cursorLine)
}

// RejectEdit discards the tab's pending proposal.
func (s *Session) RejectEdit(id string) bool { return s.tabs.RejectPending(id) }

// Search finds query across every open tab.
func (s *Session) Search(query string) []Match { return s.tabs.Search(query) }

// StageEdits stages one confirmable pending edit per target file.
func (s *Session) StageEdits(edits []PendingEdit) []*Tab { return s.tabs.ApplyBatched(edits) }

// RecentActivity returns up to n recent accept/reject records.
func (s *Session) RecentActivity(n int) []ActivityRecord {
	if s.feed == nil {
		return nil
	}
	return s.feed.Recent(n)
}

// OpenFolder reads the provider's tree and replaces the current one
// wholesale. Tabs opened from the previous tree stay open; they are simply
// orphaned from the new tree. The new tree is then walked in the background
// to populate the registry.
func (s *Session) OpenFolder(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}
	tree, err := s.provider.ReadTree(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()

	go s.registerTree(ctx, tree)
	return nil
}

// registerTree walks nodes registering every file whose content is below
// the size ceiling. Unreadable files are skipped; a registry that is nil
// makes this a no-op.
func (s *Session) registerTree(ctx context.Context, nodes []*FileNode) {
	if s.registry == nil {
		return
	}
	s.mu.Lock()
	ceiling := s.sizeCeiling
	s.mu.Unlock()

	var entries []RegistryEntry
	var walk func(nodes []*FileNode, parent string)
	walk = func(nodes []*FileNode, parent string) {
		for _, n := range nodes {
			if n.Kind == NodeFolder {
				walk(n.Children, path.Join(parent, n.Name))
				continue
			}
			ident := ResolveIdentity(n, parent)
			content := n.Content
			if content == "" && n.Handle != nil && s.provider != nil {
				text, err := s.provider.ReadContent(ctx, n.Handle)
				if err != nil {
					s.logger.Debug("registry walk skipping file", "file", ident.ID, "error", err)
					continue
				}
				content = text
			}
			if len(content) >= ceiling {
				continue
			}
			lang := n.Language
			if lang == "" {
				lang = LanguageForPath(ident.DisplayName)
			}
			entries = append(entries, RegistryEntry{
				ID:       ident.ID,
				Name:     ident.DisplayName,
				Content:  content,
				Language: lang,
			})
		}
	}
	walk(nodes, "")
	s.registry.RegisterBatch(entries)
}

// OpenNode opens a tree node in a tab.
func (s *Session) OpenNode(ctx context.Context, node *FileNode, parentPath string) *Tab {
	return s.tabs.Open(ctx, node, parentPath)
}

// OpenPath opens the tree node with the given resolved id, or focuses its
// existing tab. Unknown ids are dropped with a log line.
func (s *Session) OpenPath(ctx context.Context, id string) *Tab {
	if tab := s.tabs.Tab(id); tab != nil {
		// Route through Open so the empty-tab re-read rule still applies.
		if node, parent := s.findNode(id); node != nil {
			return s.tabs.Open(ctx, node, parent)
		}
		s.tabs.Activate(id)
		return tab
	}
	if node, parent := s.findNode(id); node != nil {
		return s.tabs.Open(ctx, node, parent)
	}
	s.logger.Info("open request for unknown path", "path", id)
	return nil
}

// OpenByName resolves a cross-panel "open this file" request: open tabs
// first (exact id or name, then case-insensitive), then the registry.
// Unresolvable names are dropped silently, surfaced only as a log line.
func (s *Session) OpenByName(name string) *Tab {
	if name == "" {
		return nil
	}
	if tab := s.tabs.FindByName(name); tab != nil {
		s.tabs.Activate(tab.ID)
		return tab
	}
	if s.registry != nil {
		if entry, ok := s.registry.Get(name); ok {
			return s.tabs.OpenEntry(entry)
		}
	}
	s.logger.Info("unresolved file reference", "name", name)
	return nil
}

// ResolveTargetID maps an assistant-supplied file path onto the session's
// tab id space: open tabs first, then the current tree, then the registry,
// and finally the path itself (a create target).
func (s *Session) ResolveTargetID(filePath string) string {
	if filePath == "" {
		if tab := s.tabs.ActiveTab(); tab != nil {
			return tab.ID
		}
		return ""
	}
	if tab := s.tabs.FindByName(filePath); tab != nil {
		return tab.ID
	}
	if node, parent := s.findNode(filePath); node != nil {
		return ResolveIdentity(node, parent).ID
	}
	if s.registry != nil {
		if entry, ok := s.registry.Get(filePath); ok {
			return entry.ID
		}
	}
	return filePath
}

// HandleReply routes a free-form assistant reply. Replies without code are
// explanations and never touch a buffer. Replies with code mutate the
// active tab directly according to the insert mode; there is no pending
// proposal on this path.
func (s *Session) HandleReply(reply AssistantReply, cursorLine int) {
	if reply.Code == "" {
		return
	}
	tab := s.tabs.ActiveTab()
	if tab == nil {
		s.logger.Info("assistant reply with code but no active tab")
		return
	}
	switch reply.InsertMode {
	case InsertAppend:
		s.tabs.UpdateContent(tab.ID, tab.Content+"\n"+reply.Code)
	case InsertCursor:
		updated := ApplyEdit(tab.Content, PendingEdit{Action: ActionInsert, Code: reply.Code}, cursorLine)
		s.tabs.UpdateContent(tab.ID, updated)
	default:
		s.tabs.UpdateContent(tab.ID, reply.Code)
	}
}

// findNode locates a tree node by resolved id, exact name, or
// case-insensitive name, returning the node and its parent path.
func (s *Session) findNode(ref string) (*FileNode, string) {
	s.mu.Lock()
	tree := s.tree
	s.mu.Unlock()

	lower := strings.ToLower(ref)
	var exact, loose *FileNode
	var exactParent, looseParent string

	var walk func(nodes []*FileNode, parent string)
	walk = func(nodes []*FileNode, parent string) {
		for _, n := range nodes {
			if n.Kind == NodeFolder {
				walk(n.Children, path.Join(parent, n.Name))
				continue
			}
			ident := ResolveIdentity(n, parent)
			if ident.ID == ref || n.Name == ref {
				if exact == nil {
					exact, exactParent = n, parent
				}
				continue
			}
			if strings.ToLower(ident.ID) == lower || strings.ToLower(n.Name) == lower {
				if loose == nil {
					loose, looseParent = n, parent
				}
			}
		}
	}
	walk(tree, "")

	if exact != nil {
		return exact, exactParent
	}
	return loose, looseParent
}
