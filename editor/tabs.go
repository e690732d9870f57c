package editor

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"
)

// PlaceholderContent is shown when a provider read fails. The tab still
// opens so the session keeps going.
const PlaceholderContent = "// Unable to load file contents."

func notFoundContent(name string) string {
	return fmt.Sprintf("// File not found: %s", name)
}

// Tab is one open file: buffered content, a dirty flag, and at most one
// pending assistant edit. ID equals the originating node's resolved id and
// doubles as the registry key.
type Tab struct {
	ID       string
	Name     string
	Language string
	Content  string
	Dirty    bool
	Pending  *PendingEdit
}

// TabStore owns the ordered collection of open tabs and which one is
// active (-1 when none). It mirrors open-file state into the shared
// registry on open, mutation, and close, and reports accepted or rejected
// proposals to the activity log.
type TabStore struct {
	mu       sync.Mutex
	tabs     []*Tab
	active   int
	project  string
	provider DirectoryProvider
	registry Registry
	activity ActivityLog
	logger   *slog.Logger
}

// NewTabStore creates an empty store. provider, registry, and activity may
// be nil; the corresponding side effects are skipped.
func NewTabStore(provider DirectoryProvider, registry Registry, activity ActivityLog, logger *slog.Logger) *TabStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TabStore{
		active:   -1,
		provider: provider,
		registry: registry,
		activity: activity,
		logger:   logger,
	}
}

// SetProject sets the project name stamped onto activity records.
func (s *TabStore) SetProject(name string) {
	s.mu.Lock()
	s.project = name
	s.mu.Unlock()
}

// Count returns the number of open tabs.
func (s *TabStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tabs)
}

// Tabs returns the open tabs in order.
func (s *TabStore) Tabs() []*Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Tab(nil), s.tabs...)
}

// Tab returns the open tab with the given id, or nil.
func (s *TabStore) Tab(id string) *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tabs[i]
	}
	return nil
}

// ActiveTab returns the focused tab, or nil if no tabs are open.
func (s *TabStore) ActiveTab() *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active < 0 || s.active >= len(s.tabs) {
		return nil
	}
	return s.tabs[s.active]
}

// ActiveID returns the focused tab's id, or "".
func (s *TabStore) ActiveID() string {
	if tab := s.ActiveTab(); tab != nil {
		return tab.ID
	}
	return ""
}

// Activate focuses the tab with the given id. Unknown ids are ignored.
func (s *TabStore) Activate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.active = i
		return true
	}
	return false
}

// indexOf returns the position of the tab with the given id, or -1.
// Callers must hold s.mu.
func (s *TabStore) indexOf(id string) int {
	for i, tab := range s.tabs {
		if tab.ID == id {
			return i
		}
	}
	return -1
}

// Open opens node in a tab, or focuses the existing tab with the same
// resolved identity. Re-opening never re-reads content, except when the
// existing tab is empty and the node now has a live content source; then
// the content is read once and filled in. A failed read falls back to
// PlaceholderContent rather than failing the open. The returned tab is the
// active one.
func (s *TabStore) Open(ctx context.Context, node *FileNode, parentPath string) *Tab {
	if node == nil || node.Kind == NodeFolder {
		return nil
	}
	ident := ResolveIdentity(node, parentPath)

	s.mu.Lock()
	if i := s.indexOf(ident.ID); i >= 0 {
		tab := s.tabs[i]
		s.active = i
		reread := tab.Content == "" && (node.Content != "" || node.Handle != nil)
		s.mu.Unlock()
		if reread {
			s.loadInto(ctx, tab, node)
		}
		return tab
	}
	s.mu.Unlock()

	lang := node.Language
	if lang == "" {
		lang = LanguageForPath(ident.DisplayName)
	}
	tab := &Tab{ID: ident.ID, Name: ident.DisplayName, Language: lang}
	tab.Content = s.readContent(ctx, node, ident.ID)

	s.mu.Lock()
	// The read happened unlocked; a concurrent open of the same id wins.
	if i := s.indexOf(ident.ID); i >= 0 {
		existing := s.tabs[i]
		if existing.Content == "" && tab.Content != "" {
			existing.Content = tab.Content
		}
		s.active = i
		s.mu.Unlock()
		s.register(existing)
		return existing
	}
	s.tabs = append(s.tabs, tab)
	s.active = len(s.tabs) - 1
	s.mu.Unlock()

	s.register(tab)
	return tab
}

// loadInto re-reads content for an already-open empty tab. The result is
// discarded if the tab was closed or filled by a faster path while the
// read was in flight.
func (s *TabStore) loadInto(ctx context.Context, tab *Tab, node *FileNode) {
	text := s.readContent(ctx, node, tab.ID)

	s.mu.Lock()
	i := s.indexOf(tab.ID)
	if i < 0 || s.tabs[i].Content != "" {
		s.mu.Unlock()
		return
	}
	s.tabs[i].Content = text
	s.mu.Unlock()
	s.register(tab)
}

func (s *TabStore) readContent(ctx context.Context, node *FileNode, id string) string {
	if node.Content != "" || node.Handle == nil {
		return node.Content
	}
	if s.provider == nil {
		return PlaceholderContent
	}
	text, err := s.provider.ReadContent(ctx, node.Handle)
	if err != nil {
		s.logger.Warn("content read failed", "file", id, "error", err)
		return PlaceholderContent
	}
	return text
}

// OpenEntry opens a tab seeded from a registry entry, or focuses the
// existing tab with the same id.
func (s *TabStore) OpenEntry(entry RegistryEntry) *Tab {
	lang := entry.Language
	if lang == "" {
		lang = LanguageForPath(entry.Name)
	}
	name := entry.Name
	if name == "" {
		name = path.Base(entry.ID)
	}
	tab := &Tab{ID: entry.ID, Name: name, Language: lang, Content: entry.Content}

	s.mu.Lock()
	if i := s.indexOf(entry.ID); i >= 0 {
		s.active = i
		existing := s.tabs[i]
		s.mu.Unlock()
		return existing
	}
	s.tabs = append(s.tabs, tab)
	s.active = len(s.tabs) - 1
	s.mu.Unlock()

	s.register(tab)
	return tab
}

// Close removes the tab with the given id and unregisters it from the
// registry. When the active tab closes, focus moves to the tab now
// occupying the same index, clamped to the new last tab; closing a tab
// before the active one shifts the active index down so focus stays put.
func (s *TabStore) Close(id string) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
	switch {
	case len(s.tabs) == 0:
		s.active = -1
	case i < s.active:
		s.active--
	case i == s.active && s.active >= len(s.tabs):
		s.active = len(s.tabs) - 1
	}
	s.mu.Unlock()

	if s.registry != nil {
		s.registry.Unregister(id)
	}
}

// UpdateContent replaces a tab's buffered text and marks it dirty. Unknown
// ids are ignored. The registry copy is refreshed so cross-panel consumers
// see the latest text.
func (s *TabStore) UpdateContent(id, content string) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	tab := s.tabs[i]
	tab.Content = content
	tab.Dirty = true
	s.mu.Unlock()

	s.register(tab)
}

// SetPending attaches edit to the tab, replacing any unresolved proposal
// (last-proposed-wins; proposals do not queue). A nil edit clears the
// proposal without touching content.
func (s *TabStore) SetPending(id string, edit *PendingEdit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.tabs[i].Pending = edit
	}
}

// ApplyPending applies the tab's pending edit to its content, marks the
// tab dirty, clears the proposal, and records an accept. cursorLine is the
// 1-based fallback line for inserts without an explicit line. A missing
// tab or missing proposal is a no-op.
func (s *TabStore) ApplyPending(id string, cursorLine int) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 || s.tabs[i].Pending == nil {
		s.mu.Unlock()
		return false
	}
	tab := s.tabs[i]
	edit := *tab.Pending
	tab.Content = ApplyEdit(tab.Content, edit, cursorLine)
	tab.Dirty = true
	tab.Pending = nil
	project := s.project
	s.mu.Unlock()

	s.register(tab)
	s.record(ActivityAccept, tab.Name, project, edit)
	return true
}

// RejectPending discards the tab's pending edit without touching content
// or the dirty flag, and records a reject.
func (s *TabStore) RejectPending(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 || s.tabs[i].Pending == nil {
		s.mu.Unlock()
		return false
	}
	tab := s.tabs[i]
	edit := *tab.Pending
	tab.Pending = nil
	project := s.project
	s.mu.Unlock()

	s.record(ActivityReject, tab.Name, project, edit)
	return true
}

// ApplyBatched stages a set of proposed edits across their target files.
// Every edit is attached pending, never auto-applied. Targets that are not
// open are resolved through the registry first, falling back to not-found
// placeholder text (or empty content for a create_file target), and opened
// as new tabs. The first edit's tab becomes the active, visible proposal.
func (s *TabStore) ApplyBatched(edits []PendingEdit) []*Tab {
	staged := make([]*Tab, 0, len(edits))
	for _, edit := range edits {
		edit := edit
		id := edit.TargetFileID
		if id == "" {
			active := s.ActiveTab()
			if active == nil {
				s.logger.Info("dropping edit with no target and no active tab", "action", edit.Action)
				continue
			}
			id = active.ID
			edit.TargetFileID = id
		}

		s.mu.Lock()
		if i := s.indexOf(id); i >= 0 {
			tab := s.tabs[i]
			tab.Pending = &edit
			s.mu.Unlock()
			staged = append(staged, tab)
			continue
		}
		s.mu.Unlock()

		staged = append(staged, s.openForEdit(id, &edit))
	}

	if len(staged) > 0 {
		s.Activate(staged[0].ID)
	}
	return staged
}

// openForEdit opens a tab for a batched-edit target that is not currently
// open, seeding content from the registry when it knows the file.
func (s *TabStore) openForEdit(id string, edit *PendingEdit) *Tab {
	name := path.Base(id)
	content := notFoundContent(name)
	lang := ""
	if edit.Action == ActionCreateFile {
		content = ""
	}
	if s.registry != nil {
		if entry, ok := s.registry.Get(id); ok {
			if entry.Name != "" {
				name = entry.Name
			}
			content = entry.Content
			lang = entry.Language
		}
	}
	if lang == "" {
		lang = LanguageForPath(name)
	}

	tab := &Tab{ID: id, Name: name, Language: lang, Content: content, Pending: edit}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		existing := s.tabs[i]
		existing.Pending = edit
		s.mu.Unlock()
		return existing
	}
	s.tabs = append(s.tabs, tab)
	s.mu.Unlock()

	s.register(tab)
	return tab
}

// FindByName returns the open tab whose id or name matches, trying exact
// matches first and case-insensitive matches second.
func (s *TabStore) FindByName(name string) *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tab := range s.tabs {
		if tab.ID == name || tab.Name == name {
			return tab
		}
	}
	lower := strings.ToLower(name)
	for _, tab := range s.tabs {
		if strings.ToLower(tab.ID) == lower || strings.ToLower(tab.Name) == lower {
			return tab
		}
	}
	return nil
}

func (s *TabStore) register(tab *Tab) {
	if s.registry == nil {
		return
	}
	s.registry.Register(tab.Name, tab.ID, tab.Content, tab.Language)
}

func (s *TabStore) record(kind ActivityType, filename, project string, edit PendingEdit) {
	if s.activity == nil {
		return
	}
	rec := ActivityRecord{
		Type:        kind,
		Timestamp:   time.Now(),
		Filename:    filename,
		Project:     project,
		Description: edit.Explanation,
		Action:      string(edit.Action),
	}
	if kind == ActivityAccept {
		rec.LinesChanged = LinesChanged(edit)
	}
	s.activity.Push(rec)
}
