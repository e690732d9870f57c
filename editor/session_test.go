package editor

import (
	"context"
	"strings"
	"testing"
)

func newTestSession(provider DirectoryProvider, reg Registry) *Session {
	tabs := NewTabStore(provider, reg, nil, nil)
	return NewSession(tabs, provider, reg, nil, nil)
}

type treeProvider struct {
	fakeProvider
	tree []*FileNode
}

func (p *treeProvider) ReadTree(ctx context.Context) ([]*FileNode, error) {
	return p.tree, nil
}

func TestHandleReplyExplainOnly(t *testing.T) {
	s := newTestSession(nil, nil)
	s.TabStore().Open(context.Background(), virtualNode("f.py", "untouched"), "")

	s.HandleReply(AssistantReply{Explanation: "this code prints"}, 1)

	tab := s.TabStore().Tab("f.py")
	if tab.Content != "untouched" {
		t.Errorf("Content = %q, explain-only reply must not mutate", tab.Content)
	}
	if tab.Dirty {
		t.Error("explain-only reply must not mark dirty")
	}
}

func TestHandleReplyReplace(t *testing.T) {
	s := newTestSession(nil, nil)
	s.TabStore().Open(context.Background(), virtualNode("f.py", "old"), "")

	s.HandleReply(AssistantReply{Code: "new", InsertMode: InsertReplace}, 0)

	tab := s.TabStore().Tab("f.py")
	if tab.Content != "new" || !tab.Dirty {
		t.Errorf("tab = %+v, want replaced and dirty", tab)
	}
}

func TestHandleReplyAppend(t *testing.T) {
	s := newTestSession(nil, nil)
	s.TabStore().Open(context.Background(), virtualNode("f.py", "line1"), "")

	s.HandleReply(AssistantReply{Code: "line2", InsertMode: InsertAppend}, 0)

	if got := s.TabStore().Tab("f.py").Content; got != "line1\nline2" {
		t.Errorf("Content = %q, want %q", got, "line1\nline2")
	}
}

func TestHandleReplyCursor(t *testing.T) {
	s := newTestSession(nil, nil)
	s.TabStore().Open(context.Background(), virtualNode("f.py", "a\nb\nc"), "")

	s.HandleReply(AssistantReply{Code: "X", InsertMode: InsertCursor}, 2)

	if got := s.TabStore().Tab("f.py").Content; got != "a\nX\nb\nc" {
		t.Errorf("Content = %q, want %q", got, "a\nX\nb\nc")
	}
}

func TestHandleReplyNoActiveTab(t *testing.T) {
	s := newTestSession(nil, nil)
	// Must not panic and must not create tabs.
	s.HandleReply(AssistantReply{Code: "stray", InsertMode: InsertReplace}, 0)
	if s.TabStore().Count() != 0 {
		t.Errorf("Count = %d, want 0", s.TabStore().Count())
	}
}

func TestOpenByNameOpenTabFirst(t *testing.T) {
	s := newTestSession(nil, nil)
	s.TabStore().Open(context.Background(), virtualNode("a.py", "1"), "")
	s.TabStore().Open(context.Background(), virtualNode("b.py", "2"), "")

	tab := s.OpenByName("A.PY")
	if tab == nil || tab.ID != "a.py" {
		t.Fatalf("tab = %+v, want a.py", tab)
	}
	if s.ActiveTabID() != "a.py" {
		t.Errorf("ActiveTabID = %q, want a.py", s.ActiveTabID())
	}
}

func TestOpenByNameRegistryFallback(t *testing.T) {
	reg := newFakeRegistry()
	reg.Register("cached.py", "lib/cached.py", "cached body", "python")
	s := newTestSession(nil, reg)

	tab := s.OpenByName("cached.py")
	if tab == nil {
		t.Fatal("registry-known file should open")
	}
	if tab.ID != "lib/cached.py" || tab.Content != "cached body" {
		t.Errorf("tab = %+v", tab)
	}
}

func TestOpenByNameUnresolvedDropped(t *testing.T) {
	s := newTestSession(nil, newFakeRegistry())
	if tab := s.OpenByName("phantom.py"); tab != nil {
		t.Errorf("tab = %+v, want nil for unresolvable name", tab)
	}
	if s.TabStore().Count() != 0 {
		t.Error("unresolvable request must not create a tab")
	}
}

func TestOpenFolderReplacesTreeKeepsTabs(t *testing.T) {
	provider := &treeProvider{tree: []*FileNode{virtualNode("new.py", "n")}}
	s := newTestSession(provider, nil)
	s.TabStore().Open(context.Background(), virtualNode("orphan.py", "old root"), "")

	if err := s.OpenFolder(context.Background()); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	if len(s.Tree()) != 1 || s.Tree()[0].ID != "new.py" {
		t.Errorf("Tree = %+v", s.Tree())
	}
	// Tabs from the previous root stay open, orphaned from the new tree.
	if s.TabStore().Tab("orphan.py") == nil {
		t.Error("previously open tab should survive a folder switch")
	}
}

func TestRegisterTreeSizeCeiling(t *testing.T) {
	reg := newFakeRegistry()
	s := newTestSession(nil, reg)
	s.SetRegistrySizeCeiling(10)

	tree := []*FileNode{
		{
			ID:   "src",
			Name: "src",
			Kind: NodeFolder,
			Children: []*FileNode{
				virtualNode("small.py", "tiny"),
				virtualNode("big.py", strings.Repeat("x", 64)),
			},
		},
	}
	s.registerTree(context.Background(), tree)

	if _, ok := reg.entry("small.py"); !ok {
		t.Error("small file should be registered")
	}
	if _, ok := reg.entry("big.py"); ok {
		t.Error("file at or above the ceiling must be excluded")
	}
}

func TestRegisterTreeSkipsUnreadable(t *testing.T) {
	provider := &fakeProvider{content: map[string]string{"/abs/ok.go": "package ok"}}
	reg := newFakeRegistry()
	tabs := NewTabStore(provider, reg, nil, nil)
	s := NewSession(tabs, provider, reg, nil, nil)

	tree := []*FileNode{
		{ID: "ok.go", Name: "ok.go", Kind: NodeFile, Handle: "/abs/ok.go"},
		{ID: "bad.go", Name: "bad.go", Kind: NodeFile, Handle: "/abs/bad.go"},
	}
	s.registerTree(context.Background(), tree)

	if _, ok := reg.entry("ok.go"); !ok {
		t.Error("readable file should be registered")
	}
	if _, ok := reg.entry("bad.go"); ok {
		t.Error("unreadable file should be skipped")
	}
}

func TestOpenPathFromTree(t *testing.T) {
	provider := &treeProvider{tree: []*FileNode{
		{
			ID:   "src",
			Name: "src",
			Kind: NodeFolder,
			Children: []*FileNode{
				{ID: "src/main.py", Name: "main.py", Kind: NodeFile, Content: "body"},
			},
		},
	}}
	s := newTestSession(provider, nil)
	if err := s.OpenFolder(context.Background()); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}

	tab := s.OpenPath(context.Background(), "src/main.py")
	if tab == nil || tab.Content != "body" {
		t.Fatalf("tab = %+v", tab)
	}
}

func TestOpenPathUnknownDropped(t *testing.T) {
	s := newTestSession(nil, nil)
	if tab := s.OpenPath(context.Background(), "nowhere.py"); tab != nil {
		t.Errorf("tab = %+v, want nil", tab)
	}
}

func TestResolveTargetIDPrecedence(t *testing.T) {
	reg := newFakeRegistry()
	reg.Register("reg.py", "cache/reg.py", "r", "python")
	provider := &treeProvider{tree: []*FileNode{
		{ID: "tree/only.py", Name: "only.py", Kind: NodeFile, Content: "t"},
	}}
	tabs := NewTabStore(provider, reg, nil, nil)
	s := NewSession(tabs, provider, reg, nil, nil)
	if err := s.OpenFolder(context.Background()); err != nil {
		t.Fatalf("OpenFolder: %v", err)
	}
	s.TabStore().Open(context.Background(), virtualNode("open.py", "o"), "")

	if got := s.ResolveTargetID("open.py"); got != "open.py" {
		t.Errorf("open tab resolution = %q", got)
	}
	if got := s.ResolveTargetID("only.py"); got != "tree/only.py" {
		t.Errorf("tree resolution = %q", got)
	}
	if got := s.ResolveTargetID("reg.py"); got != "cache/reg.py" {
		t.Errorf("registry resolution = %q", got)
	}
	if got := s.ResolveTargetID("fresh.py"); got != "fresh.py" {
		t.Errorf("unknown path resolution = %q, want the path itself", got)
	}
	// Empty path names the active tab.
	if got := s.ResolveTargetID(""); got != "open.py" {
		t.Errorf("empty path resolution = %q, want active tab id", got)
	}
}

func TestStageEditsRoundTrip(t *testing.T) {
	s := newTestSession(nil, newFakeRegistry())
	s.TabStore().Open(context.Background(), virtualNode("main.py", "a\nb"), "")

	staged := s.StageEdits([]PendingEdit{
		{Action: ActionDeleteLines, StartLine: 2, TargetFileID: "main.py", Explanation: "drop b"},
	})
	if len(staged) != 1 || staged[0].Pending == nil {
		t.Fatalf("staged = %+v", staged)
	}

	if !s.AcceptEdit("main.py", 0) {
		t.Fatal("AcceptEdit failed")
	}
	if got := s.TabStore().Tab("main.py").Content; got != "a" {
		t.Errorf("Content = %q, want %q", got, "a")
	}
}
