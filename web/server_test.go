package web

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/halcyondev/parley/editor"
)

// fakeSession records the calls the RPC layer makes against it.
type fakeSession struct {
	tabs    []*editor.Tab
	active  string
	tree    []*editor.FileNode
	staged  []editor.PendingEdit
	replies []editor.AssistantReply
	updated map[string]string
	closed  []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{updated: make(map[string]string)}
}

func (f *fakeSession) OpenPath(ctx context.Context, id string) *editor.Tab {
	for _, tab := range f.tabs {
		if tab.ID == id {
			f.active = id
			return tab
		}
	}
	return nil
}

func (f *fakeSession) OpenByName(name string) *editor.Tab {
	for _, tab := range f.tabs {
		if tab.Name == name {
			f.active = tab.ID
			return tab
		}
	}
	return nil
}

func (f *fakeSession) CloseTab(id string) { f.closed = append(f.closed, id) }

func (f *fakeSession) Activate(id string) bool {
	for _, tab := range f.tabs {
		if tab.ID == id {
			f.active = id
			return true
		}
	}
	return false
}

func (f *fakeSession) UpdateBuffer(id, text string) { f.updated[id] = text }

func (f *fakeSession) AcceptEdit(id string, cursorLine int) bool { return id == "has-pending" }

func (f *fakeSession) RejectEdit(id string) bool { return id == "has-pending" }

func (f *fakeSession) Tabs() []*editor.Tab { return f.tabs }

func (f *fakeSession) ActiveTabID() string { return f.active }

func (f *fakeSession) Tree() []*editor.FileNode { return f.tree }

func (f *fakeSession) Search(query string) []editor.Match {
	if query == "" {
		return nil
	}
	return []editor.Match{{TabID: "a.py", Line: 1, Col: 1, Text: query}}
}

func (f *fakeSession) HandleReply(reply editor.AssistantReply, cursorLine int) {
	f.replies = append(f.replies, reply)
}

func (f *fakeSession) ResolveTargetID(filePath string) string {
	if filePath == "" {
		return f.active
	}
	return "resolved/" + filePath
}

func (f *fakeSession) StageEdits(edits []editor.PendingEdit) []*editor.Tab {
	f.staged = edits
	out := make([]*editor.Tab, 0, len(edits))
	for _, e := range edits {
		out = append(out, &editor.Tab{ID: e.TargetFileID, Pending: &e})
	}
	return out
}

func (f *fakeSession) RecentActivity(n int) []editor.ActivityRecord {
	return []editor.ActivityRecord{{Type: editor.ActivityAccept, Filename: "a.py"}}
}

func call(t *testing.T, s *Server, method string, params string) rpcResponse {
	t.Helper()
	req := rpcRequest{ID: 1, Method: method}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return s.handleRPC(context.Background(), req)
}

func TestRPCUnknownMethod(t *testing.T) {
	s := NewServer(newFakeSession(), nil)
	resp := call(t, s, "teleport", "")
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("error = %+v, want -32601", resp.Error)
	}
}

func TestRPCBadParams(t *testing.T) {
	s := NewServer(newFakeSession(), nil)
	resp := call(t, s, "openFile", `{"path":42}`)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("error = %+v, want -32602", resp.Error)
	}
}

func TestRPCOpenFile(t *testing.T) {
	session := newFakeSession()
	session.tabs = []*editor.Tab{{ID: "src/main.py", Name: "main.py", Content: "body"}}
	s := NewServer(session, nil)

	resp := call(t, s, "openFile", `{"path":"src/main.py"}`)
	if resp.Error != nil {
		t.Fatalf("error = %+v", resp.Error)
	}
	tab, ok := resp.Result.(tabPayload)
	if !ok {
		t.Fatalf("result = %T", resp.Result)
	}
	if tab.ID != "src/main.py" || tab.Text != "body" {
		t.Errorf("tab = %+v", tab)
	}
}

func TestRPCOpenFileUnknown(t *testing.T) {
	s := NewServer(newFakeSession(), nil)
	resp := call(t, s, "openFile", `{"path":"ghost.py"}`)
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Errorf("error = %+v, want -32000", resp.Error)
	}
}

func TestRPCOpenByNameNotFoundIsSoft(t *testing.T) {
	s := NewServer(newFakeSession(), nil)
	resp := call(t, s, "openByName", `{"name":"ghost.py"}`)
	if resp.Error != nil {
		t.Fatalf("unresolved name must not error, got %+v", resp.Error)
	}
	result := resp.Result.(map[string]any)
	if found := result["found"].(bool); found {
		t.Error("found = true, want false")
	}
}

func TestRPCCloseAndUpdate(t *testing.T) {
	session := newFakeSession()
	s := NewServer(session, nil)

	call(t, s, "closeTab", `{"id":"a.py"}`)
	if len(session.closed) != 1 || session.closed[0] != "a.py" {
		t.Errorf("closed = %v", session.closed)
	}

	call(t, s, "updateBuffer", `{"id":"a.py","text":"new text"}`)
	if session.updated["a.py"] != "new text" {
		t.Errorf("updated = %v", session.updated)
	}
}

func TestRPCAcceptReject(t *testing.T) {
	s := NewServer(newFakeSession(), nil)

	resp := call(t, s, "acceptEdit", `{"id":"has-pending","cursorLine":1}`)
	if applied := resp.Result.(map[string]any)["applied"].(bool); !applied {
		t.Error("applied = false, want true")
	}
	resp = call(t, s, "rejectEdit", `{"id":"nothing-staged"}`)
	if rejected := resp.Result.(map[string]any)["rejected"].(bool); rejected {
		t.Error("rejected = true, want false")
	}
}

func TestRPCCodeActionsStagesEdits(t *testing.T) {
	session := newFakeSession()
	s := NewServer(session, nil)

	resp := call(t, s, "codeActions", `{"payload":{
		"explanation": "split helpers",
		"edits": [
			{"action":"replace_file","code":"a","file_path":"a.py"},
			{"action":"insert","code":"b","file_path":"b.py"}
		]
	}}`)
	if resp.Error != nil {
		t.Fatalf("error = %+v", resp.Error)
	}
	if len(session.staged) != 2 {
		t.Fatalf("staged = %d, want 2", len(session.staged))
	}
	if session.staged[0].TargetFileID != "resolved/a.py" {
		t.Errorf("TargetFileID = %q, want resolver applied", session.staged[0].TargetFileID)
	}
	if session.staged[0].Explanation != "split helpers" {
		t.Errorf("Explanation = %q, want shared explanation", session.staged[0].Explanation)
	}
}

func TestRPCCodeActionsBadPayload(t *testing.T) {
	s := NewServer(newFakeSession(), nil)
	resp := call(t, s, "codeActions", `{"payload":{"code":"no action"}}`)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("error = %+v, want -32602", resp.Error)
	}
}

func TestRPCAssistantReplyExplainOnly(t *testing.T) {
	session := newFakeSession()
	s := NewServer(session, nil)

	resp := call(t, s, "assistantReply", `{"reply":{"explanation":"it sorts"},"cursorLine":1}`)
	if resp.Error != nil {
		t.Fatalf("error = %+v", resp.Error)
	}
	if len(session.replies) != 1 || session.replies[0].Code != "" {
		t.Errorf("replies = %+v", session.replies)
	}
}

func TestRPCSearch(t *testing.T) {
	s := NewServer(newFakeSession(), nil)
	resp := call(t, s, "search", `{"query":"foo"}`)
	matches := resp.Result.(map[string]any)["matches"].([]editor.Match)
	if len(matches) != 1 || matches[0].Text != "foo" {
		t.Errorf("matches = %+v", matches)
	}
}

func TestRPCRecentActivityNoParams(t *testing.T) {
	s := NewServer(newFakeSession(), nil)
	resp := call(t, s, "recentActivity", "")
	if resp.Error != nil {
		t.Errorf("error = %+v, omitted params should default", resp.Error)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	session := newFakeSession()
	session.tabs = []*editor.Tab{{ID: "a.py", Name: "a.py", Content: "x"}}
	srv := httptest.NewServer(NewServer(session, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(rpcRequest{ID: 7, Method: "listTabs"}); err != nil {
		t.Fatal(err)
	}
	var resp struct {
		ID     float64 `json:"id"`
		Result struct {
			Tabs   []tabPayload `json:"tabs"`
			Active string       `json:"active"`
		} `json:"result"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 7 {
		t.Errorf("id = %v, want 7", resp.ID)
	}
	if len(resp.Result.Tabs) != 1 || resp.Result.Tabs[0].ID != "a.py" {
		t.Errorf("tabs = %+v", resp.Result.Tabs)
	}
}
