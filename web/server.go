// Package web serves the browser editor frontend: static assets plus a
// JSON-RPC WebSocket carrying session operations and change broadcasts.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/halcyondev/parley/assistant"
	"github.com/halcyondev/parley/editor"
)

//go:embed static/*
var staticFS embed.FS

// SessionAPI is the slice of editor session behavior the frontend drives.
type SessionAPI interface {
	OpenPath(ctx context.Context, id string) *editor.Tab
	OpenByName(name string) *editor.Tab
	CloseTab(id string)
	Activate(id string) bool
	UpdateBuffer(id, text string)
	AcceptEdit(id string, cursorLine int) bool
	RejectEdit(id string) bool
	Tabs() []*editor.Tab
	ActiveTabID() string
	Tree() []*editor.FileNode
	Search(query string) []editor.Match
	HandleReply(reply editor.AssistantReply, cursorLine int)
	ResolveTargetID(filePath string) string
	StageEdits(edits []editor.PendingEdit) []*editor.Tab
	RecentActivity(n int) []editor.ActivityRecord
}

// Server is the HTTP + WebSocket server backing the browser frontend.
type Server struct {
	session  SessionAPI
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[string]*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type pendingPayload struct {
	Action       string `json:"action"`
	Code         string `json:"code"`
	InsertAtLine int    `json:"insertAtLine,omitempty"`
	StartLine    int    `json:"startLine,omitempty"`
	EndLine      int    `json:"endLine,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
}

type tabPayload struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Language string          `json:"language,omitempty"`
	Text     string          `json:"text"`
	Dirty    bool            `json:"dirty"`
	Pending  *pendingPayload `json:"pending,omitempty"`
}

type nodePayload struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Language string        `json:"language,omitempty"`
	Children []nodePayload `json:"children,omitempty"`
}

// NewServer creates a server backed by the given session.
func NewServer(session SessionAPI, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		session: session,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*wsClient),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		s.handleWebSocket(w, r)
		return
	}
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		http.Error(w, "static files unavailable", http.StatusInternalServerError)
		return
	}
	http.FileServer(http.FS(sub)).ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	id := uuid.NewString()
	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients[id] = client
	s.mu.Unlock()
	s.logger.Debug("client connected", "client", id)

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		s.logger.Debug("client disconnected", "client", id)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		resp := s.handleRPC(r.Context(), req)
		data, _ := json.Marshal(resp)
		client.mu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
	}
}

func (s *Server) handleRPC(ctx context.Context, req rpcRequest) rpcResponse {
	switch req.Method {
	case "openFile":
		return s.rpcOpenFile(ctx, req)
	case "openByName":
		return s.rpcOpenByName(req)
	case "closeTab":
		return s.rpcCloseTab(req)
	case "activateTab":
		return s.rpcActivateTab(req)
	case "updateBuffer":
		return s.rpcUpdateBuffer(req)
	case "acceptEdit":
		return s.rpcAcceptEdit(req)
	case "rejectEdit":
		return s.rpcRejectEdit(req)
	case "listTabs":
		return s.rpcListTabs(req)
	case "tree":
		return s.rpcTree(req)
	case "search":
		return s.rpcSearch(req)
	case "assistantReply":
		return s.rpcAssistantReply(req)
	case "codeActions":
		return s.rpcCodeActions(req)
	case "recentActivity":
		return s.rpcRecentActivity(req)
	default:
		return rpcResponse{
			ID:    req.ID,
			Error: &rpcError{Code: -32601, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

func paramsError(req rpcRequest, err error) rpcResponse {
	return rpcResponse{ID: req.ID, Error: &rpcError{Code: -32602, Message: err.Error()}}
}

func toPendingPayload(edit *editor.PendingEdit) *pendingPayload {
	if edit == nil {
		return nil
	}
	return &pendingPayload{
		Action:       string(edit.Action),
		Code:         edit.Code,
		InsertAtLine: edit.InsertAtLine,
		StartLine:    edit.StartLine,
		EndLine:      edit.EndLine,
		Explanation:  edit.Explanation,
	}
}

func toTabPayload(tab *editor.Tab) tabPayload {
	return tabPayload{
		ID:       tab.ID,
		Name:     tab.Name,
		Language: tab.Language,
		Text:     tab.Content,
		Dirty:    tab.Dirty,
		Pending:  toPendingPayload(tab.Pending),
	}
}

func toNodePayloads(nodes []*editor.FileNode) []nodePayload {
	out := make([]nodePayload, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodePayload{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     string(n.Kind),
			Language: n.Language,
			Children: toNodePayloads(n.Children),
		})
	}
	return out
}

func (s *Server) tabList() map[string]any {
	tabs := s.session.Tabs()
	payloads := make([]tabPayload, 0, len(tabs))
	for _, tab := range tabs {
		payloads = append(payloads, toTabPayload(tab))
	}
	return map[string]any{"tabs": payloads, "active": s.session.ActiveTabID()}
}

func (s *Server) rpcOpenFile(ctx context.Context, req rpcRequest) rpcResponse {
	var p struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	tab := s.session.OpenPath(ctx, p.Path)
	if tab == nil {
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: -32000, Message: fmt.Sprintf("cannot open %q", p.Path)}}
	}
	s.NotifyTabsChanged()
	return rpcResponse{ID: req.ID, Result: toTabPayload(tab)}
}

func (s *Server) rpcOpenByName(req rpcRequest) rpcResponse {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	tab := s.session.OpenByName(p.Name)
	if tab == nil {
		// Unresolvable references are dropped, not errored.
		return rpcResponse{ID: req.ID, Result: map[string]any{"found": false}}
	}
	s.NotifyTabsChanged()
	return rpcResponse{ID: req.ID, Result: map[string]any{"found": true, "tab": toTabPayload(tab)}}
}

func (s *Server) rpcCloseTab(req rpcRequest) rpcResponse {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	s.session.CloseTab(p.ID)
	s.NotifyTabsChanged()
	return rpcResponse{ID: req.ID, Result: s.tabList()}
}

func (s *Server) rpcActivateTab(req rpcRequest) rpcResponse {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	ok := s.session.Activate(p.ID)
	return rpcResponse{ID: req.ID, Result: map[string]any{"ok": ok, "active": s.session.ActiveTabID()}}
}

func (s *Server) rpcUpdateBuffer(req rpcRequest) rpcResponse {
	var p struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	s.session.UpdateBuffer(p.ID, p.Text)
	return rpcResponse{ID: req.ID, Result: map[string]string{"status": "ok"}}
}

func (s *Server) rpcAcceptEdit(req rpcRequest) rpcResponse {
	var p struct {
		ID         string `json:"id"`
		CursorLine int    `json:"cursorLine"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	applied := s.session.AcceptEdit(p.ID, p.CursorLine)
	if applied {
		s.NotifyTabsChanged()
	}
	return rpcResponse{ID: req.ID, Result: map[string]any{"applied": applied}}
}

func (s *Server) rpcRejectEdit(req rpcRequest) rpcResponse {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	rejected := s.session.RejectEdit(p.ID)
	if rejected {
		s.NotifyTabsChanged()
	}
	return rpcResponse{ID: req.ID, Result: map[string]any{"rejected": rejected}}
}

func (s *Server) rpcListTabs(req rpcRequest) rpcResponse {
	return rpcResponse{ID: req.ID, Result: s.tabList()}
}

func (s *Server) rpcTree(req rpcRequest) rpcResponse {
	return rpcResponse{ID: req.ID, Result: map[string]any{"nodes": toNodePayloads(s.session.Tree())}}
}

func (s *Server) rpcSearch(req rpcRequest) rpcResponse {
	var p struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	return rpcResponse{ID: req.ID, Result: map[string]any{"matches": s.session.Search(p.Query)}}
}

func (s *Server) rpcAssistantReply(req rpcRequest) rpcResponse {
	var p struct {
		Reply      json.RawMessage `json:"reply"`
		CursorLine int             `json:"cursorLine"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	reply, err := assistant.ParseReply(p.Reply)
	if err != nil {
		return paramsError(req, err)
	}
	s.session.HandleReply(reply, p.CursorLine)
	if reply.Code != "" {
		s.NotifyTabsChanged()
	}
	return rpcResponse{ID: req.ID, Result: s.tabList()}
}

func (s *Server) rpcCodeActions(req rpcRequest) rpcResponse {
	var p struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return paramsError(req, err)
	}
	instrs, err := assistant.ParsePayload(p.Payload)
	if err != nil {
		return paramsError(req, err)
	}
	edits := assistant.ToPendingEdits(instrs, s.session.ResolveTargetID)
	staged := s.session.StageEdits(edits)
	ids := make([]string, 0, len(staged))
	for _, tab := range staged {
		ids = append(ids, tab.ID)
	}
	s.NotifyTabsChanged()
	return rpcResponse{ID: req.ID, Result: map[string]any{"staged": ids, "active": s.session.ActiveTabID()}}
}

func (s *Server) rpcRecentActivity(req rpcRequest) rpcResponse {
	var p struct {
		Limit int `json:"limit"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return paramsError(req, err)
		}
	}
	return rpcResponse{ID: req.ID, Result: map[string]any{"records": s.session.RecentActivity(p.Limit)}}
}

// Broadcast sends a notification to every connected client.
func (s *Server) Broadcast(method string, params any) {
	msg, err := json.Marshal(map[string]any{
		"method": method,
		"params": params,
	})
	if err != nil {
		return
	}
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
	}
}

// NotifyTabsChanged broadcasts the current tab list.
func (s *Server) NotifyTabsChanged() {
	s.Broadcast("tabsChanged", s.tabList())
}

// NotifyTreeChanged broadcasts the current provider tree.
func (s *Server) NotifyTreeChanged() {
	s.Broadcast("treeChanged", map[string]any{"nodes": toNodePayloads(s.session.Tree())})
}
