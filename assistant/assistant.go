// Package assistant decodes the JSON payloads produced by the voice/AI
// layer into editor types. Speech capture and natural-language parsing
// happen upstream; by the time a payload reaches this package it is a
// structured edit instruction or a free-form reply.
package assistant

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/halcyondev/parley/editor"
)

// EditInstruction is one structured edit from the command layer. Line
// numbers are 1-based; zero means unset.
type EditInstruction struct {
	Action       string `json:"action"`
	Code         string `json:"code"`
	InsertAtLine int    `json:"insert_at_line,omitempty"`
	StartLine    int    `json:"start_line,omitempty"`
	EndLine      int    `json:"end_line,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// Payload is either a single instruction or a batch of edits sharing one
// explanation.
type Payload struct {
	EditInstruction
	Edits []EditInstruction `json:"edits,omitempty"`
}

// Reply is a free-form assistant response. Empty Code means the reply is
// an explanation only.
type Reply struct {
	Code        string `json:"code,omitempty"`
	InsertMode  string `json:"insertMode,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// ParsePayload decodes raw JSON into a flat instruction list. A batched
// payload's shared explanation is copied onto entries that lack their own.
func ParsePayload(raw []byte) ([]EditInstruction, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode edit payload: %w", err)
	}
	if len(p.Edits) > 0 {
		out := make([]EditInstruction, 0, len(p.Edits))
		for _, e := range p.Edits {
			if e.Explanation == "" {
				e.Explanation = p.Explanation
			}
			out = append(out, e)
		}
		return out, nil
	}
	if p.Action == "" {
		return nil, errors.New("edit payload has no action")
	}
	return []EditInstruction{p.EditInstruction}, nil
}

// ToPendingEdits converts instructions into editor proposals. resolve maps
// each file path onto the session's tab id space; nil keeps paths as ids.
func ToPendingEdits(instrs []EditInstruction, resolve func(string) string) []editor.PendingEdit {
	out := make([]editor.PendingEdit, 0, len(instrs))
	for _, in := range instrs {
		id := in.FilePath
		if resolve != nil {
			id = resolve(in.FilePath)
		}
		out = append(out, editor.PendingEdit{
			Action:       editor.EditAction(in.Action),
			Code:         in.Code,
			InsertAtLine: in.InsertAtLine,
			StartLine:    in.StartLine,
			EndLine:      in.EndLine,
			Explanation:  in.Explanation,
			TargetFileID: id,
		})
	}
	return out
}

// ParseReply decodes a free-form reply. An unknown or missing insert mode
// defaults to replace.
func ParseReply(raw []byte) (editor.AssistantReply, error) {
	var r Reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return editor.AssistantReply{}, fmt.Errorf("decode assistant reply: %w", err)
	}
	mode := editor.InsertMode(r.InsertMode)
	switch mode {
	case editor.InsertReplace, editor.InsertAppend, editor.InsertCursor:
	default:
		mode = editor.InsertReplace
	}
	return editor.AssistantReply{Code: r.Code, InsertMode: mode, Explanation: r.Explanation}, nil
}
