package editor

import "strings"

// EditAction names the kinds of buffer edits the assistant can propose.
type EditAction string

const (
	ActionInsert           EditAction = "insert"
	ActionReplaceSelection EditAction = "replace_selection"
	ActionReplaceFile      EditAction = "replace_file"
	ActionCreateFile       EditAction = "create_file"
	ActionDeleteLines      EditAction = "delete_lines"
)

// PendingEdit is a proposed, not-yet-applied buffer edit. At most one exists
// per tab; a newer proposal replaces an unresolved older one. Line numbers
// are 1-based as produced by the command layer; zero means unset.
type PendingEdit struct {
	Action       EditAction
	Code         string
	InsertAtLine int
	StartLine    int
	EndLine      int
	Explanation  string
	TargetFileID string
}

// ApplyEdit applies edit to content and returns the new text. cursorLine is
// the 1-based fallback for an insert with no explicit line. Out-of-range
// line numbers clamp to the nearest boundary instead of failing, so a
// slightly wrong proposal still lands somewhere sensible.
func ApplyEdit(content string, edit PendingEdit, cursorLine int) string {
	switch edit.Action {
	case ActionInsert:
		lines := strings.Split(content, "\n")
		at := edit.InsertAtLine
		if at <= 0 {
			at = cursorLine
		}
		if at <= 0 {
			at = 1
		}
		if at > len(lines)+1 {
			at = len(lines) + 1
		}
		idx := at - 1
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:idx]...)
		out = append(out, edit.Code)
		out = append(out, lines[idx:]...)
		return strings.Join(out, "\n")

	case ActionDeleteLines:
		lines := strings.Split(content, "\n")
		start := edit.StartLine
		if start < 1 {
			start = 1
		}
		end := edit.EndLine
		if end < start {
			end = start
		}
		if start > len(lines) {
			return content
		}
		if end > len(lines) {
			end = len(lines)
		}
		out := make([]string, 0, len(lines)-(end-start+1))
		out = append(out, lines[:start-1]...)
		out = append(out, lines[end:]...)
		return strings.Join(out, "\n")

	case ActionReplaceSelection, ActionReplaceFile, ActionCreateFile:
		// Both replace variants fully overwrite the buffer; create_file
		// seeds a brand-new tab's content.
		return edit.Code

	default:
		return content
	}
}

// CountLines returns the number of lines in text. An empty string is
// considered to have 1 line.
func CountLines(text string) int {
	if text == "" {
		return 1
	}
	return strings.Count(text, "\n") + 1
}

// LinesChanged estimates how many lines an edit touches, for activity
// records.
func LinesChanged(edit PendingEdit) int {
	if edit.Action == ActionDeleteLines {
		start := edit.StartLine
		if start < 1 {
			start = 1
		}
		end := edit.EndLine
		if end < start {
			end = start
		}
		return end - start + 1
	}
	return CountLines(edit.Code)
}
