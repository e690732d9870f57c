package editor

import "strings"

// Match is a single search hit inside an open tab. Line and Col are
// 1-based; Text is the full matching line for context.
type Match struct {
	TabID string `json:"tabId"`
	Line  int    `json:"line"`
	Col   int    `json:"col"`
	Text  string `json:"text"`
}

// FindInText returns every position where query occurs in text, scanning
// line by line. An empty query matches nothing.
func FindInText(text, query string) []Match {
	if query == "" {
		return nil
	}
	var out []Match
	for li, line := range strings.Split(text, "\n") {
		start := 0
		for {
			idx := strings.Index(line[start:], query)
			if idx < 0 {
				break
			}
			col := start + idx
			out = append(out, Match{Line: li + 1, Col: col + 1, Text: line})
			start = col + len(query)
		}
	}
	return out
}

// Search runs FindInText over every open tab's buffered content, in tab
// order.
func (s *TabStore) Search(query string) []Match {
	var out []Match
	for _, tab := range s.Tabs() {
		for _, m := range FindInText(tab.Content, query) {
			m.TabID = tab.ID
			out = append(out, m)
		}
	}
	return out
}
