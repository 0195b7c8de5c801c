package websearch

import (
	"bytes"
	"encoding/json"
	"strconv"

	"websearch-agent/internal/domain"
)

// Citation pairs a label with the search result it refers to.
type Citation struct {
	Label  string
	Result domain.SearchResult
}

// CitationMap maps contiguous 1-based labels to search results. It is
// immutable once built by IndexCitations.
type CitationMap struct {
	entries []Citation
}

// CitationNotifier receives the citation map of a turn before the answer is
// generated.
type CitationNotifier func(CitationMap)

// IndexCitations labels every result that carries content, in input order,
// starting at "1". Results without content are skipped and consume no label.
func IndexCitations(results []domain.SearchResult) CitationMap {
	entries := make([]Citation, 0, len(results))
	for _, r := range results {
		if r.Content == nil {
			continue
		}
		entries = append(entries, Citation{
			Label:  strconv.Itoa(len(entries) + 1),
			Result: r,
		})
	}
	return CitationMap{entries: entries}
}

func (m CitationMap) Len() int { return len(m.entries) }

// Entries returns the citations in ascending label order.
func (m CitationMap) Entries() []Citation {
	out := make([]Citation, len(m.entries))
	copy(out, m.entries)
	return out
}

// Labels returns "1".."n".
func (m CitationMap) Labels() []string {
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Label
	}
	return out
}

// MarshalJSON encodes the map as a JSON object keyed by label, in numeric
// label order.
func (m CitationMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(e.Label))
		buf.WriteByte(':')
		raw, err := json.Marshal(e.Result)
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
