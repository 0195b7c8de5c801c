package websearch

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"websearch-agent/internal/domain"
)

func result(content string, url string) domain.SearchResult {
	return domain.SearchResult{Content: domain.StringPtr(content), URL: url}
}

func TestIndexCitations_SkipsMissingContent(t *testing.T) {
	results := []domain.SearchResult{
		result("Paris is the capital", "https://a"),
		{URL: "https://b"},
		result("Population 2.1M", "https://c"),
	}

	cm := IndexCitations(results)
	require.Equal(t, 2, cm.Len())
	require.Equal(t, []string{"1", "2"}, cm.Labels())

	entries := cm.Entries()
	require.Equal(t, results[0], entries[0].Result)
	require.Equal(t, results[2], entries[1].Result)

	require.Equal(t, "1. Paris is the capital\n\n2. Population 2.1M\n\n", CombineContent(cm))
}

func TestIndexCitations_Empty(t *testing.T) {
	cm := IndexCitations(nil)
	require.Zero(t, cm.Len())
	require.Empty(t, cm.Labels())
	require.Equal(t, "", CombineContent(cm))

	raw, err := json.Marshal(cm)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(raw))
}

func TestIndexCitations_EmptyContentIsStillLabelled(t *testing.T) {
	cm := IndexCitations([]domain.SearchResult{result("", "https://a"), result("x", "https://b")})
	require.Equal(t, []string{"1", "2"}, cm.Labels())
	require.Equal(t, "1. \n\n2. x\n\n", CombineContent(cm))
}

func TestIndexCitations_ContiguousLabelsInInputOrder(t *testing.T) {
	var results []domain.SearchResult
	var withContent []domain.SearchResult
	for i := 0; i < 25; i++ {
		if i%3 == 0 {
			results = append(results, domain.SearchResult{Title: "no content"})
			continue
		}
		r := result(string(rune('a'+i)), "")
		results = append(results, r)
		withContent = append(withContent, r)
	}

	cm := IndexCitations(results)
	require.Equal(t, len(withContent), cm.Len())
	for i, c := range cm.Entries() {
		require.Equal(t, strconv.Itoa(i+1), c.Label)
		require.Equal(t, withContent[i], c.Result)
	}
}

func TestIndexCitations_Idempotent(t *testing.T) {
	results := []domain.SearchResult{result("one", "u1"), {}, result("two", "u2")}
	require.Equal(t, IndexCitations(results), IndexCitations(results))
}

func TestCitationMap_EntriesIsACopy(t *testing.T) {
	cm := IndexCitations([]domain.SearchResult{result("one", "u1")})
	entries := cm.Entries()
	entries[0].Label = "mutated"
	require.Equal(t, []string{"1"}, cm.Labels())
}

func TestCitationMap_MarshalJSONNumericOrder(t *testing.T) {
	var results []domain.SearchResult
	for i := 0; i < 11; i++ {
		results = append(results, result(strconv.Itoa(i), ""))
	}
	raw, err := json.Marshal(IndexCitations(results))
	require.NoError(t, err)

	s := string(raw)
	require.Less(t, strings.Index(s, `"2":`), strings.Index(s, `"10":`))
	require.Contains(t, s, `"1":{"content":"0"}`)
}
