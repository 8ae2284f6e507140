package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshroom/RecordManager/internal/record"
)

type fakeFetcher struct {
	calls int
	docs  map[string]*graphDocument
}

func (f *fakeFetcher) FetchGraph(fetchURL string) (*graphDocument, error) {
	f.calls++
	return f.docs[fetchURL], nil
}

func TestEnrichAlwaysAppendsURIStrMV(t *testing.T) {
	doc := map[string][]string{}
	cache := NewInMemoryCache()
	fetch := &fakeFetcher{docs: map[string]*graphDocument{}}

	cfg := Config{BaseURL: "http://vocab.example", URLPrefixWhitelist: nil}
	err := Enrich("src", doc, "http://other.example/concept/1", "subject", cfg, cache, fetch)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://other.example/concept/1"}, doc["subject_uri_str_mv"])
	assert.Empty(t, doc["subject"], "non-whitelisted URI must not be resolved")
	assert.Zero(t, fetch.calls)
}

func TestEnrichCacheHitSkipsFetch(t *testing.T) {
	doc := map[string][]string{}
	cache := NewInMemoryCache()
	fetch := &fakeFetcher{docs: map[string]*graphDocument{}}

	cfg := Config{BaseURL: "http://vocab.example", URLPrefixWhitelist: []string{"http://vocab.example/"}}
	uri := "http://vocab.example/concept/1"
	fetchURL := "http://vocab.example/data?format=application/json&uri=http%3A%2F%2Fvocab.example%2Fconcept%2F1"
	cache.Put(fetchURL, record.CacheEntry{PrefLabels: "Cats|Felines", AltLabels: "Kitty"})

	err := Enrich("src", doc, uri, "subject", cfg, cache, fetch)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Cats", "Felines", "Kitty"}, doc["subject"])
	assert.Zero(t, fetch.calls)
}

func TestEnrichFetchesAndCollectsAltLabels(t *testing.T) {
	doc := map[string][]string{}
	cache := NewInMemoryCache()
	uri := "http://vocab.example/concept/1"
	fetchURL := "http://vocab.example/data?format=application/json&uri=http%3A%2F%2Fvocab.example%2Fconcept%2F1"

	fetch := &fakeFetcher{docs: map[string]*graphDocument{
		fetchURL: {
			Graph: []skosConcept{
				{URI: uri, Type: "skos:Concept", AltLabel: []labelRef{{Value: "Cat"}, {Value: "Feline"}}},
			},
		},
	}}

	cfg := Config{BaseURL: "http://vocab.example", URLPrefixWhitelist: []string{"http://vocab.example/"}}
	err := Enrich("src", doc, uri, "subject", cfg, cache, fetch)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Cat", "Feline"}, doc["subject"])
	assert.Equal(t, 1, fetch.calls)

	entry, hit := cache.Get(fetchURL)
	require.True(t, hit)
	assert.Equal(t, "Cat|Feline", entry.AltLabels)
}

func TestEnrichFollowsExactMatch(t *testing.T) {
	doc := map[string][]string{}
	cache := NewInMemoryCache()
	uri := "http://vocab.example/concept/1"
	otherURI := "http://other.example/concept/9"
	fetchURL := "http://vocab.example/data?format=application/json&uri=http%3A%2F%2Fvocab.example%2Fconcept%2F1"
	otherFetchURL := "http://vocab.example/data?format=application/json&uri=http%3A%2F%2Fother.example%2Fconcept%2F9"

	fetch := &fakeFetcher{docs: map[string]*graphDocument{
		fetchURL: {
			Graph: []skosConcept{
				{URI: uri, Type: "skos:Concept", AltLabel: []labelRef{{Value: "Cat"}}, ExactMatch: []string{otherURI}},
			},
		},
		otherFetchURL: {
			Graph: []skosConcept{
				{URI: otherURI, Type: "skos:Concept", AltLabel: []labelRef{{Value: "Kitty"}}, PrefLabel: []labelRef{{Value: "Preferred"}}},
			},
		},
	}}

	cfg := Config{
		BaseURL:               "http://vocab.example",
		URLPrefixWhitelist:    []string{"http://vocab.example/"},
		URIPrefixExactMatches: []string{"http://vocab.example/"},
	}
	err := Enrich("src", doc, uri, "subject", cfg, cache, fetch)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"Cat", "Kitty", "Preferred"}, doc["subject"])
	assert.Equal(t, 2, fetch.calls)

	entry, hit := cache.Get(fetchURL)
	require.True(t, hit)
	assert.Equal(t, "Cat|Kitty", entry.AltLabels)
	assert.Equal(t, "Preferred", entry.PrefLabels)
}
