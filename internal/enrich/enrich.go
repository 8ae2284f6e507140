// Package enrich implements the vocabulary-enrichment orchestrator of
// spec.md § 4.6: given a URI pulled from a record, resolve it against
// a SKOS concept graph (with a cache in front of the fetch) and fold
// its labels into a flat document.
package enrich

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/mshroom/RecordManager/internal/record"
)

// Config carries the enrichment knobs from spec.md § 6, shared by
// every source (the config file's [enrichment] section).
type Config struct {
	BaseURL                string
	URLPrefixWhitelist     []string
	URIPrefixExactMatches  []string
}

// Cache is the enrichment cache's read/write surface. Implementations
// are expected to be safe for concurrent use — spec.md § 5 treats the
// cache as external and idempotent on key.
type Cache interface {
	Get(fetchURL string) (record.CacheEntry, bool)
	Put(fetchURL string, entry record.CacheEntry)
}

// Fetcher retrieves and decodes the JSON graph document for a fetch
// URL. The default implementation is backed by internal/httpx.
type Fetcher interface {
	FetchGraph(fetchURL string) (*graphDocument, error)
}

// skosConcept is one node of the fetched graph.
type skosConcept struct {
	URI        string      `json:"uri"`
	Type       interface{} `json:"type"`
	AltLabel   []labelRef  `json:"altLabel"`
	PrefLabel  []labelRef  `json:"prefLabel"`
	ExactMatch []string    `json:"exactMatch"`
}

type labelRef struct {
	Value string `json:"value"`
}

type graphDocument struct {
	Graph []skosConcept `json:"graph"`
}

// InMemoryCache is a process-local Cache, useful for tests and for
// single-run harvests that don't need cross-run persistence.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]record.CacheEntry
}

// NewInMemoryCache returns an empty cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]record.CacheEntry)}
}

func (c *InMemoryCache) Get(fetchURL string) (record.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fetchURL]
	return e, ok
}

func (c *InMemoryCache) Put(fetchURL string, entry record.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fetchURL] = entry
}

// HTTPFetcher fetches and decodes the graph document via a get
// function (normally internal/httpx.Client.Get).
type HTTPFetcher struct {
	Get func(url string, headers map[string]string) (status int, body []byte, err error)
}

func (f *HTTPFetcher) FetchGraph(fetchURL string) (*graphDocument, error) {
	_, body, err := f.Get(fetchURL, nil)
	if err != nil {
		return nil, err
	}
	var doc graphDocument
	if err := sonic.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding enrichment graph from %s: %w", fetchURL, err)
	}
	return &doc, nil
}

// Enrich implements the six numbered steps of spec.md § 4.6. doc is a
// flat field-name -> values map mutated in place.
func Enrich(sourceID string, doc map[string][]string, uri, field string, cfg Config, cache Cache, fetch Fetcher) error {
	// 1. Append the URI to the "_uri_str_mv" field regardless of
	// whether anything downstream succeeds.
	uriField := field + "_uri_str_mv"
	doc[uriField] = append(doc[uriField], uri)

	// 2. Reject URIs outside the configured whitelist.
	if !matchesAnyPrefix(uri, cfg.URLPrefixWhitelist) {
		return nil
	}

	fetchURL := fmt.Sprintf("%s/data?format=application/json&uri=%s", strings.TrimRight(cfg.BaseURL, "/"), url.QueryEscape(uri))

	// 4. Cache lookup short-circuits the fetch entirely.
	if entry, hit := cache.Get(fetchURL); hit {
		appendLabels(doc, field, record.SplitLabels(entry.PrefLabels))
		appendLabels(doc, field, record.SplitLabels(entry.AltLabels))
		return nil
	}

	// 5. Fetch the graph and locate the concept matching uri.
	graph, err := fetch.FetchGraph(fetchURL)
	if err != nil {
		return err
	}

	concept := findConcept(graph, uri)
	if concept == nil {
		return nil
	}

	var altLabels, prefLabels []string
	for _, l := range concept.AltLabel {
		if l.Value != "" {
			altLabels = append(altLabels, l.Value)
		}
	}

	// 6. If the concept's own uri matches an exactMatch prefix, follow
	// each referenced URI and pull its labels in too.
	if matchesAnyPrefix(concept.URI, cfg.URIPrefixExactMatches) {
		for _, matchURI := range concept.ExactMatch {
			matchFetchURL := fmt.Sprintf("%s/data?format=application/json&uri=%s", strings.TrimRight(cfg.BaseURL, "/"), url.QueryEscape(matchURI))
			matchGraph, err := fetch.FetchGraph(matchFetchURL)
			if err != nil {
				continue
			}
			matched := findConcept(matchGraph, matchURI)
			if matched == nil {
				continue
			}
			for _, l := range matched.AltLabel {
				if l.Value != "" {
					altLabels = append(altLabels, l.Value)
				}
			}
			for _, l := range matched.PrefLabel {
				if l.Value != "" {
					prefLabels = append(prefLabels, l.Value)
				}
			}
		}
	}

	appendLabels(doc, field, altLabels)
	appendLabels(doc, field, prefLabels)

	cache.Put(fetchURL, record.CacheEntry{
		PrefLabels: strings.Join(prefLabels, "|"),
		AltLabels:  strings.Join(altLabels, "|"),
	})

	return nil
}

func findConcept(graph *graphDocument, uri string) *skosConcept {
	for i := range graph.Graph {
		c := &graph.Graph[i]
		if c.URI != uri {
			continue
		}
		if !isSkosConcept(c.Type) {
			continue
		}
		return c
	}
	return nil
}

func isSkosConcept(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return strings.Contains(v, "skos:Concept")
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.Contains(s, "skos:Concept") {
				return true
			}
		}
	}
	return false
}

func matchesAnyPrefix(uri string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(uri, p) {
			return true
		}
	}
	return false
}

func appendLabels(doc map[string][]string, field string, labels []string) {
	if len(labels) == 0 {
		return
	}
	doc[field] = append(doc[field], labels...)
}
