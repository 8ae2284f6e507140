// Package record holds the data model shared across the harvest and
// enrichment pipeline: the record envelope handed to sinks, the
// harvest session state, and the enrichment cache entry shape.
package record

import "time"

// Envelope is the unit of work handed from the harvest driver to the
// worker pool, and from the worker pool to a sink.
//
// Invariant: Deleted == true implies Payload == nil. Deleted == false
// implies Payload is a well-formed XML fragment rooted at the first
// element inside <metadata>, with inherited namespaces copied onto the root so
// the fragment stands alone.
type Envelope struct {
	Source  string
	ID      string
	Deleted bool
	Payload []byte
}

// Granularity is the OAI-PMH date precision negotiated with a source.
type Granularity string

const (
	GranularityAuto    Granularity = "auto"
	GranularityDate    Granularity = "YYYY-MM-DD"
	GranularitySeconds Granularity = "YYYY-MM-DDTHH:MM:SSZ"
)

// Format renders t to the wire representation for this granularity.
func (g Granularity) Format(t time.Time) string {
	if g == GranularitySeconds {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	}
	return t.UTC().Format("2006-01-02")
}

// RewriteRule is one (match, replacement) pair in an id-rewrite
// pipeline. Rules are applied in list order — this is
// position-correlated with the source config's idSearch/idReplace
// lists and must never be silently reordered.
type RewriteRule struct {
	Pattern     string
	Replacement string
}

// Session is the mutable state of a single harvest run against one
// data source. It is created when a harvest starts and discarded on
// completion or fatal error; nothing about it survives a failed run
// except what the caller chooses to log.
type Session struct {
	SourceID   string
	BaseURL    string
	Set        string
	Prefix     string
	IDPrefix   string
	IDRewrites []RewriteRule

	Granularity Granularity
	From        *time.Time
	Until       *time.Time

	ResumptionTokenOverride string

	// ServerDate is captured from Identify's <responseDate> and is
	// the value persisted as LastHarvestedDate on clean completion.
	ServerDate time.Time

	ChangedRecords int
	DeletedRecords int

	LastToken   string
	RepeatCount int
	RepeatLimit int

	// LastHarvestedDate is set only on clean completion of a harvest,
	// formatted to Granularity from ServerDate. A caller that observes
	// a non-empty value after Run returns knows it is safe to persist.
	LastHarvestedDate string
}

// NewSession returns a Session with the safeguard defaults from
// spec.md § 3 applied.
func NewSession(sourceID, baseURL string) *Session {
	return &Session{
		SourceID:    sourceID,
		BaseURL:     baseURL,
		Granularity: GranularityAuto,
		RepeatLimit: 100,
	}
}

// Safeguard records a resumption token seen at the top of a
// LoopByToken iteration. It returns a *StuckResumptionTokenError once
// the same token has been repeated RepeatLimit times in a row, that
// is, seen RepeatLimit+1 times consecutively.
func (s *Session) Safeguard(token string) error {
	if token == s.LastToken && token != "" {
		s.RepeatCount++
	} else {
		s.RepeatCount = 0
		s.LastToken = token
	}
	if s.RepeatCount >= s.RepeatLimit {
		return &StuckResumptionTokenError{Token: token, Limit: s.RepeatLimit}
	}
	return nil
}

// CacheEntry is one row of the enrichment cache: pipe-delimited label
// lists keyed by canonical vocabulary fetch URL. Immutable once
// written; TTL is the caller's concern.
type CacheEntry struct {
	PrefLabels string
	AltLabels  string
}

// SplitLabels splits a pipe-delimited label list, skipping empties.
func SplitLabels(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '|' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
