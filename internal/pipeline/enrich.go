package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mshroom/RecordManager/internal/enrich"
	"github.com/mshroom/RecordManager/internal/record"
)

// leafElement matches a namespace-qualified leaf element close enough
// to Dublin Core's flat metadata shape to pull field values out of a
// harvested payload without a full tree walk.
var leafElement = regexp.MustCompile(`<(?:[\w.-]+:)?([\w.-]+)[^>]*>([^<]*)</(?:[\w.-]+:)?[\w.-]+>`)

// flattenFields walks payload's leaf elements into a field name ->
// values map, keyed by local (namespace-stripped) element name. This
// is deliberately shallow: it is enough to locate candidate vocabulary
// URIs, not a general record-format transformation.
func flattenFields(payload []byte) map[string][]string {
	doc := make(map[string][]string)
	for _, m := range leafElement.FindAllSubmatch(payload, -1) {
		value := strings.TrimSpace(string(m[2]))
		if value == "" {
			continue
		}
		local := string(m[1])
		doc[local] = append(doc[local], value)
	}
	return doc
}

// EnrichingProcessor returns a worker function for pipeline.NewPool
// that resolves every "relation" value in a harvested record against
// the enrichment vocabulary service (internal/enrich), appending the
// resolved labels as a subject block onto the record's payload.
func EnrichingProcessor(sourceID string, cfg enrich.Config, cache enrich.Cache, fetch enrich.Fetcher) func(record.Envelope) record.Envelope {
	const relationField = "relation"
	const targetField = "subject"

	return func(env record.Envelope) record.Envelope {
		if env.Deleted || len(cfg.URLPrefixWhitelist) == 0 {
			return env
		}

		doc := flattenFields(env.Payload)
		uris := doc[relationField]
		if len(uris) == 0 {
			return env
		}

		before := len(doc[targetField])
		for _, uri := range uris {
			// Enrichment errors (a dead vocabulary service, a bad
			// fetch) must not drop the record itself.
			_ = enrich.Enrich(sourceID, doc, uri, targetField, cfg, cache, fetch)
		}

		labels := doc[targetField][before:]
		if len(labels) == 0 {
			return env
		}
		env.Payload = appendEnrichmentBlock(env.Payload, targetField, labels)
		return env
	}
}

func appendEnrichmentBlock(payload []byte, field string, labels []string) []byte {
	var b strings.Builder
	b.Write(payload)
	fmt.Fprintf(&b, "\n<enrichment field=%q>", field)
	for _, l := range labels {
		fmt.Fprintf(&b, "<label>%s</label>", escapeXMLText(l))
	}
	b.WriteString("</enrichment>")
	return []byte(b.String())
}

func escapeXMLText(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
