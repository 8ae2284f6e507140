// Package config loads the per-source ini configuration described in
// spec.md § 6. The teacher's original config layer used
// code.google.com/p/gcfg, a Google Code-hosted module that no longer
// resolves; gopkg.in/ini.v1 is substituted (it is used elsewhere in
// the wider example pack's ini-configured services) and gives the
// same "one struct per section" ergonomics.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/mshroom/RecordManager/internal/record"
)

// Source is one [source "id"] section's parsed configuration.
type Source struct {
	ID       string
	BaseURL  string
	Set      string
	Prefix   string
	IDPrefix string

	IDRewrites []record.RewriteRule

	Granularity record.Granularity

	DebugLog             string
	OaipmhTransformation string
	IgnoreNoRecordsMatch bool
	SameTokenLimit       int
}

// Enrichment is the [enrichment] section.
type Enrichment struct {
	BaseURL               string
	URLPrefixWhitelist    []string
	URIPrefixExactMatches []string
}

// Config is the whole loaded ini document: one Source per configured
// data source, plus the shared enrichment settings.
type Config struct {
	Sources    map[string]*Source
	Enrichment Enrichment
}

// Load parses the ini file at path.
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg := &Config{Sources: make(map[string]*Source)}

	for _, section := range f.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}

		if name == "enrichment" {
			cfg.Enrichment = Enrichment{
				BaseURL:               section.Key("base_url").String(),
				URLPrefixWhitelist:    splitList(section.Key("url_prefix_whitelist").String()),
				URIPrefixExactMatches: splitList(section.Key("uri_prefix_exact_matches").String()),
			}
			continue
		}

		id, ok := strings.CutPrefix(name, "source ")
		if !ok {
			continue
		}
		id = strings.Trim(id, `"`)

		src := &Source{
			ID:                   id,
			BaseURL:              section.Key("url").String(),
			Set:                  section.Key("set").String(),
			Prefix:               section.Key("metadataPrefix").MustString("oai_dc"),
			IDPrefix:             section.Key("idPrefix").String(),
			DebugLog:             section.Key("debuglog").String(),
			OaipmhTransformation: section.Key("oaipmhTransformation").String(),
			IgnoreNoRecordsMatch: section.Key("ignoreNoRecordsMatch").MustBool(false),
			SameTokenLimit:       section.Key("sameResumptionTokenLimit").MustInt(100),
			Granularity:          parseGranularity(section.Key("dateGranularity").MustString("auto")),
		}

		searches := section.Key("idSearch").ValueWithShadows()
		replaces := section.Key("idReplace").ValueWithShadows()
		for i := 0; i < len(searches) && i < len(replaces); i++ {
			src.IDRewrites = append(src.IDRewrites, record.RewriteRule{Pattern: searches[i], Replacement: replaces[i]})
		}

		cfg.Sources[id] = src
	}

	return cfg, nil
}

func parseGranularity(s string) record.Granularity {
	switch s {
	case "YYYY-MM-DD":
		return record.GranularityDate
	case "YYYY-MM-DDTHH:MM:SSZ":
		return record.GranularitySeconds
	default:
		return record.GranularityAuto
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
