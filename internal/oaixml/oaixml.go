// Package oaixml implements the XML response processor of spec.md §
// 4.4 / C4: permissive parsing of an OAI-PMH response with
// encoding-repair fallback, optional XSLT transform, and OAI
// protocol-error detection.
package oaixml

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/moovweb/gokogiri"
	gokoxml "github.com/moovweb/gokogiri/xml"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/mshroom/RecordManager/internal/record"
)

// Transformer is the pluggable hook for a per-source XSLT transform
// (§ 6 "oaipmhTransformation"), treated the same way spec.md treats
// record drivers and enrichers: an external collaborator behind a
// narrow interface.
type Transformer interface {
	Transform(doc []byte) ([]byte, error)
}

// SourceConfig carries the per-source knobs that affect how a
// response is processed.
type SourceConfig struct {
	Transform            Transformer
	IgnoreNoRecordsMatch bool
	DumpDir              string
}

// Document wraps a parsed OAI-PMH response.
type Document struct {
	doc *gokoxml.XmlDocument
}

// Root returns the document's root element.
func (d *Document) Root() gokoxml.Node {
	return d.doc.Root()
}

// Bytes serializes the document back to XML.
func (d *Document) Bytes() []byte {
	return []byte(d.doc.String())
}

// Free releases the underlying libxml2 document.
func (d *Document) Free() {
	if d.doc != nil {
		d.doc.Free()
	}
}

// Process implements the five steps of spec.md § 4.4.
func Process(raw []byte, isResumptionRequest bool, cfg SourceConfig) (*Document, error) {
	doc, parseErrs := parsePermissive(raw)

	if doc == nil {
		repaired := repairEncoding(raw)
		doc, parseErrs = parsePermissive(repaired)
	}

	if doc == nil {
		path, dumpErr := dumpMalformed(raw, cfg.DumpDir)
		if dumpErr != nil {
			path = dumpErr.Error()
		}
		return nil, &record.MalformedResponseError{Errors: parseErrs, Path: path}
	}

	wrapped := &Document{doc: doc}

	if cfg.Transform != nil {
		transformed, err := cfg.Transform.Transform(wrapped.Bytes())
		if err != nil {
			wrapped.Free()
			return nil, err
		}
		reparsed, errs := parsePermissive(transformed)
		if reparsed == nil {
			return nil, &record.MalformedResponseError{Errors: errs, Path: "<post-transform>"}
		}
		wrapped.Free()
		wrapped = &Document{doc: reparsed}
	}

	code, text, hasError := findOaiError(wrapped.Root())
	if hasError {
		tolerated := code == "noRecordsMatch" && (isResumptionRequest || cfg.IgnoreNoRecordsMatch)
		if !tolerated {
			wrapped.Free()
			return nil, &record.OaiError{Code: code, Text: text}
		}
	}

	return wrapped, nil
}

func parsePermissive(content []byte) (*gokoxml.XmlDocument, []error) {
	options := gokoxml.DefaultParseOption | gokoxml.XML_PARSE_HUGE
	doc, err := gokoxml.Parse(content, gokoxml.DefaultEncodingBytes, nil, options, gokoxml.DefaultEncodingBytes)
	if err != nil || doc == nil {
		return nil, []error{err}
	}
	return doc, nil
}

// repairEncoding round-trips content through the encoding declared in
// its XML prolog (falling back to windows-1252, the common
// mislabeling seen from OAI-PMH repositories exporting Latin-1 as
// UTF-8) and re-encodes as UTF-8.
func repairEncoding(content []byte) []byte {
	name := declaredEncoding(content)
	if name == "" {
		name = "windows-1252"
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return content
	}

	repaired, _, err := transform.Bytes(enc.NewDecoder(), content)
	if err != nil {
		return content
	}
	return repaired
}

func declaredEncoding(content []byte) string {
	prefix := content
	if len(prefix) > 200 {
		prefix = prefix[:200]
	}
	const marker = "encoding=\""
	idx := indexOf(prefix, marker)
	if idx < 0 {
		return ""
	}
	start := idx + len(marker)
	end := indexOfByte(prefix[start:], '"')
	if end < 0 {
		return ""
	}
	return string(prefix[start : start+end])
}

func indexOf(haystack []byte, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == needle {
			return i
		}
	}
	return -1
}

func indexOfByte(haystack []byte, b byte) int {
	for i, c := range haystack {
		if c == b {
			return i
		}
	}
	return -1
}

func dumpMalformed(raw []byte, dumpDir string) (string, error) {
	if dumpDir == "" {
		dumpDir = os.TempDir()
	}
	path := filepath.Join(dumpDir, fmt.Sprintf("oaipmh-malformed-%s.xml", uuid.New().String()))
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func findOaiError(root gokoxml.Node) (code, text string, found bool) {
	errNode := FirstDescendantByLocalName(root, "error")
	if errNode == nil {
		return "", "", false
	}
	return errNode.Attr("code"), errNode.Content(), true
}
