// Package harvest implements the OAI-PMH incremental-harvest state
// machine of spec.md § 4.5: Identify, then either the resumption-token
// override or a date-bounded first page, then the LoopByToken loop
// with the stuck-token safeguard, ending in a clean completion that
// persists the server's own responseDate.
package harvest

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	gokoxml "github.com/moovweb/gokogiri/xml"

	"github.com/mshroom/RecordManager/internal/httpx"
	"github.com/mshroom/RecordManager/internal/idnorm"
	"github.com/mshroom/RecordManager/internal/oaixml"
	"github.com/mshroom/RecordManager/internal/record"
)

// RecordCallback receives one harvested record envelope. Returning an
// error aborts the harvest immediately; the contract requires it
// tolerate being invoked in the same process as the driver (spec.md §
// 6, "Callback contract").
type RecordCallback func(env record.Envelope) error

// HeaderCallback is the reduced ListIdentifiers variant: it receives
// only the header, never a metadata payload.
type HeaderCallback func(source, id string, deleted bool) error

// Driver runs a single Session against a single OAI-PMH endpoint.
type Driver struct {
	Session   *record.Session
	HTTP      *httpx.Client
	Norm      *idnorm.Normalizer
	XML       oaixml.SourceConfig
	UserAgent string

	OnRecord RecordCallback
}

// New wires up a Driver with the RecordManager-Harvester default
// User-Agent used by every source.
func New(sess *record.Session, client *httpx.Client, norm *idnorm.Normalizer, xmlCfg oaixml.SourceConfig, onRecord RecordCallback) *Driver {
	return &Driver{
		Session:   sess,
		HTTP:      client,
		Norm:      norm,
		XML:       xmlCfg,
		UserAgent: "RecordManager-Harvester/1.0",
		OnRecord:  onRecord,
	}
}

// Run drives the full ListRecords state machine to completion or a
// fatal error. Session.LastHarvestedDate is set only on the success
// path — per spec.md § 7, no partial success is persisted.
func (d *Driver) Run() error {
	if err := d.identify(); err != nil {
		return err
	}

	token := d.Session.ResumptionTokenOverride
	firstArgs := d.listArgs()

	for {
		isResumption := token != ""
		vals := firstArgs
		if isResumption {
			vals = url.Values{"resumptionToken": {token}}
		}

		doc, err := d.fetchAndParse("ListRecords", vals, isResumption)
		if err != nil {
			return err
		}

		nextToken, err := d.processRecords(doc)
		doc.Free()
		if err != nil {
			return err
		}

		if nextToken == "" {
			break
		}
		if err := d.Session.Safeguard(nextToken); err != nil {
			return err
		}
		token = nextToken
	}

	d.Session.LastHarvestedDate = d.Session.Granularity.Format(d.Session.ServerDate)
	return nil
}

// ListIdentifiers drives the reduced state machine described in
// spec.md § 4.5: same token loop, but onHeader is invoked per header
// instead of a full record being fetched.
func (d *Driver) ListIdentifiers(onHeader HeaderCallback) error {
	if err := d.identify(); err != nil {
		return err
	}

	token := d.Session.ResumptionTokenOverride
	firstArgs := d.listArgs()

	for {
		isResumption := token != ""
		vals := firstArgs
		if isResumption {
			vals = url.Values{"resumptionToken": {token}}
		}

		doc, err := d.fetchAndParse("ListIdentifiers", vals, isResumption)
		if err != nil {
			return err
		}

		nextToken, err := d.processHeaders(doc, onHeader)
		doc.Free()
		if err != nil {
			return err
		}

		if nextToken == "" {
			break
		}
		if err := d.Session.Safeguard(nextToken); err != nil {
			return err
		}
		token = nextToken
	}

	d.Session.LastHarvestedDate = d.Session.Granularity.Format(d.Session.ServerDate)
	return nil
}

func (d *Driver) listArgs() url.Values {
	vals := url.Values{"metadataPrefix": {d.Session.Prefix}}
	if d.Session.Set != "" {
		vals.Set("set", d.Session.Set)
	}
	if d.Session.From != nil {
		vals.Set("from", d.Session.Granularity.Format(*d.Session.From))
	}
	if d.Session.Until != nil {
		vals.Set("until", d.Session.Granularity.Format(*d.Session.Until))
	}
	return vals
}

// identify fetches the Identify verb, negotiates granularity when it
// is configured as "auto", and always captures responseDate as the
// server's wall-clock reference — the value that is persisted, not
// the client's own clock.
func (d *Driver) identify() error {
	doc, err := d.fetchAndParse("Identify", url.Values{}, false)
	if err != nil {
		return err
	}
	defer doc.Free()

	root := doc.Root()

	if d.Session.Granularity == record.GranularityAuto {
		identifyNode := oaixml.FirstDescendantByLocalName(root, "Identify")
		gran := oaixml.FirstDescendantByLocalName(identifyNode, "granularity")
		if gran != nil && gran.Content() == "YYYY-MM-DD" {
			d.Session.Granularity = record.GranularityDate
		} else {
			d.Session.Granularity = record.GranularitySeconds
		}
	}

	dateNode := oaixml.FirstDescendantByLocalName(root, "responseDate")
	if dateNode == nil {
		return &record.MalformedResponseError{Path: "<Identify>", Errors: []error{fmt.Errorf("Identify response missing responseDate")}}
	}
	serverDate, err := parseOaiDate(dateNode.Content())
	if err != nil {
		return &record.MalformedResponseError{Path: "<Identify>", Errors: []error{err}}
	}
	d.Session.ServerDate = serverDate
	return nil
}

func parseOaiDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (d *Driver) fetchAndParse(verb string, vals url.Values, isResumption bool) (*oaixml.Document, error) {
	out := make(url.Values, len(vals)+1)
	for k, v := range vals {
		out[k] = append([]string(nil), v...)
	}
	out.Set("verb", verb)

	fetchURL := d.Session.BaseURL + "?" + out.Encode()
	headers := map[string]string{"User-Agent": d.UserAgent}

	_, body, err := d.HTTP.Get(fetchURL, headers)
	if err != nil {
		return nil, err
	}
	return oaixml.Process(body, isResumption, d.XML)
}

// processRecords walks the immediate <record> children of a
// ListRecords response, computes each record's id, and emits an
// envelope via OnRecord — a delete envelope for header/@status =
// "deleted", otherwise an upsert envelope carrying the metadata
// element's first child with inherited namespaces copied onto it.
func (d *Driver) processRecords(doc *oaixml.Document) (string, error) {
	root := doc.Root()
	listRecords := oaixml.FirstDescendantByLocalName(root, "ListRecords")
	if listRecords == nil {
		return "", nil
	}

	for _, rec := range oaixml.ImmediateChildrenByTagName(listRecords, "record") {
		header := firstChildNamed(rec, "header")
		if header == nil {
			continue
		}
		idNode := firstChildNamed(header, "identifier")
		if idNode == nil {
			continue
		}
		id := d.Norm.Normalize(idNode.Content())

		if isDeletedStatus(header.Attr("status")) {
			if err := d.OnRecord(record.Envelope{Source: d.Session.SourceID, ID: id, Deleted: true}); err != nil {
				return "", err
			}
			continue
		}

		metadata := firstChildNamed(rec, "metadata")
		if metadata == nil {
			continue
		}
		payloadRoot := oaixml.FirstElementChild(metadata)
		if payloadRoot == nil {
			continue
		}

		inheritNamespaces(payloadRoot, rec)

		if err := d.OnRecord(record.Envelope{Source: d.Session.SourceID, ID: id, Payload: []byte(payloadRoot.String())}); err != nil {
			return "", err
		}
	}

	return findResumptionToken(listRecords), nil
}

func (d *Driver) processHeaders(doc *oaixml.Document, onHeader HeaderCallback) (string, error) {
	root := doc.Root()
	listIdentifiers := oaixml.FirstDescendantByLocalName(root, "ListIdentifiers")
	if listIdentifiers == nil {
		return "", nil
	}

	for _, header := range oaixml.ImmediateChildrenByTagName(listIdentifiers, "header") {
		idNode := firstChildNamed(header, "identifier")
		if idNode == nil {
			continue
		}
		id := d.Norm.Normalize(idNode.Content())
		deleted := isDeletedStatus(header.Attr("status"))
		if err := onHeader(d.Session.SourceID, id, deleted); err != nil {
			return "", err
		}
	}

	return findResumptionToken(listIdentifiers), nil
}

func firstChildNamed(node gokoxml.Node, name string) gokoxml.Node {
	children := oaixml.ImmediateChildrenByTagName(node, name)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func isDeletedStatus(status string) bool {
	return strings.EqualFold(status, "deleted")
}

func findResumptionToken(container gokoxml.Node) string {
	tok := oaixml.FirstDescendantByLocalName(container, "resumptionToken")
	if tok == nil {
		return ""
	}
	return tok.Content()
}

// inheritNamespaces copies every xmlns declaration in scope at rec
// (walking up to, but not past, its parent chain within the document)
// onto target as an attribute, unless it is the reserved xml
// namespace or target already declares it. This is what lets a
// standalone metadata fragment be re-parsed and queried by its
// original namespace URIs once it leaves the enclosing OAI-PMH
// envelope.
func inheritNamespaces(target, rec gokoxml.Node) {
	for ancestor := rec; ancestor != nil; ancestor = ancestor.Parent() {
		for name, attr := range ancestor.Attributes() {
			if !isNamespaceAttr(name) || name == "xmlns:xml" {
				continue
			}
			if target.Attr(name) != "" {
				continue
			}
			target.SetAttr(name, attr.Value())
		}
	}
}

func isNamespaceAttr(name string) bool {
	return name == "xmlns" || strings.HasPrefix(name, "xmlns:")
}
