package harvest

import (
	"fmt"
	"net/url"

	"github.com/mshroom/RecordManager/internal/oaixml"
	"github.com/mshroom/RecordManager/internal/record"
)

// SetInfo is one entry of a ListSets response.
type SetInfo struct {
	Spec string
	Name string
}

// ListSets pages through every set the endpoint advertises. This and
// GetRecord are supplemented, not part of the core harvest state
// machine, but reuse the same fetch/parse plumbing.
func (d *Driver) ListSets() ([]SetInfo, error) {
	var out []SetInfo
	vals := url.Values{}

	for {
		doc, err := d.fetchAndParse("ListSets", vals, false)
		if err != nil {
			return nil, err
		}

		listSets := oaixml.FirstDescendantByLocalName(doc.Root(), "ListSets")
		if listSets != nil {
			for _, set := range oaixml.ImmediateChildrenByTagName(listSets, "set") {
				spec := firstChildNamed(set, "setSpec")
				name := firstChildNamed(set, "setName")
				info := SetInfo{}
				if spec != nil {
					info.Spec = spec.Content()
				}
				if name != nil {
					info.Name = name.Content()
				}
				out = append(out, info)
			}
		}

		token := ""
		if listSets != nil {
			token = findResumptionToken(listSets)
		}
		doc.Free()
		if token == "" {
			return out, nil
		}
		vals = url.Values{"resumptionToken": {token}}
	}
}

// GetRecord fetches a single record by its raw (pre-rewrite) OAI
// identifier and returns its envelope, with the same id normalization
// and namespace inheritance ProcessRecords applies.
func (d *Driver) GetRecord(oaiID string) (record.Envelope, error) {
	vals := url.Values{
		"metadataPrefix": {d.Session.Prefix},
		"identifier":     {oaiID},
	}
	doc, err := d.fetchAndParse("GetRecord", vals, false)
	if err != nil {
		return record.Envelope{}, err
	}
	defer doc.Free()

	getRecord := oaixml.FirstDescendantByLocalName(doc.Root(), "GetRecord")
	if getRecord == nil {
		return record.Envelope{}, fmt.Errorf("GetRecord response for %q has no GetRecord element", oaiID)
	}
	rec := firstChildNamed(getRecord, "record")
	if rec == nil {
		return record.Envelope{}, fmt.Errorf("GetRecord response for %q has no record element", oaiID)
	}

	header := firstChildNamed(rec, "header")
	if header == nil {
		return record.Envelope{}, fmt.Errorf("record %q has no header", oaiID)
	}
	idNode := firstChildNamed(header, "identifier")
	id := oaiID
	if idNode != nil {
		id = d.Norm.Normalize(idNode.Content())
	}

	if isDeletedStatus(header.Attr("status")) {
		return record.Envelope{Source: d.Session.SourceID, ID: id, Deleted: true}, nil
	}

	metadata := firstChildNamed(rec, "metadata")
	if metadata == nil {
		return record.Envelope{Source: d.Session.SourceID, ID: id}, nil
	}
	payloadRoot := oaixml.FirstElementChild(metadata)
	if payloadRoot == nil {
		return record.Envelope{Source: d.Session.SourceID, ID: id}, nil
	}
	inheritNamespaces(payloadRoot, rec)

	return record.Envelope{Source: d.Session.SourceID, ID: id, Payload: []byte(payloadRoot.String())}, nil
}
