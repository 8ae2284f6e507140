package pipeline

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshroom/RecordManager/internal/enrich"
	"github.com/mshroom/RecordManager/internal/harvest"
	"github.com/mshroom/RecordManager/internal/httpx"
	"github.com/mshroom/RecordManager/internal/idnorm"
	"github.com/mshroom/RecordManager/internal/oaixml"
	"github.com/mshroom/RecordManager/internal/record"
)

type recordingSink struct {
	mu       sync.Mutex
	applied  []record.Envelope
	perApply int
}

func (s *recordingSink) Apply(env record.Envelope) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, env)
	return s.perApply, nil
}

const identifyXML = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2024-04-01T00:00:00Z</responseDate>
  <Identify><granularity>YYYY-MM-DDThh:mm:ssZ</granularity></Identify>
</OAI-PMH>`

func TestRunDrivesHarvestThroughPoolIntoSink(t *testing.T) {
	const page = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2024-04-01T00:00:00Z</responseDate>
  <ListRecords>
    <record>
      <header><identifier>oai:x:1</identifier></header>
      <metadata><dc><title>a</title></dc></metadata>
    </record>
    <record>
      <header status="deleted"><identifier>oai:x:2</identifier></header>
    </record>
  </ListRecords>
</OAI-PMH>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("verb") {
		case "Identify":
			fmt.Fprint(w, identifyXML)
		case "ListRecords":
			fmt.Fprint(w, page)
		}
	}))
	defer srv.Close()

	sess := record.NewSession("test", srv.URL)
	sess.Prefix = "oai_dc"
	client := httpx.New(httpx.DefaultOptions())
	norm, err := idnorm.New("", nil)
	require.NoError(t, err)

	driver := harvest.New(sess, client, norm, oaixml.SourceConfig{}, nil)

	pl := NewPool("test", 2, 4, func(env record.Envelope) record.Envelope {
		return env
	})
	defer pl.Destroy()

	sink := &recordingSink{perApply: 1}

	require.NoError(t, Run(driver, pl, sink))

	assert.Len(t, sink.applied, 2)
	assert.Equal(t, 1, sess.ChangedRecords)
	assert.Equal(t, 1, sess.DeletedRecords)
}

func TestRunEnrichesRecordsThroughThePool(t *testing.T) {
	const page = `<?xml version="1.0" encoding="UTF-8"?>
<OAI-PMH xmlns="http://www.openarchives.org/OAI/2.0/">
  <responseDate>2024-04-01T00:00:00Z</responseDate>
  <ListRecords>
    <record>
      <header><identifier>oai:x:1</identifier></header>
      <metadata><dc><title>a</title><relation>%s/concept/1</relation></dc></metadata>
    </record>
  </ListRecords>
</OAI-PMH>`

	vocabSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"graph":[{"uri":"`+vocabURI(r)+`","type":"skos:Concept","altLabel":[{"value":"Cats"}]}]}`)
	}))
	defer vocabSrv.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("verb") {
		case "Identify":
			fmt.Fprint(w, identifyXML)
		case "ListRecords":
			fmt.Fprintf(w, page, vocabSrv.URL)
		}
	}))
	defer srv.Close()

	sess := record.NewSession("test", srv.URL)
	sess.Prefix = "oai_dc"
	client := httpx.New(httpx.DefaultOptions())
	norm, err := idnorm.New("", nil)
	require.NoError(t, err)

	driver := harvest.New(sess, client, norm, oaixml.SourceConfig{}, nil)

	cfg := enrich.Config{BaseURL: vocabSrv.URL, URLPrefixWhitelist: []string{vocabSrv.URL}}
	cache := enrich.NewInMemoryCache()
	fetch := &enrich.HTTPFetcher{Get: driver.HTTP.Get}

	pl := NewPool("test", 2, 4, EnrichingProcessor("test", cfg, cache, fetch))
	defer pl.Destroy()

	sink := &recordingSink{perApply: 1}

	require.NoError(t, Run(driver, pl, sink))

	require.Len(t, sink.applied, 1)
	assert.Contains(t, string(sink.applied[0].Payload), "<label>Cats</label>")
}

func vocabURI(r *http.Request) string {
	return r.URL.Query().Get("uri")
}
