// Package httpx implements the GET-with-retry helper of spec.md §
// 4.3: fixed-wait retries on transport failure or a non-2xx status,
// with an optional append-only request/response trace log.
package httpx

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mshroom/RecordManager/internal/record"
)

// Options configures one Get call.
type Options struct {
	MaxTries  int
	RetryWait time.Duration
	UserAgent string
	// TraceLog, if non-empty, receives a timestamped request/response
	// pair appended after every attempt.
	TraceLog string
}

// DefaultOptions mirrors the teacher's harvest defaults: a handful of
// retries with a short fixed wait between them.
func DefaultOptions() Options {
	return Options{
		MaxTries:  3,
		RetryWait: 5 * time.Second,
		UserAgent: "RecordManager-Harvester/1.0",
	}
}

// Client wraps an *http.Client with the retry/trace behavior above.
type Client struct {
	HTTP *http.Client
	Opts Options
}

// New returns a Client with the given options and a bare *http.Client.
func New(opts Options) *Client {
	return &Client{HTTP: &http.Client{}, Opts: opts}
}

// Get performs an HTTP GET, retrying up to Opts.MaxTries times on
// transport failure or a status >= 300, sleeping Opts.RetryWait
// between attempts. After the final failed attempt it returns
// *record.TransportFailedError.
func (c *Client) Get(url string, headers map[string]string) (status int, body []byte, err error) {
	tries := c.Opts.MaxTries
	if tries <= 0 {
		tries = 1
	}

	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= tries; attempt++ {
		status, body, err = c.attempt(url, headers)
		if err == nil && status < 300 {
			return status, body, nil
		}
		lastErr = err
		lastStatus = status

		if attempt < tries {
			time.Sleep(c.Opts.RetryWait)
		}
	}

	return lastStatus, nil, &record.TransportFailedError{URL: url, Status: lastStatus, Cause: lastErr}
}

func (c *Client) attempt(url string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	if c.Opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.Opts.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.trace(fmt.Sprintf(">> GET %s", url))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.trace(fmt.Sprintf("<< error: %v", err))
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.trace(fmt.Sprintf("<< error reading body: %v", err))
		return resp.StatusCode, nil, err
	}

	c.trace(fmt.Sprintf("<< %d\n%s", resp.StatusCode, body))
	return resp.StatusCode, body, nil
}

func (c *Client) trace(line string) {
	if c.Opts.TraceLog == "" {
		return
	}
	f, err := os.OpenFile(c.Opts.TraceLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] %s\n", time.Now().UTC().Format(time.RFC3339), line)
	f.Write(buf.Bytes())
}
