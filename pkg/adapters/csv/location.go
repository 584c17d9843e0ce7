package csv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Location is where one table lives.
type Location interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// File is a table on the local filesystem.
type File string

func (f File) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(string(f))
}

func (f File) String() string { return string(f) }

// Remote is a table served over HTTP(S).
type Remote struct {
	URL    string
	Client *http.Client
}

func (r Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	client := r.Client
	if client == nil {
		client = DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", r.URL, resp.Status)
	}
	return resp.Body, nil
}

func (r Remote) String() string { return r.URL }

// DefaultSeriesURL is the New York Times cumulative series by state.
const DefaultSeriesURL = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-states.csv"

// DefaultClient bounds every remote fetch.
var DefaultClient = &http.Client{Timeout: 30 * time.Second}

// Locate turns a path or URL into a Location. client may be nil.
func Locate(s string, client *http.Client) Location {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return Remote{URL: s, Client: client}
	}
	return File(s)
}
