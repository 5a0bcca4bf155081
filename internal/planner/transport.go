package planner

import (
	"net/http"
	"path/filepath"
	"strconv"
)

// Headers added to outgoing model requests.
const (
	HeaderTitle   = "X-Title"
	HeaderPage    = "X-Formfill-Page"
	HeaderSource  = "X-Formfill-Source"
	HeaderSession = "X-Formfill-Session"
)

// headerTransport stamps request metadata from the context onto outgoing
// HTTP calls without touching the model client.
type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	// RoundTrippers must not mutate the caller's request.
	req = req.Clone(req.Context())
	if req.Header.Get(HeaderTitle) == "" {
		req.Header.Set(HeaderTitle, "pdf-formfill")
	}
	if meta, ok := RequestMetaFromContext(req.Context()); ok {
		if req.Header.Get(HeaderPage) == "" {
			req.Header.Set(HeaderPage, strconv.Itoa(meta.PageIndex+1))
		}
		if req.Header.Get(HeaderSource) == "" && meta.SourceFile != "" {
			req.Header.Set(HeaderSource, filepath.Base(meta.SourceFile))
		}
		if req.Header.Get(HeaderSession) == "" && meta.SessionID != "" {
			req.Header.Set(HeaderSession, meta.SessionID)
		}
	}
	return base.RoundTrip(req)
}

// NewHTTPClient returns a client whose requests carry the formfill headers.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: &headerTransport{base: http.DefaultTransport}}
}
