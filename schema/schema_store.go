package schema

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request is an intercepted request as seen by the cache manager.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Origin string // host of the site the manager serves
}

// NewRequest builds a request for a path or absolute URL.
func NewRequest(method, rawURL, origin string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return &Request{Method: method, URL: u, Header: http.Header{}, Origin: origin}, nil
}

// Key returns the cache key of the request.
func (r *Request) Key() string {
	return RequestKey(r.Method, r.URL)
}

// SameOrigin reports whether the request targets the served site.
func (r *Request) SameOrigin() bool {
	return r.URL.Host == "" || strings.EqualFold(r.URL.Host, r.Origin)
}

// Credentialed reports whether the request carries user credentials.
// Responses to such requests are never written to a shared partition.
func (r *Request) Credentialed() bool {
	return r.Header.Get("Authorization") != "" || r.Header.Get("Cookie") != ""
}

// RequestKey identifies a stored response. Equivalent requests map to the same key.
func RequestKey(method string, u *url.URL) string {
	uri := u.RequestURI()
	if uri == "" {
		uri = "/"
	}
	return strings.ToUpper(method) + " " + uri
}

// PathKey returns the GET key for a site-relative path.
func PathKey(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return "GET " + path
	}
	return RequestKey(http.MethodGet, u)
}

// CachedResponse is a stored (or fetched) response.
type CachedResponse struct {
	Key      string       `json:"key"`
	URL      string       `json:"url"`
	Status   int          `json:"status"`
	Type     ResponseType `json:"type"`
	Header   http.Header  `json:"header"`
	Body     []byte       `json:"body"`
	StoredAt time.Time    `json:"stored_at"`
}

// Cacheable reports whether the response may be written to the runtime partition.
func (r *CachedResponse) Cacheable() bool {
	return r != nil && r.Type == BasicResponse && r.Status == http.StatusOK
}

// OK reports a 2xx status.
func (r *CachedResponse) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy so stored values are never shared with callers.
func (r *CachedResponse) Clone() *CachedResponse {
	if r == nil {
		return nil
	}
	c := *r
	c.Header = make(http.Header, len(r.Header))
	for k, v := range r.Header {
		c.Header[k] = append([]string(nil), v...)
	}
	c.Body = append([]byte(nil), r.Body...)
	return &c
}

// privateHeaders are stripped before a response is stored.
var privateHeaders = []string{"Set-Cookie", "Set-Cookie2"}

// Storable returns a copy without per-user headers.
func (r *CachedResponse) Storable() *CachedResponse {
	c := r.Clone()
	for _, name := range privateHeaders {
		c.Header.Del(name)
	}
	return c
}

// HeaderJSON encodes the header map for SQL and Redis storage.
func (r *CachedResponse) HeaderJSON() string {
	h := map[string][]string{}
	maps.Copy(h, r.Header)
	b, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseHeaderJSON decodes a header map written by HeaderJSON.
func ParseHeaderJSON(raw string) http.Header {
	h := http.Header{}
	if raw == "" {
		return h
	}
	_ = json.Unmarshal([]byte(raw), &h)
	return h
}

// Message is a control message posted to the manager.
type Message struct {
	Type MessageType `json:"type"`
}

// ParseMessage decodes a raw message payload. Unknown shapes yield an empty type.
func ParseMessage(raw []byte) Message {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}
	}
	return m
}

// Recognized reports whether the message type is one the manager acts on.
func (m Message) Recognized() bool {
	return m.Type == SkipWaitingMessage || m.Type == ClearCacheMessage
}

// PrecacheName returns the precache partition name for a version.
func PrecacheName(app, version string) string {
	return app + "-" + version
}

// RuntimeName returns the runtime partition name for a version.
func RuntimeName(app, version string) string {
	return app + "-runtime-" + version
}

// ClassifyPartition reports the kind and version encoded in a partition name.
func ClassifyPartition(app, name string) (PartitionKind, string) {
	if v, ok := strings.CutPrefix(name, app+"-runtime-"); ok && v != "" {
		return RuntimeKind, v
	}
	if v, ok := strings.CutPrefix(name, app+"-"); ok && v != "" {
		return PrecacheKind, v
	}
	return UnknownKind, ""
}
