// Package transporttest provides a scripted transport.Doer for adapter tests.
package transporttest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Reply is one canned response.
type Reply struct {
	Status int
	Body   string
}

// Request is a recorded outbound call.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// Doer replies per "METHOD /path" route. Queued replies are consumed in
// order and the last one repeats.
type Doer struct {
	mu       sync.Mutex
	routes   map[string][]Reply
	Requests []Request
}

func New() *Doer {
	return &Doer{routes: map[string][]Reply{}}
}

// On queues replies for method and path.
func (d *Doer) On(method, path string, replies ...Reply) *Doer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[method+" "+path] = append(d.routes[method+" "+path], replies...)
	return d
}

// OK queues a 200 reply with body.
func (d *Doer) OK(method, path, body string) *Doer {
	return d.On(method, path, Reply{Status: http.StatusOK, Body: body})
}

// Count reports how many calls hit method and path.
func (d *Doer) Count(method, path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range d.Requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request to method and path.
func (d *Doer) Last(method, path string) (Request, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.Requests) - 1; i >= 0; i-- {
		if r := d.Requests[i]; r.Method == method && r.Path == path {
			return r, true
		}
	}
	return Request{}, false
}

func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Requests = append(d.Requests, Request{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   string(body),
	})
	k := req.Method + " " + req.URL.Path
	queue := d.routes[k]
	if len(queue) == 0 {
		return nil, fmt.Errorf("unexpected request %q", k)
	}
	reply := queue[0]
	if len(queue) > 1 {
		d.routes[k] = queue[1:]
	}
	return &http.Response{
		StatusCode: reply.Status,
		Body:       io.NopCloser(bytes.NewBufferString(reply.Body)),
		Header:     make(http.Header),
	}, nil
}
