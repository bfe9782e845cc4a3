// Package httpproto implements HTTP/1.1 request parsing and response
// construction for the reactor. It has no knowledge of sockets or
// epoll — it only ever sees the bytes a connection's buffer has staged.
package httpproto

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/behrlich/reactor-httpd/internal/bytebuffer"
)

// ParseState is the request parser's FSM state.
type ParseState int

const (
	StateRequestLine ParseState = iota
	StateHeaders
	StateBody
	StateFinish
)

// Code classifies the outcome of a completed parse, mirroring the original
// server's HTTP_CODE enum.
type Code int

const (
	CodeNoRequest Code = iota
	CodeGetRequest
	CodeBadRequest
	CodeNoResource
	CodeForbidden
	CodeFileRequest
	CodeInternalError
	CodeClosedConnection
)

// Request accumulates one HTTP/1.1 request across however many Parse calls
// it takes for all its bytes to arrive.
type Request struct {
	state   ParseState
	method  string
	path    string
	version string
	body    string
	headers map[string]string
	post    map[string]string
}

// NewRequest returns a request parser positioned at the start of a new
// message.
func NewRequest() *Request {
	return &Request{state: StateRequestLine, headers: map[string]string{}, post: map[string]string{}}
}

// Reset returns the request to its initial state so the same struct can be
// reused for the next message on a keep-alive connection.
func (r *Request) Reset() {
	r.state = StateRequestLine
	r.method, r.path, r.version, r.body = "", "", "", ""
	r.headers = map[string]string{}
	r.post = map[string]string{}
}

func (r *Request) Method() string  { return r.method }
func (r *Request) Path() string    { return r.path }
func (r *Request) Version() string { return r.version }
func (r *Request) Body() string    { return r.body }
func (r *Request) Done() bool      { return r.state == StateFinish }

// Header looks up a request header by name (case-sensitive, as sent).
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.headers[name]
	return v, ok
}

// Post looks up a decoded application/x-www-form-urlencoded field.
func (r *Request) Post(key string) (string, bool) {
	v, ok := r.post[key]
	return v, ok
}

// IsKeepAlive reports whether the connection should stay open after this
// request: only an HTTP/1.1 request carrying an explicit
// "Connection: keep-alive" header stays open; every other request
// (including a bare HTTP/1.1 request with no Connection header) closes.
func (r *Request) IsKeepAlive() bool {
	if r.version != "1.1" {
		return false
	}
	conn, ok := r.headers["Connection"]
	return ok && strings.EqualFold(conn, "keep-alive")
}

// Parse feeds buf's currently readable bytes through the FSM, retiring
// whatever it consumes. It returns done=true once the request has reached
// StateFinish, and also, with CodeBadRequest, as soon as the request line is
// malformed. Call Parse again as more bytes arrive for a request that
// straddles several reads.
func (r *Request) Parse(buf *bytebuffer.Buffer) (done bool, code Code) {
	const crlf = "\r\n"

	for r.state != StateFinish {
		if r.state == StateBody {
			data := buf.Peek()
			if !r.parseBody(string(data)) {
				// Not enough bytes for the declared Content-Length yet.
				return false, CodeNoRequest
			}
			buf.Retrieve(len(r.body))
			r.state = StateFinish
			break
		}

		data := buf.Peek()
		idx := strings.Index(string(data), crlf)
		if idx < 0 {
			// Need more bytes for a complete line.
			return false, CodeNoRequest
		}
		line := string(data[:idx])
		buf.Retrieve(idx + len(crlf))

		switch r.state {
		case StateRequestLine:
			if !r.parseRequestLine(line) {
				return true, CodeBadRequest
			}
			r.state = StateHeaders
		case StateHeaders:
			if line == "" {
				if r.method == "POST" {
					r.state = StateBody
				} else {
					r.state = StateFinish
				}
			} else {
				r.parseHeader(line)
			}
		}
	}

	r.parsePath()
	if r.method == "GET" || r.method == "HEAD" {
		return true, CodeGetRequest
	}
	if r.method == "POST" {
		r.parsePost()
		return true, CodeGetRequest
	}
	return true, CodeBadRequest
}

func (r *Request) parseRequestLine(line string) bool {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return false
	}
	version := strings.TrimPrefix(parts[2], "HTTP/")
	if version == parts[2] {
		return false
	}
	r.method, r.path, r.version = parts[0], parts[1], version
	return true
}

func (r *Request) parseHeader(line string) {
	i := strings.Index(line, ":")
	if i < 0 {
		return
	}
	key := strings.TrimSpace(line[:i])
	val := strings.TrimSpace(line[i+1:])
	r.headers[key] = val
}

func (r *Request) parseBody(line string) bool {
	length, err := strconv.Atoi(r.headers["Content-Length"])
	if err != nil {
		length = len(line)
	}
	if len(line) < length {
		return false
	}
	r.body = line[:length]
	return true
}

// parsePath canonicalizes "/" to "/index.html" and appends ".html" to any
// bare default-route name, matching the original server's static routing.
func (r *Request) parsePath() {
	if r.path == "/" {
		r.path = "/index.html"
		return
	}
	if _, ok := defaultHTMLTag[r.path]; ok {
		r.path += ".html"
	}
}

// parsePost decodes a application/x-www-form-urlencoded body into post
// fields when the request declares that content type.
func (r *Request) parsePost() {
	if r.body == "" || r.method != "POST" {
		return
	}
	ct, _ := r.headers["Content-Type"]
	if !strings.Contains(ct, "application/x-www-form-urlencoded") {
		return
	}
	values, err := url.ParseQuery(r.body)
	if err != nil {
		return
	}
	for k, v := range values {
		if len(v) > 0 {
			r.post[k] = v[0]
		}
	}
}
