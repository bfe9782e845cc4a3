package httpproto

import (
	"strconv"
	"testing"

	"github.com/behrlich/reactor-httpd/internal/bytebuffer"
)

func TestParseSimpleGet(t *testing.T) {
	buf := bytebuffer.New()
	buf.AppendString("GET /index.html HTTP/1.1\r\nHost: localhost\r\nConnection: keep-alive\r\n\r\n")

	req := NewRequest()
	done, code := req.Parse(buf)

	if !done {
		t.Fatal("expected Parse to finish a complete GET request")
	}
	if code != CodeGetRequest {
		t.Fatalf("code = %v, want CodeGetRequest", code)
	}
	if req.Method() != "GET" {
		t.Errorf("Method() = %q, want GET", req.Method())
	}
	if req.Path() != "/index.html" {
		t.Errorf("Path() = %q, want /index.html", req.Path())
	}
	if req.Version() != "1.1" {
		t.Errorf("Version() = %q, want 1.1", req.Version())
	}
	if !req.IsKeepAlive() {
		t.Error("expected IsKeepAlive() true")
	}
	if host, ok := req.Header("Host"); !ok || host != "localhost" {
		t.Errorf("Header(Host) = %q, %v", host, ok)
	}
}

func TestParseRootPathCanonicalizesToIndex(t *testing.T) {
	buf := bytebuffer.New()
	buf.AppendString("GET / HTTP/1.1\r\n\r\n")

	req := NewRequest()
	done, _ := req.Parse(buf)
	if !done {
		t.Fatal("expected parse to finish")
	}
	if req.Path() != "/index.html" {
		t.Errorf("Path() = %q, want /index.html", req.Path())
	}
}

func TestParseIncompleteRequestNeedsMoreBytes(t *testing.T) {
	buf := bytebuffer.New()
	buf.AppendString("GET /index.html HTTP/1.1\r\nHost: foo")

	req := NewRequest()
	done, code := req.Parse(buf)
	if done {
		t.Fatal("expected Parse to report incomplete request")
	}
	if code != CodeNoRequest {
		t.Fatalf("code = %v, want CodeNoRequest", code)
	}
	// State machine should retain progress: the buffer should still have
	// the unterminated header line available for the next Parse call.
	if req.Method() != "GET" {
		t.Errorf("expected request line already parsed, got method %q", req.Method())
	}
}

func TestParseMalformedRequestLineIsBadRequest(t *testing.T) {
	buf := bytebuffer.New()
	buf.AppendString("GARBAGE\r\n\r\n")

	req := NewRequest()
	done, code := req.Parse(buf)
	if !done {
		t.Fatal("expected Parse to finish immediately on a malformed request line")
	}
	if code != CodeBadRequest {
		t.Fatalf("code = %v, want CodeBadRequest", code)
	}
}

func TestParsePostDecodesFormBody(t *testing.T) {
	body := "username=alice&password=secret"
	buf := bytebuffer.New()
	buf.AppendString("POST /register HTTP/1.1\r\n")
	buf.AppendString("Content-Type: application/x-www-form-urlencoded\r\n")
	buf.AppendString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	buf.AppendString("\r\n")
	buf.AppendString(body)

	req := NewRequest()
	done, code := req.Parse(buf)
	if !done {
		t.Fatal("expected Parse to finish")
	}
	if code != CodeGetRequest { // CodeGetRequest doubles as "well-formed" for POST too
		t.Fatalf("code = %v, want CodeGetRequest", code)
	}
	if v, ok := req.Post("username"); !ok || v != "alice" {
		t.Errorf("Post(username) = %q, %v, want alice, true", v, ok)
	}
	if v, ok := req.Post("password"); !ok || v != "secret" {
		t.Errorf("Post(password) = %q, %v, want secret, true", v, ok)
	}
	if req.Path() != "/register.html" {
		t.Errorf("Path() = %q, want /register.html", req.Path())
	}
}

func TestIsKeepAliveFalseForHTTP10(t *testing.T) {
	buf := bytebuffer.New()
	buf.AppendString("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")

	req := NewRequest()
	req.Parse(buf)
	if req.IsKeepAlive() {
		t.Error("expected IsKeepAlive() false for HTTP/1.0 regardless of header")
	}
}

func TestResetAllowsReuseForNextRequest(t *testing.T) {
	buf := bytebuffer.New()
	buf.AppendString("GET /a.html HTTP/1.1\r\n\r\n")
	req := NewRequest()
	req.Parse(buf)

	req.Reset()
	buf.AppendString("GET /b.html HTTP/1.1\r\n\r\n")
	done, _ := req.Parse(buf)
	if !done {
		t.Fatal("expected second parse after Reset to finish")
	}
	if req.Path() != "/b.html" {
		t.Errorf("Path() = %q, want /b.html", req.Path())
	}
}
