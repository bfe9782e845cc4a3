package httpproto

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/behrlich/reactor-httpd/internal/bytebuffer"
	"github.com/behrlich/reactor-httpd/internal/constants"
)

// Response builds an HTTP/1.1 response for one request: a status line and
// headers written into a byte buffer, plus a read-only mmap of the served
// file (the requested file, or the status's error page) as a second
// scatter-write segment so the file's bytes are never copied into the
// connection's own buffer.
type Response struct {
	code       int
	keepAlive  bool
	path       string
	srcDir     string
	mapped     []byte
	mappedFile *os.File
}

// NewResponse prepares a response for path under srcDir. code, if >= 0,
// overrides the status that would otherwise be inferred from stat(2)
// (used to force 400 Bad Request for a malformed request line).
func NewResponse(srcDir, path string, keepAlive bool, code int) *Response {
	return &Response{code: code, keepAlive: keepAlive, path: path, srcDir: srcDir}
}

// Code reports the final status code after Make has run.
func (r *Response) Code() int { return r.code }

// Unmap releases the file mapping, if one was made. Safe to call more than
// once and on a response that never mapped anything.
func (r *Response) Unmap() {
	if r.mapped != nil {
		unix.Munmap(r.mapped)
		r.mapped = nil
	}
	if r.mappedFile != nil {
		r.mappedFile.Close()
		r.mappedFile = nil
	}
}

// Make writes the status line and headers into buf and mmaps the served
// file (the requested file, or for 400/403/404 the matching error page),
// returning that body segment separately so the caller can scatter-write it
// alongside buf without copying it in. When the file can't be opened, is
// empty, or can't be mapped, an inline HTML error body is written into buf
// and body is nil.
func (r *Response) Make(buf *bytebuffer.Buffer) (body []byte, err error) {
	fullPath := r.srcDir + r.path
	if r.code < 0 {
		// No caller-forced status: infer it from the filesystem.
		info, statErr := os.Stat(fullPath)
		switch {
		case statErr != nil || info.IsDir():
			r.code = 404
		case info.Mode().Perm()&0o004 == 0:
			r.code = 403
		default:
			r.code = 200
		}
	}

	if errPath, isError := errorPage[r.code]; isError {
		// Mirror the error page's own path so its content-type (always an
		// .html page) is what gets reported, not the original request's.
		r.path = errPath
		fullPath = r.srcDir + errPath
	}

	r.addStateLine(buf)
	r.addHeader(buf)

	body, contentErr := r.addContent(buf, fullPath)
	if contentErr != nil {
		return nil, contentErr
	}
	return body, nil
}

func (r *Response) addStateLine(buf *bytebuffer.Buffer) {
	status, ok := codeStatus[r.code]
	if !ok {
		r.code = 400
		status = codeStatus[400]
	}
	buf.AppendString(fmt.Sprintf("HTTP/1.1 %d %s\r\n", r.code, status))
}

func (r *Response) addHeader(buf *bytebuffer.Buffer) {
	if r.keepAlive {
		buf.AppendString("Connection: keep-alive\r\n")
		buf.AppendString(fmt.Sprintf("keep-alive: max=%d, timeout=%d\r\n", constants.KeepAliveMax, constants.KeepAliveTimeoutSec))
	} else {
		buf.AppendString("Connection: close\r\n")
	}
	buf.AppendString(fmt.Sprintf("Content-type: %s\r\n", r.fileType()))
}

func (r *Response) addContent(buf *bytebuffer.Buffer, fullPath string) ([]byte, error) {
	f, err := os.Open(fullPath)
	if err != nil {
		r.errorContent(buf, "File NotFound!")
		return nil, nil
	}

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		f.Close()
		r.errorContent(buf, "File NotFound!")
		return nil, nil
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		r.errorContent(buf, "File NotFound!")
		return nil, nil
	}
	r.mapped = mapped
	r.mappedFile = f

	buf.AppendString(fmt.Sprintf("Content-length: %d\r\n\r\n", info.Size()))
	return mapped, nil
}

func (r *Response) errorContent(buf *bytebuffer.Buffer, message string) {
	var b strings.Builder
	status := codeStatus[r.code]
	b.WriteString("<html><title>Error</title>")
	b.WriteString(`<body bgcolor="ffffff">`)
	fmt.Fprintf(&b, "%d : %s\n", r.code, status)
	fmt.Fprintf(&b, "<p>%s</p>", message)
	b.WriteString("<hr><em>reactor-httpd</em></body></html>")

	body := b.String()
	buf.AppendString(fmt.Sprintf("Content-length: %d\r\n\r\n", len(body)))
	buf.AppendString(body)
}

func (r *Response) fileType() string {
	i := strings.LastIndex(r.path, ".")
	if i < 0 {
		return defaultContentType
	}
	if ct, ok := suffixType[r.path[i:]]; ok {
		return ct
	}
	return defaultContentType
}
