package httpproto

import "strings"

// suffixType maps a file extension to the Content-type header value served
// for it. Entries are verbatim from spec's MIME table.
var suffixType = map[string]string{
	".html":  "text/html",
	".xml":   "text/xml",
	".xhtml": "application/xhtml+xml",
	".txt":   "text/plain",
	".rtf":   "application/rtf",
	".pdf":   "application/pdf",
	".word":  "application/nsword",
	".png":   "image/png",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".au":    "audio/basic",
	".mpeg":  "video/mpeg",
	".mpg":   "video/mpeg",
	".avi":   "video/x-msvideo",
	".gz":    "application/x-gzip",
	".tar":   "application/x-tar",
	".css":   "text/css",
	".js":    "text/javascript",
	".mp4":   "video/mp4",
	".flv":   "video/flv",
}

const defaultContentType = "text/plain"

// codeStatus maps an HTTP status code to its reason phrase, for the status
// codes this server ever produces.
var codeStatus = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
}

// errorPage maps a status code to the static error page served in its body.
var errorPage = map[int]string{
	400: "/400.html",
	403: "/403.html",
	404: "/404.html",
}

// defaultHTMLTag distinguishes the register page from every other default
// page name: parsePath rewrites "/" to "/index.html" and appends ".html" to
// any of these bare names, which is then served from disk like any file.
var defaultHTMLTag = map[string]bool{
	"/index":    false,
	"/register": true,
	"/login":    false,
	"/welcome":  false,
	"/video":    false,
	"/picture":  false,
	"/error":    false,
}

// AuthPath reports whether path (post-canonicalization, e.g. "/login.html")
// is one of the two credential-submission routes, and whether it's the
// register route (true) or the login route (false).
func AuthPath(path string) (isRegister, ok bool) {
	name := strings.TrimSuffix(path, ".html")
	if name != "/login" && name != "/register" {
		return false, false
	}
	isRegister, ok = defaultHTMLTag[name]
	return isRegister, ok
}
