package mock

import (
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	reqhttp "github.com/abdul-hamid-achik/reqspec/packages/http"
	"github.com/google/uuid"
)

const (
	digestRealm  = "me@reqspec.test"
	digestOpaque = "2d4f4e3c8ab1d8a7"
)

func (s *Server) registerEndpoints() {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		s.Handle(method, "/"+strings.ToLower(method), handleEcho)
	}
	s.Handle("", "/anything", handleEcho)
	s.Handle("", "/anything/{{rest}}", handleEcho)
	s.Handle(http.MethodGet, "/headers", handleHeaders)
	s.Handle(http.MethodGet, "/ip", handleIP)
	s.Handle(http.MethodGet, "/uuid", handleUUID)
	s.Handle(http.MethodGet, "/json", handleSampleJSON)
	s.Handle(http.MethodGet, "/html", handleHTML)
	s.Handle("", "/response-headers", handleResponseHeaders)
	s.Handle(http.MethodGet, "/cookies", handleCookies)
	s.Handle(http.MethodGet, "/cookies/set", handleSetCookies)
	s.Handle(http.MethodGet, "/cookies/set/{{name}}/{{value}}", handleSetCookie)
	s.Handle(http.MethodGet, "/cookies/delete", handleDeleteCookies)
	s.Handle("", "/status/{{code}}", handleStatus)
	s.Handle("", "/redirect-to", handleRedirectTo)
	s.Handle(http.MethodGet, "/redirect/{{n}}", handleRedirect)
	s.Handle("", "/delay/{{ms}}", handleDelay)
	s.Handle(http.MethodGet, "/basic-auth/{{user}}/{{passwd}}", handleBasicAuth)
	s.Handle(http.MethodGet, "/bearer", handleBearer)
	s.Handle(http.MethodGet, "/digest-auth/{{qop}}/{{user}}/{{passwd}}", handleDigestAuth)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, v)
}

// flatten renders multi-valued maps the way httpbin does: one value as a
// string, several as a list.
func flatten(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = v
		}
	}
	return out
}

func echoHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ", ")
	}
	headers["Host"] = r.Host
	return headers
}

func origin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func fullURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func requestCookies(r *http.Request) map[string]string {
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	return cookies
}

func handleEcho(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp := map[string]any{
		"args":    flatten(r.URL.Query()),
		"headers": echoHeaders(r),
		"origin":  origin(r),
		"url":     fullURL(r),
		"method":  r.Method,
	}

	if r.Method != http.MethodGet {
		form, files, data, body, err := readBody(r)
		if err != nil {
			writeJSONStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		resp["form"] = form
		resp["files"] = files
		resp["data"] = data
		resp["json"] = body
	}

	writeJSON(w, resp)
}

func readBody(r *http.Request) (form map[string]any, files map[string]string, data string, body any, err error) {
	form = map[string]any{}
	files = map[string]string{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err = r.ParseMultipartForm(32 << 20); err != nil {
			return
		}
		form = flatten(r.MultipartForm.Value)
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			f, openErr := headers[0].Open()
			if openErr != nil {
				err = openErr
				return
			}
			content, _ := io.ReadAll(f)
			f.Close()
			files[field] = string(content)
		}
		return
	case mediaType == "application/x-www-form-urlencoded":
		if err = r.ParseForm(); err != nil {
			return
		}
		form = flatten(r.PostForm)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return
	}
	data = string(raw)
	if len(raw) > 0 && json.Valid(raw) {
		_ = json.Unmarshal(raw, &body)
	}
	return
}

func handleHeaders(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, map[string]any{"headers": echoHeaders(r)})
}

func handleIP(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, map[string]any{"origin": origin(r)})
}

func handleUUID(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, map[string]any{"uuid": uuid.New().String()})
}

func handleSampleJSON(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	writeJSON(w, map[string]any{
		"slideshow": map[string]any{
			"author": "Yours Truly",
			"date":   "date of publication",
			"title":  "Sample Slide Show",
			"slides": []any{
				map[string]any{"title": "Wake up to WonderWidgets!", "type": "all"},
				map[string]any{
					"title": "Overview",
					"type":  "all",
					"items": []string{"Why <em>WonderWidgets</em> are great", "Who <em>buys</em> WonderWidgets"},
				},
			},
		},
	})
}

func handleHTML(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, "<!DOCTYPE html>\n<html><body><h1>Herman Melville - Moby-Dick</h1></body></html>\n")
}

// handleResponseHeaders sets every query parameter as a response header.
func handleResponseHeaders(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	query := r.URL.Query()
	for k, vals := range query {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	writeJSON(w, flatten(query))
}

func handleCookies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, map[string]any{"cookies": requestCookies(r)})
}

func handleSetCookies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	for k, vals := range r.URL.Query() {
		for _, v := range vals {
			http.SetCookie(w, &http.Cookie{Name: k, Value: v, Path: "/"})
		}
	}
	http.Redirect(w, r, "/cookies", http.StatusFound)
}

func handleSetCookie(w http.ResponseWriter, r *http.Request, params map[string]string) {
	http.SetCookie(w, &http.Cookie{Name: params["name"], Value: params["value"], Path: "/"})
	http.Redirect(w, r, "/cookies", http.StatusFound)
}

func handleDeleteCookies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	for k := range r.URL.Query() {
		http.SetCookie(w, &http.Cookie{Name: k, Value: "", Path: "/", MaxAge: -1, Expires: time.Unix(0, 0)})
	}
	http.Redirect(w, r, "/cookies", http.StatusFound)
}

func handleStatus(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	code, err := strconv.Atoi(params["code"])
	if err != nil || code < 100 || code > 599 {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{"error": "invalid status code"})
		return
	}
	w.WriteHeader(code)
}

func handleRedirectTo(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{"error": "missing url"})
		return
	}
	status := http.StatusFound
	if code, err := strconv.Atoi(r.URL.Query().Get("status_code")); err == nil && code >= 300 && code < 400 {
		status = code
	}
	w.Header().Set("Location", target)
	w.WriteHeader(status)
}

// handleRedirect redirects n times before landing on /get.
func handleRedirect(w http.ResponseWriter, r *http.Request, params map[string]string) {
	n, err := strconv.Atoi(params["n"])
	if err != nil || n < 1 {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{"error": "invalid redirect count"})
		return
	}
	target := "/get"
	if n > 1 {
		target = "/redirect/" + strconv.Itoa(n-1)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleDelay waits ms milliseconds, or until the client goes away.
func handleDelay(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ms, err := strconv.Atoi(params["ms"])
	if err != nil || ms < 0 {
		writeJSONStatus(w, http.StatusBadRequest, map[string]any{"error": "invalid delay"})
		return
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
	case <-r.Context().Done():
		return
	}
	handleEcho(w, r, params)
}

func handleBasicAuth(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != params["user"] || pass != params["passwd"] {
		w.Header().Set("WWW-Authenticate", `Basic realm="Fake Realm"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{"authenticated": true, "user": user})
}

func handleBearer(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{"authenticated": true, "token": token})
}

func handleDigestAuth(w http.ResponseWriter, r *http.Request, params map[string]string) {
	nonce := params["user"] + "-" + params["qop"]
	challenge := func() {
		w.Header().Set("WWW-Authenticate",
			`Digest realm="`+digestRealm+`", qop="`+params["qop"]+`", nonce="`+nonce+`", opaque="`+digestOpaque+`"`)
		w.WriteHeader(http.StatusUnauthorized)
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Digest ") {
		challenge()
		return
	}

	got := reqhttp.ParseWWWAuthenticate(header)
	expected := &reqhttp.DigestAuth{
		Username: params["user"],
		Password: params["passwd"],
		Realm:    digestRealm,
		Nonce:    nonce,
		URI:      got["uri"],
		Qop:      got["qop"],
		Nc:       got["nc"],
		Cnonce:   got["cnonce"],
		Method:   r.Method,
	}
	if got["username"] != params["user"] || got["nonce"] != nonce || got["uri"] != r.URL.RequestURI() ||
		got["response"] != expected.ComputeDigestResponse() {
		challenge()
		return
	}

	writeJSON(w, map[string]any{"authenticated": true, "user": params["user"]})
}
