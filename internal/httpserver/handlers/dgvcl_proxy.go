package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/sevasetu/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	defaultDiscom    = "DGVCL"
	loginCountdown   = 3
	maxAutofillValue = 64
)

type autofillPage struct {
	Mobile    string
	Discom    string
	PortalURL string
	Snippet   string
	Countdown int
}

// DGVCLLogin serves a countdown page that stores the citizen's mobile and
// discom in sessionStorage, then opens the portal login page.
func DGVCLLogin(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, d, "dgvcl_login.html", newAutofillPage(r, d.PortalLogin))
	}
}

// DGVCLAutofill serves the manual instructions page with a console snippet.
func DGVCLAutofill(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, d, "dgvcl_autofill.html", newAutofillPage(r, d.PortalLogin))
	}
}

func newAutofillPage(r *http.Request, loginURL string) autofillPage {
	q := r.URL.Query()
	mobile := clip(q.Get("mobile"))
	discom := clip(q.Get("discom"))
	if discom == "" {
		discom = defaultDiscom
	}

	return autofillPage{
		Mobile:    mobile,
		Discom:    discom,
		PortalURL: portalURL(loginURL, mobile, discom),
		Snippet:   consoleSnippet(mobile, discom),
		Countdown: loginCountdown,
	}
}

// portalURL appends the autofill values to the login page URL.
func portalURL(loginURL, mobile, discom string) string {
	u, err := url.Parse(loginURL)
	if err != nil {
		return loginURL
	}
	v := u.Query()
	v.Set("mobile", mobile)
	v.Set("discom", discom)
	u.RawQuery = v.Encode()
	return u.String()
}

// consoleSnippet is the JavaScript the citizen pastes in the portal console.
func consoleSnippet(mobile, discom string) string {
	m, _ := json.Marshal(mobile)
	dc, _ := json.Marshal(strings.ToUpper(discom))
	return "var m=" + string(m) + ";var d=" + string(dc) + ";\n" +
		"document.querySelector('input[placeholder=\"Mobile No\"]').value=m;\n" +
		"document.getElementById('discom').value=d;"
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxAutofillValue {
		s = string(r[:maxAutofillValue])
	}
	return s
}

func renderPage(w http.ResponseWriter, d deps.Deps, name string, data autofillPage) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		d.Logger.Error("failed to render page", logger.String("page", name), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
