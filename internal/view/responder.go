package view

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/shared"
)

// ChromeFunc builds the page frame for a request.
type ChromeFunc func(r *http.Request) Chrome

// Responder renders pages with the session flash, CSRF token and navigation
// filled in. Handlers embed one instead of repeating the boilerplate.
type Responder struct {
	Logger    *slog.Logger
	Templates *Engine
	CSRF      *shared.CSRFManager
	Chrome    ChromeFunc
}

// Render writes template with status.
func (p Responder) Render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if p.CSRF != nil {
		csrfToken = p.CSRF.EnsureToken(sess)
	}
	viewData := TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       sess.PopFlash(),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if p.Chrome != nil {
		viewData.Chrome = p.Chrome(r)
		markActive(viewData.Chrome.Nav, r.URL.Path)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := p.Templates.Render(w, template, viewData); err != nil && p.Logger != nil {
		p.Logger.Error("render template", slog.String("template", template), slog.Any("error", err))
	}
}

// Error renders the error page for err. Denials and internal failures show
// no detail.
func (p Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := httpx.StatusFor(err)
	if status == http.StatusInternalServerError && p.Logger != nil {
		p.Logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	data := map[string]any{"Status": status, "Message": shared.UserSafeMessage(err)}
	p.Render(w, r, "pages/error.html", http.StatusText(status), data, status)
}

// RedirectWithFlash queues a flash message and redirects with 303.
func (p Responder) RedirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func markActive(links []NavLink, path string) {
	for i := range links {
		href := links[i].Href
		if href != "" && (path == href || (href != "/" && strings.HasPrefix(path, href+"/"))) {
			links[i].Active = true
		}
		markActive(links[i].Children, path)
	}
}
