// Package web serves the operator-facing entry form, the month view and the
// spreadsheet downloads.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ultrona/mantlog/internal/catalog"
	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/clog"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const maxFormBytes = 64 << 10

type Handler struct {
	svc  *record.Service
	base string
}

// NewHandler returns the form handler. base is the path prefix the routes are
// mounted under, used to build links.
func NewHandler(svc *record.Service, base string) *Handler {
	return &Handler{svc: svc, base: base}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.Post("/", h.Submit)
	r.Get("/download", h.Download)
}

type page struct {
	Base    string
	Saved   bool
	Error   string
	Details []string
	Form    record.Entry
	Options *catalog.Options
	Months  []string
	Month   string
	Columns []string
	Records []record.Record
	Total   int
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	p := &page{
		Form:  record.Entry{Timestamp: h.svc.DefaultTimestamp()},
		Saved: r.URL.Query().Get("saved") == "1",
	}
	h.render(w, r, http.StatusOK, p, r.URL.Query().Get("month"))
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	e := record.Entry{
		Timestamp: r.PostForm.Get("timestamp"),
		Task:      r.PostForm.Get("task"),
		Operator:  r.PostForm.Get("operator"),
	}
	res, err := h.svc.Append(ctx, e)
	if err != nil {
		clog.AddError(ctx, err)
		status := http.StatusInternalServerError
		p := &page{Form: e, Error: "No se pudo guardar el mantenimiento."}
		var ce *cerr.Error
		if errors.As(err, &ce) {
			status = ce.Code.HTTPCode()
			if ce.Code == cerr.InvalidArgument {
				p.Error = "Datos inválidos."
				p.Details = ce.DetailMessages()
			}
		}
		h.render(w, r, status, p, "")
		return
	}
	clog.AddAttribute(ctx, "record_count", res.Count)

	q := url.Values{"saved": {"1"}}
	if res.Month != "" {
		q.Set("month", res.Month)
	}
	http.Redirect(w, r, h.base+"/?"+q.Encode(), http.StatusSeeOther)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month := r.URL.Query().Get("month")
	dl, err := h.svc.Export(ctx, month)
	if err != nil {
		clog.AddError(ctx, err)
		status := http.StatusInternalServerError
		var ce *cerr.Error
		if errors.As(err, &ce) {
			status = ce.Code.HTTPCode()
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	clog.AddAttribute(ctx, "record_count", dl.Count)
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
	if _, err := w.Write(dl.Data); err != nil {
		clog.AddError(ctx, err)
	}
}

// render loads the dataset once and fills the month view. When month is
// empty or unknown the newest month is shown.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, p *page, month string) {
	ctx := r.Context()
	p.Base = h.base
	p.Options = h.svc.Options()
	p.Columns = record.Columns()

	d, err := h.svc.Dataset(ctx)
	if err != nil {
		clog.AddError(ctx, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p.Total = d.Len()
	p.Months = d.Months()
	if len(p.Months) > 0 {
		p.Month = p.Months[0]
		for _, m := range p.Months {
			if m == month {
				p.Month = m
				break
			}
		}
		p.Records = d.FilterMonth(p.Month).Records
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, p); err != nil {
		slog.ErrorContext(ctx, "failed to render page", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		clog.AddError(ctx, fmt.Errorf("failed to write page: %w", err))
	}
}
