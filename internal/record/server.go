package record

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/clog"
)

const maxEntryBytes = 64 << 10

type BackupLister interface {
	List(ctx context.Context) ([]string, error)
}

// Server exposes the record service as a JSON API. Responses and errors are
// written by the cerr middleware.
type Server struct {
	svc     *Service
	backups BackupLister
}

func NewServer(svc *Service, backups BackupLister) *Server {
	return &Server{svc: svc, backups: backups}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/records", s.ListRecords)
	r.Post("/records", s.CreateRecord)
	r.Get("/months", s.ListMonths)
	r.Get("/options", s.GetOptions)
	r.Get("/backups", s.ListBackups)
}

type listRecordsResponse struct {
	Month   string   `json:"month,omitempty"`
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month := r.URL.Query().Get("month")
	d, err := s.svc.Filter(ctx, month)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddAttribute(ctx, "record_count", d.Len())
	cerr.SetJSONResponse(ctx, listRecordsResponse{
		Month:   month,
		Columns: Columns(),
		Records: d.Records,
	})
}

func (s *Server) CreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var e Entry
	dec := json.NewDecoder(io.LimitReader(r.Body, maxEntryBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "request body must be a maintenance entry", err)
		return
	}
	res, err := s.svc.Append(ctx, e)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddAttributes(ctx, map[string]any{
		"record_count": res.Count,
		"backup":       res.Backup,
	})
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, res)
}

func (s *Server) ListMonths(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	months, err := s.svc.Months(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if months == nil {
		months = []string{}
	}
	cerr.SetJSONResponse(ctx, map[string][]string{"months": months})
}

func (s *Server) GetOptions(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), s.svc.Options())
}

func (s *Server) ListBackups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paths, err := s.backups.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	cerr.SetJSONResponse(ctx, map[string][]string{"backups": paths})
}
