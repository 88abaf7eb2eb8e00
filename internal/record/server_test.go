package record_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/pkg/cerr"
)

func newAPI(t *testing.T) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t)
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	record.NewServer(f.svc, f.backups).Routes(r)
	return f, r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPICreateAndList(t *testing.T) {
	_, h := newAPI(t)

	rec := do(t, h, http.MethodPost, "/records",
		`{"timestamp":"2024-03-01 09:00:00","task":"Calibración","operator":"Juan Ramos"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created record.AppendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 1, created.Count)
	assert.Equal(t, "backups_ultrona/respaldo_ultrona_2024-03-01_09-00-00.xlsx", created.Backup)

	rec = do(t, h, http.MethodGet, "/records?month=2024-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Columns []string        `json:"columns"`
		Records []record.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, record.Columns(), list.Columns)
	require.Len(t, list.Records, 1)
	assert.Equal(t, "Juan Ramos", list.Records[0].Operator)

	rec = do(t, h, http.MethodGet, "/records?month=2024-04", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Records)

	rec = do(t, h, http.MethodGet, "/months", "")
	assert.JSONEq(t, `{"months":["2024-03"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/backups", "")
	assert.JSONEq(t, `{"backups":["backups_ultrona/respaldo_ultrona_2024-03-01_09-00-00.xlsx"]}`, rec.Body.String())
}

func TestAPIValidationErrors(t *testing.T) {
	_, h := newAPI(t)

	rec := do(t, h, http.MethodPost, "/records", `{"task":"Pintar","operator":"Juan Ramos"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_argument"`)
	assert.Contains(t, rec.Body.String(), "task.in")

	rec = do(t, h, http.MethodPost, "/records", `{"task":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/records", `{"task":"Calibración","operator":"Juan Ramos","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/records?month=2024-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIEmptyState(t *testing.T) {
	_, h := newAPI(t)

	rec := do(t, h, http.MethodGet, "/months", "")
	assert.JSONEq(t, `{"months":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/backups", "")
	assert.JSONEq(t, `{"backups":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/records", "")
	assert.JSONEq(t, `{"columns":["Fecha y Hora","Mantenimiento Realizado","Operador"],"records":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/options", "")
	var opts struct {
		Tasks     []string `json:"tasks"`
		Operators []string `json:"operators"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opts))
	assert.Len(t, opts.Tasks, 7)
	assert.Len(t, opts.Operators, 10)
}
