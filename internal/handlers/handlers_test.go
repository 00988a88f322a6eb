package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica/import-service/internal/backend"
	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/importer"
	"github.com/clinica/import-service/internal/runs"
	"github.com/clinica/import-service/internal/storage"
	"github.com/clinica/import-service/internal/types"
)

type fakeBackend struct {
	mu      sync.Mutex
	created []any
	items   []backend.Item
}

func (f *fakeBackend) Create(_ context.Context, _ string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, payload)
	return nil
}

func (f *fakeBackend) List(context.Context, string) ([]backend.Item, error) {
	return f.items, nil
}

type testServer struct {
	router *gin.Engine
	runner *runs.Runner
	store  runs.Store
	api    *fakeBackend
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	api := &fakeBackend{}
	store := runs.NewMemoryStore()
	runner := runs.NewRunner(runs.RunnerConfig{
		Store: store,
		Files: files,
		NewCoordinator: func(s *entities.Schema) *importer.Coordinator {
			return importer.NewCoordinator(s, api, importer.Options{RefreshDelay: time.Millisecond})
		},
		ReadOptions:   importer.DefaultReadOptions(),
		MaxConcurrent: 2,
	})

	Init(Deps{
		Runner:         runner,
		Store:          store,
		Backend:        api,
		ReadOptions:    importer.DefaultReadOptions(),
		MaxUploadBytes: 1 << 20,
	})

	router := gin.New()
	RegisterRoutes(router.Group("/api"))
	return &testServer{router: router, runner: runner, store: store, api: api}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthCheckWithoutDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "not configured", resp["database"])
	assert.NotContains(t, resp, "pool")
}

func TestGetTemplate(t *testing.T) {
	s := setupServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/templates/pacientes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv;charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "modelo_pacientes.csv")
	assert.Equal(t, entities.Patients.Template, w.Body.String())
}

func TestUnknownEntity(t *testing.T) {
	s := setupServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/templates/fornecedores", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown_entity")
}

func TestStartImportRunsInBackground(t *testing.T) {
	s := setupServer(t)

	csv := "nome,categoria\nLuva,Material Médico\nGaze,Brinquedo\n"
	w := s.do(uploadRequest(t, "/api/imports/insumos", "insumos.csv", csv))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var started StartImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, 2, started.TotalRows)
	assert.Equal(t, "/api/imports/"+started.RunID, started.PollURL)

	s.runner.Wait()

	w = s.do(httptest.NewRequest(http.MethodGet, started.PollURL, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var run types.ImportRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, types.RunStatusCompleted, run.Status)
	assert.Equal(t, 100, run.Progress)
	require.NotNil(t, run.Result)
	assert.Equal(t, 1, run.Result.Success)
	assert.Equal(t, 1, run.Result.Failed)
	require.Len(t, run.Result.Errors, 1)
	assert.True(t, strings.HasPrefix(run.Result.Errors[0], "Linha 3: "))

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/imports?entity=insumos", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, started.RunID, list.Runs[0].ID)
}

func TestStartImportRejectsBadFiles(t *testing.T) {
	s := setupServer(t)

	w := s.do(uploadRequest(t, "/api/imports/insumos", "insumos.txt", "nome\nLuva\n"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file_format")

	var b strings.Builder
	b.WriteString("nome,categoria\n")
	for i := 0; i < importer.DefaultMaxRows+1; i++ {
		b.WriteString("Luva,medication\n")
	}
	w = s.do(uploadRequest(t, "/api/imports/insumos", "insumos.csv", b.String()))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "size_limit")

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/imports/insumos", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, s.api.created)
}

func TestValidateImport(t *testing.T) {
	s := setupServer(t)

	csv := "nome,telefone,cpf\nMaria Silva,(11) 98765-4321,123\n,11987654321,\n"
	w := s.do(uploadRequest(t, "/api/imports/pacientes/validate", "pacientes.csv", csv))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report types.ValidationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 1, report.ValidRows)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, 3, report.Rejections[0].RowIndex)
	assert.NotEmpty(t, report.Warnings, "invalid CPF is dropped with a warning")
	assert.Empty(t, s.api.created)
}

func TestListRunsValidation(t *testing.T) {
	s := setupServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/imports?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/imports/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportEntity(t *testing.T) {
	s := setupServer(t)
	s.api.items = []backend.Item{
		{"first_name": "Maria", "last_name": "Silva", "phone": "+5511987654321"},
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/exports/pacientes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Maria")

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/exports/pacientes?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
