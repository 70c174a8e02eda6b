package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"judgment-rag/internal/ai/mock"
	"judgment-rag/internal/app"
	"judgment-rag/internal/bootstrap"
	"judgment-rag/internal/config"
	"judgment-rag/internal/model"
	badgerClient "judgment-rag/internal/platform/badger"
	"judgment-rag/internal/repository"
	"judgment-rag/internal/storage"
	"judgment-rag/internal/transport/http/response"
	"judgment-rag/internal/vectorstore/memory"
)

const extractionReply = `{"title":"Doe v. Roe","court":"High Court","date":"2023-04-01","facts":"A contract dispute.",
"issues":["Whether the contract was void"],"arguments":{"petitioner":"Void.","respondent":"Valid."},
"ratio":"Free consent binds.","holding":"Appeal dismissed.","citations":[]}`

// plainTextExtractor treats upload bytes as text; "corrupt" uploads fail to parse.
type plainTextExtractor struct{}

func (plainTextExtractor) Extract(data []byte, _ string) (string, error) {
	switch {
	case len(data) == 0:
		return "", app.ErrEmptyInput
	case bytes.HasPrefix(data, []byte("corrupt")):
		return "", app.ErrParse
	}
	return string(data), nil
}

type testServer struct {
	router    stdhttp.Handler
	completer *mock.MockCompleter
}

func newTestServer(t *testing.T, checks ...bootstrap.HealthCheck) *testServer {
	t.Helper()

	db, err := badgerClient.Open("", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	archive, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	completer := &mock.MockCompleter{CompleteFunc: func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "TEXT TO ANALYZE") {
			return extractionReply, nil
		}
		return "The appeal was dismissed.", nil
	}}
	embedder := mock.NewMockEmbedder()
	index := memory.New(embedder.Dimension())

	indexer, err := app.NewChunkIndexer(app.NewRecursiveChunker(500, 50), embedder, index, 2, nil)
	require.NoError(t, err)
	t.Cleanup(indexer.Close)

	pipeline, err := app.NewPipeline(app.PipelineDeps{
		TextExtractor:  plainTextExtractor{},
		FieldExtractor: app.NewFieldExtractor(completer, app.ExtractionConfig{}, nil),
		Store:          repository.NewKVJudgmentRepository(db),
		Indexer:        indexer,
		Retriever:      app.NewRetriever(embedder, index, app.RetrievalConfig{TopK: 15, MinScore: 0.30}, nil),
		Synthesizer:    app.NewAnswerSynthesizer(completer, nil),
	}, app.WithArchive(archive))
	require.NoError(t, err)

	a := &bootstrap.App{
		Config: &config.Config{App: config.AppConfig{
			Name:          "judgment-rag",
			Env:           "test",
			GinMode:       "test",
			MaxUploadSize: 1 << 20,
		}},
		Pipeline:  pipeline,
		Checks:    checks,
		StartedAt: time.Now(),
	}
	return &testServer{router: NewRouter(a), completer: completer}
}

func (s *testServer) do(t *testing.T, req *stdhttp.Request) (*httptest.ResponseRecorder, response.APIResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var body response.APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func uploadRequest(t *testing.T, filename string, content []byte) *stdhttp.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/judgment/extract", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeData[T any](t *testing.T, body response.APIResponse) T {
	t.Helper()
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestExtractThenSearch(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, uploadRequest(t, "doe.pdf", []byte("Case: Doe v. Roe. Held: appeal dismissed.")))
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())
	record := decodeData[model.JudgmentRecord](t, body)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "Doe v. Roe", record.Title)
	assert.Equal(t, "Case: Doe v. Roe. Held: appeal dismissed.", record.OriginalText)

	q := url.Values{"query": {"What was held in Doe v. Roe?"}}
	rec, body = s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgment/search?"+q.Encode(), nil))
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	result := decodeData[app.QueryResult](t, body)
	assert.Equal(t, "The appeal was dismissed.", result.Answer)

	rec, body = s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgments/"+record.ID, nil))
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, record.ID, decodeData[model.JudgmentRecord](t, body).ID)

	rec, body = s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgments?title=roe", nil))
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]model.JudgmentRecord](t, body), 1)

	rec, _ = s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgments/"+record.ID+"/document", nil))
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Case: Doe v. Roe. Held: appeal dismissed.", rec.Body.String())
}

func TestExtract_BadUploads(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		wantCode int
		wantMsg  string
	}{
		{"empty file", nil, response.CodeEmptyFile, "empty file"},
		{"unparseable", []byte("corrupt bytes"), response.CodeParseError, "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec, body := s.do(t, uploadRequest(t, "bad.pdf", tt.content))
			assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Zero(t, s.completer.CallCount())
		})
	}
}

func TestExtract_MissingFile(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/judgment/extract", strings.NewReader(""))
	rec, body := s.do(t, req)
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, response.CodeBadRequest, body.Code)
}

func TestExtract_CompletionFailureIsInternal(t *testing.T) {
	s := newTestServer(t)
	s.completer.CompleteFunc = func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	}

	rec, body := s.do(t, uploadRequest(t, "doe.pdf", []byte("Case: Doe v. Roe.")))
	assert.Equal(t, stdhttp.StatusInternalServerError, rec.Code)
	assert.Equal(t, response.CodeInternalServer, body.Code)
	assert.NotContains(t, body.Message, "quota")
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgment/search", nil))
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, response.CodeBadRequest, body.Code)

	rec, body = s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgment/search?query=holding", nil))
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, app.NotFoundAnswer, decodeData[app.QueryResult](t, body).Answer)
}

func TestJudgmentNotFound(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgments/missing", nil))
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
	assert.Equal(t, response.CodeNotFound, body.Code)

	rec, _ = s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgments/missing/document", nil))
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)

	rec, _ = s.do(t, httptest.NewRequest(stdhttp.MethodGet, "/api/v1/judgments", nil))
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	healthy := newTestServer(t, bootstrap.HealthCheck{Name: "badger", Check: func(context.Context) error { return nil }})
	rec, _ := healthy.do(t, httptest.NewRequest(stdhttp.MethodGet, "/healthz", nil))
	assert.Equal(t, stdhttp.StatusOK, rec.Code)

	degraded := newTestServer(t,
		bootstrap.HealthCheck{Name: "badger", Check: func(context.Context) error { return nil }},
		bootstrap.HealthCheck{Name: "vector_index", Check: func(context.Context) error { return errors.New("unreachable") }},
	)
	rec = httptest.NewRecorder()
	degraded.router.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/healthz", nil))
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)

	var body struct {
		Dependencies map[string]struct {
			OK      bool   `json:"ok"`
			Message string `json:"message"`
		} `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Dependencies["badger"].OK)
	assert.False(t, body.Dependencies["vector_index"].OK)
	assert.Equal(t, "unreachable", body.Dependencies["vector_index"].Message)
}
