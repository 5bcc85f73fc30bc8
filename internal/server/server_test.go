package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/invoicer/internal/analytics"
	"github.com/ziadkadry99/invoicer/internal/extraction"
	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/llm"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
	"github.com/ziadkadry99/invoicer/internal/qa"
	"github.com/ziadkadry99/invoicer/internal/vectordb"
)

// stubText returns the file name's canned text, failing unknown names.
type stubText map[string]string

func (s stubText) ProcessFiles(_ context.Context, docs []invoice.Document, _ invoice.ProgressFunc) []invoice.ProcessedDocument {
	out := make([]invoice.ProcessedDocument, len(docs))
	for i, d := range docs {
		if text, ok := s[d.FileName]; ok {
			out[i] = invoice.Succeeded(d, text)
		} else {
			out[i] = invoice.Failed(d, invoice.ErrOCRFailure)
		}
	}
	return out
}

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if strings.Contains(req.Messages[0].Content, "invoice data extractor") {
		return &llm.CompletionResponse{Content: `{"invoice_number":"A-1","vendor_name":"Acme","date":"2024-01-15","total":1500,"tax":150}`}, nil
	}
	return &llm.CompletionResponse{Content: "The total is $1,500.00."}, nil
}

type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (flatEmbedder) Dimensions() int { return 2 }
func (flatEmbedder) Name() string    { return "flat" }

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	prov := stubProvider{}
	index := vectordb.NewIndex(flatEmbedder{}, vectordb.NewChunker(0, 0), nil)
	orch := pipeline.New(pipeline.Deps{
		Text:     stubText{"acme.pdf": "INVOICE A-1 Acme Corp total 1500.00"},
		Fields:   extraction.New(prov, extraction.Options{Model: "m"}, nil),
		Answerer: qa.NewAnswerer(index, prov, qa.Options{Model: "m"}, nil),
		Analyst:  analytics.NewAnalyst(prov, "m", 100, 0.1, nil),
	}, pipeline.NewSession(index), nil)
	return New(cfg, orch, nil)
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func writeInvoice(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "acme.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, Config{})

	w := do(t, srv, "GET", "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, Config{AllowAll: true})

	req := httptest.NewRequest("OPTIONS", "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAskBeforeProcessing(t *testing.T) {
	srv := newTestServer(t, Config{})

	w := do(t, srv, "POST", "/api/ask", askRequest{Question: "What is the total?"})
	require.Equal(t, http.StatusOK, w.Code)

	var a qa.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, qa.NotProcessedAnswer, a.Text)
	assert.Empty(t, a.Sources)
	assert.Contains(t, w.Body.String(), `"sources":[]`)
}

func TestAskValidation(t *testing.T) {
	srv := newTestServer(t, Config{})

	w := do(t, srv, "POST", "/api/ask", askRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "POST", "/api/ask", askRequest{Quick: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessThenQuery(t *testing.T) {
	root := t.TempDir()
	srv := newTestServer(t, Config{Root: root})
	path := writeInvoice(t, root)

	w := do(t, srv, "POST", "/api/process", processRequest{Paths: []string{path}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Documents, 1)
	assert.True(t, res.Index.Built)

	w = do(t, srv, "GET", "/api/summary", nil)
	var sum analytics.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, 1, sum.TotalInvoices)
	assert.Equal(t, 1500.0, sum.TotalAmount)

	w = do(t, srv, "GET", "/api/records", nil)
	assert.Contains(t, w.Body.String(), `"invoice_number":"A-1"`)

	w = do(t, srv, "POST", "/api/ask", askRequest{Quick: "total"})
	var a qa.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, "The total is $1,500.00.", a.Text)
	assert.Equal(t, []string{"acme.pdf"}, a.Sources)

	w = do(t, srv, "GET", "/api/transcript", nil)
	var turns []qa.Turn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turns))
	assert.Len(t, turns, 2)
}

func TestProcessErrors(t *testing.T) {
	root := t.TempDir()
	srv := newTestServer(t, Config{Root: root})

	w := do(t, srv, "POST", "/api/process", processRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, "POST", "/api/process", processRequest{Paths: []string{filepath.Join(root, "gone.pdf")}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "outside the server root")
}

func TestProcessOutsideRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "inbox")
	require.NoError(t, os.Mkdir(root, 0o755))
	outside := writeInvoice(t, base)
	srv := newTestServer(t, Config{Root: root})

	link := filepath.Join(root, "linked.pdf")
	hasLink := os.Symlink(outside, link) == nil

	tests := []struct {
		name string
		path string
	}{
		{"absolute", outside},
		{"parent", "../acme.pdf"},
		{"parent glob", "../*.pdf"},
		{"dot dot inside absolute", filepath.Join(root, "..", "acme.pdf")},
		{"filesystem root", string(filepath.Separator)},
	}
	if hasLink {
		tests = append(tests, struct {
			name string
			path string
		}{"symlink", link})
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/process", processRequest{Paths: []string{tt.path}})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "outside the server root")
		})
	}

	if hasLink {
		require.NoError(t, os.Remove(link))
	}
	writeInvoice(t, root)
	w := do(t, srv, "POST", "/api/process", processRequest{Paths: []string{"acme.pdf"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestBindAddress(t *testing.T) {
	srv := newTestServer(t, Config{Port: 8080})
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())

	srv = newTestServer(t, Config{Host: "0.0.0.0", Port: 9000})
	assert.Equal(t, "0.0.0.0:9000", srv.Addr())

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, canonicalPath(wd), srv.Root())
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t, Config{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "acme.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("create_kb", "false"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "acme.pdf", res.Documents[0].FileName)
	assert.True(t, res.Documents[0].OK())
	assert.False(t, res.Index.Attempted)
	assert.Len(t, res.Records, 1)
}

func TestInsightsWithoutRecords(t *testing.T) {
	srv := newTestServer(t, Config{})
	w := do(t, srv, "GET", "/api/insights", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExport(t *testing.T) {
	root := t.TempDir()
	srv := newTestServer(t, Config{Root: root})
	do(t, srv, "POST", "/api/process", processRequest{Paths: []string{writeInvoice(t, root)}})

	tests := []struct {
		format      string
		contentType string
	}{
		{"json", "application/json"},
		{"csv", "text/csv"},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w := do(t, srv, "GET", "/api/export/"+tt.format, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), tt.contentType)
			assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice_data_")
			assert.NotZero(t, w.Body.Len())
		})
	}

	w := do(t, srv, "GET", "/api/export/sqlite", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, srv, "GET", "/api/export/pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketChat(t *testing.T) {
	srv := newTestServer(t, Config{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(chatRequest{Type: "ask", Content: "What is the total?"}))
	var resp chatResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "answer", resp.Type)
	assert.Equal(t, qa.NotProcessedAnswer, resp.Content)

	require.NoError(t, conn.WriteJSON(chatRequest{Type: "quick", Content: "unknown"}))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "invalid message format", resp.Content)
}

func TestWebSocketOrigin(t *testing.T) {
	foreign := http.Header{"Origin": {"http://evil.example"}}

	srv := newTestServer(t, Config{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, foreign)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {ts.URL}})
	require.NoError(t, err)
	conn.Close()

	dev := newTestServer(t, Config{AllowAll: true})
	devTS := httptest.NewServer(dev.Router())
	defer devTS.Close()
	conn, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(devTS.URL, "http")+"/ws/chat", foreign)
	require.NoError(t, err)
	conn.Close()
}
