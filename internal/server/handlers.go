package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/invoicer/internal/analytics"
	"github.com/ziadkadry99/invoicer/internal/export"
	"github.com/ziadkadry99/invoicer/internal/ingest"
	"github.com/ziadkadry99/invoicer/internal/invoice"
	"github.com/ziadkadry99/invoicer/internal/pipeline"
	"github.com/ziadkadry99/invoicer/internal/qa"
)

// processRequest selects local files to process. Missing toggles default to true.
type processRequest struct {
	Paths       []string `json:"paths"`
	ExtractData *bool    `json:"extract_data"`
	CreateKB    *bool    `json:"create_kb"`
}

func (p processRequest) options() pipeline.Options {
	opts := pipeline.DefaultOptions()
	if p.ExtractData != nil {
		opts.ExtractData = *p.ExtractData
	}
	if p.CreateKB != nil {
		opts.CreateKB = *p.CreateKB
	}
	return opts
}

type askRequest struct {
	Question string `json:"question"`
	Quick    string `json:"quick,omitempty"`
}

type recordsResponse struct {
	RunID   string           `json:"run_id"`
	Records []invoice.Record `json:"records"`
	Failed  int              `json:"failed"`
}

type documentsResponse struct {
	RunID       string                      `json:"run_id"`
	ProcessedAt time.Time                   `json:"processed_at"`
	Documents   []invoice.ProcessedDocument `json:"documents"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "paths is required")
		return
	}

	paths := make([]string, len(req.Paths))
	for i, p := range req.Paths {
		abs, ok := s.confine(p)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("path %q is outside the server root", p))
			return
		}
		paths[i] = abs
	}

	resolved, err := ingest.Resolve(paths, s.cfg.Ingest)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrNoInputs) || errors.Is(err, fs.ErrNotExist) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	// Symlinks under the root may still point elsewhere.
	for _, doc := range resolved.Documents {
		if _, ok := s.confine(doc.Path); !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("path %q is outside the server root", doc.Path))
			return
		}
	}

	s.runAndRespond(w, r, resolved.Documents, req.options())
}

// handleUpload processes files sent as multipart form fields named "files".
// Uploads are spooled to a temporary directory removed after the run.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	dir, err := os.MkdirTemp("", "invoicer-upload-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.RemoveAll(dir)

	docs := make([]invoice.Document, 0, len(headers))
	for i, fh := range headers {
		path, size, err := spool(dir, i, fh)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		doc := invoice.NewDocument(path, size)
		doc.FileName = filepath.Base(fh.Filename)
		docs = append(docs, doc)
	}

	opts := pipeline.DefaultOptions()
	opts.ExtractData = r.FormValue("extract_data") != "false"
	opts.CreateKB = r.FormValue("create_kb") != "false"
	s.runAndRespond(w, r, docs, opts)
}

// spool copies one upload to dir. Each file gets its own subdirectory so
// identical names do not collide.
func spool(dir string, i int, fh *multipart.FileHeader) (string, int64, error) {
	src, err := fh.Open()
	if err != nil {
		return "", 0, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	sub := filepath.Join(dir, fmt.Sprint(i))
	if err := os.Mkdir(sub, 0o700); err != nil {
		return "", 0, err
	}
	path := filepath.Join(sub, filepath.Base(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return "", 0, fmt.Errorf("saving upload %s: %w", fh.Filename, err)
	}
	return path, n, nil
}

func (s *Server) runAndRespond(w http.ResponseWriter, r *http.Request, docs []invoice.Document, opts pipeline.Options) {
	res, err := s.orch.Process(r.Context(), docs, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	sess := s.orch.Session()
	docs := sess.Documents()
	if docs == nil {
		docs = []invoice.ProcessedDocument{}
	}
	writeJSON(w, http.StatusOK, documentsResponse{RunID: sess.RunID(), ProcessedAt: sess.ProcessedAt(), Documents: docs})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	sess := s.orch.Session()
	records := sess.Records()
	if records == nil {
		records = []invoice.Record{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{RunID: sess.RunID(), Records: records, Failed: analytics.Failed(records)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Summary())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Session().Index().Stats())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question, err := resolveQuestion(req.Question, req.Quick)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Ask(r.Context(), question))
}

// resolveQuestion picks the free-form question or expands a quick question name.
func resolveQuestion(question, quick string) (string, error) {
	if quick != "" {
		q, ok := qa.LookupQuick(quick)
		if !ok {
			return "", fmt.Errorf("unknown quick question %q", quick)
		}
		return q, nil
	}
	if question == "" {
		return "", errors.New("question is required")
	}
	return question, nil
}

func (s *Server) handleQuickQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, qa.QuickQuestions)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	turns := s.orch.Session().Transcript().Turns()
	if turns == nil {
		turns = []qa.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	ins, err := s.orch.Insights(r.Context())
	switch {
	case errors.Is(err, analytics.ErrNoRecords):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrNoAnalyst):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, invoice.ErrCompletionService):
		writeError(w, http.StatusBadGateway, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, ins)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil || f == export.FormatSQLite {
		writeError(w, http.StatusBadRequest, "format must be one of json, csv, xlsx")
		return
	}

	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(f, time.Now())))
	if err := export.Write(w, f, s.orch.Batch()); err != nil {
		s.logger.Error("export failed", "format", f, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
