package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgallion1/docjournal/internal/convert"
	"github.com/dgallion1/docjournal/internal/journal"
	"github.com/dgallion1/docjournal/internal/source"
	"github.com/dgallion1/docjournal/internal/structure"
	"golang.org/x/sync/errgroup"
)

// maxBatchDocuments caps a single batch request.
const maxBatchDocuments = 50

type convertRequest struct {
	ModID    string          `json:"mod_id"`
	Title    string          `json:"title"`
	TOCTitle string          `json:"toc_title,omitempty"`
	Policy   string          `json:"policy,omitempty"`
	Bundle   json.RawMessage `json:"bundle"`
}

type convertResponse struct {
	ModID   string           `json:"mod_id"`
	Title   string           `json:"title"`
	Entries []*journal.Entry `json:"entries"`
	TOC     *journal.Entry   `json:"toc"`
	Issues  []string         `json:"issues"`
}

type batchItem struct {
	Index  int              `json:"index"`
	ModID  string           `json:"mod_id"`
	Result *convertResponse `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.convertOne(req)
	if err != nil {
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConvertBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10)

	var body struct {
		Documents []convertRequest `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.Documents) == 0 {
		jsonError(w, "at least one document is required", http.StatusBadRequest)
		return
	}
	if len(body.Documents) > maxBatchDocuments {
		jsonError(w, fmt.Sprintf("too many documents (max %d)", maxBatchDocuments), http.StatusBadRequest)
		return
	}

	results := make([]batchItem, len(body.Documents))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(max(1, s.cfg.WorkerCount))
	for i, req := range body.Documents {
		g.Go(func() error {
			results[i] = batchItem{Index: i, ModID: req.ModID}
			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			resp, err := s.convertOne(req)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Result = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	failed := 0
	for _, item := range results {
		if item.Error != "" {
			failed++
		}
	}
	s.log.Info("batch conversion complete", "documents", len(results), "failed", failed)
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "failed": failed})
}

// convertOne decodes the bundle in req and converts it with the server
// defaults, overridden by the request's own options.
func (s *Server) convertOne(req convertRequest) (*convertResponse, error) {
	if req.ModID == "" {
		return nil, convert.ErrMissingModID
	}
	if len(req.Bundle) == 0 {
		return nil, errBadRequest("bundle is required")
	}

	opts := s.orchestrator.ConvertOptions()
	if req.TOCTitle != "" {
		opts.TOCTitle = req.TOCTitle
	}
	if req.Policy != "" {
		policy, err := structure.ParsePolicy(req.Policy)
		if err != nil {
			return nil, errBadRequest(err.Error())
		}
		opts.Policy = policy
	}

	start := time.Now()
	doc, err := source.DecodeBundle(req.Bundle)
	if err != nil {
		return nil, errBadRequest(err.Error())
	}

	res, err := convert.RunLogged(s.log.With("mod_id", req.ModID), convert.Request{
		ModID:    req.ModID,
		Title:    req.Title,
		Document: doc,
		Options:  opts,
	})
	if err != nil {
		s.orchestrator.Stats().RecordFailure(time.Since(start))
		return nil, err
	}

	s.orchestrator.Stats().Record(time.Since(start))
	return &convertResponse{
		ModID:   req.ModID,
		Title:   res.IR.Title,
		Entries: res.Entries,
		TOC:     res.TOC,
		Issues:  append([]string{}, res.Issues...),
	}, nil
}

type errBadRequest string

func (e errBadRequest) Error() string { return string(e) }

// statusFor maps a conversion error to a response code. Anything that is
// not a malformed request is input the converter could not accept.
func statusFor(err error) int {
	var bad errBadRequest
	if errors.As(err, &bad) || errors.Is(err, convert.ErrMissingModID) {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}
