package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/texbuilder/internal/eventstore"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/query"
)

const maxRequestBody = 4 << 20

// BuildRequest asks for a build of RootFile, optionally followed by a forward sync.
type BuildRequest struct {
	RootFile    string              `json:"root_file"`
	ForwardSync *ForwardSyncRequest `json:"forward_sync,omitempty"`
}

// ForwardSyncRequest locates a source position in the PDF.
type ForwardSyncRequest struct {
	RootFile string `json:"root_file"`
	Filename string `json:"filename"`
	Line     int    `json:"line"` // 1-based
	Column   int    `json:"column"`
	PDFPath  string `json:"pdf_path,omitempty"`
	Build    bool   `json:"build,omitempty"` // build before syncing
}

// BackwardSyncRequest locates a clicked PDF position in the source.
type BackwardSyncRequest struct {
	RootFile string            `json:"root_file"`
	PDFPath  string            `json:"pdf_path,omitempty"`
	Page     int               `json:"page"`
	X        float64           `json:"x"`
	Y        float64           `json:"y"`
	Word     string            `json:"word,omitempty"`
	Context  string            `json:"context,omitempty"`
	Sources  map[string]string `json:"sources,omitempty"`
}

// StopRequest cancels the active query.
type StopRequest struct {
	Notify bool `json:"notify"`
}

// QueuedResponse acknowledges a scheduled query.
type QueuedResponse struct {
	QueryID  string        `json:"query_id"`
	RootFile string        `json:"root_file"`
	Jobs     []query.JobID `json:"jobs"`
}

// StatusResponse describes the build system state.
type StatusResponse struct {
	Building bool         `json:"building"`
	Active   *QueryStatus `json:"active,omitempty"`
}

// QueryStatus describes the query in flight.
type QueryStatus struct {
	QueryID      string        `json:"query_id"`
	RootFile     string        `json:"root_file"`
	PendingJobs  []query.JobID `json:"pending_jobs"`
	Passes       int           `json:"passes"`
	RerunReasons []string      `json:"rerun_reasons,omitempty"`
	ErrorCount   int           `json:"error_count"`
	Done         bool          `json:"done"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Building: s.builds.IsBuilding()}
	if q := s.builds.Active(); q != nil {
		resp.Active = &QueryStatus{
			QueryID:      q.ID(),
			RootFile:     q.RootFile(),
			PendingJobs:  q.PendingJobs(),
			Passes:       q.Passes(),
			RerunReasons: q.RerunReasons(),
			ErrorCount:   q.ErrorCount(),
			Done:         q.IsDone(),
		}
	}
	s.Success(w, http.StatusOK, resp)
}

func (s *Server) handleLatestEvents(w http.ResponseWriter, _ *http.Request) {
	s.Success(w, http.StatusOK, s.builds.Latest())
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.Error(w, r, err)
		return
	}
	if err := validateRootFile(req.RootFile); err != nil {
		s.Error(w, r, err)
		return
	}

	jobs := []query.JobID{query.JobBuildLatex}
	if req.ForwardSync != nil {
		if err := validateForward(req.ForwardSync); err != nil {
			s.Error(w, r, err)
			return
		}
		jobs = append(jobs, query.JobForwardSync)
	}

	q := query.New(req.RootFile, jobs...)
	q.Build = s.params
	if req.ForwardSync != nil {
		q.ForwardSync = forwardParams(req.ForwardSync)
	}
	s.enqueue(w, q)
}

func (s *Server) handleForwardSync(w http.ResponseWriter, r *http.Request) {
	var req ForwardSyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.Error(w, r, err)
		return
	}
	if err := validateRootFile(req.RootFile); err != nil {
		s.Error(w, r, err)
		return
	}
	if err := validateForward(&req); err != nil {
		s.Error(w, r, err)
		return
	}

	jobs := []query.JobID{query.JobForwardSync}
	if req.Build {
		jobs = []query.JobID{query.JobBuildLatex, query.JobForwardSync}
	}
	q := query.New(req.RootFile, jobs...)
	q.Build = s.params
	q.ForwardSync = forwardParams(&req)
	s.enqueue(w, q)
}

func (s *Server) handleBackwardSync(w http.ResponseWriter, r *http.Request) {
	var req BackwardSyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.Error(w, r, err)
		return
	}
	if err := validateRootFile(req.RootFile); err != nil {
		s.Error(w, r, err)
		return
	}
	if req.Page < 1 {
		s.Error(w, r, errors.ValidationError("page must be at least 1").WithContext("page", req.Page).Build())
		return
	}

	q := query.New(req.RootFile, query.JobBackwardSync)
	q.Build = s.params
	q.BackwardSync = query.BackwardSyncParams{
		PDFPath: req.PDFPath,
		Page:    req.Page,
		X:       req.X,
		Y:       req.Y,
		Word:    req.Word,
		Context: req.Context,
		Sources: req.Sources,
	}
	s.enqueue(w, q)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.Error(w, r, err)
			return
		}
	}
	wasBuilding := s.builds.Active() != nil
	s.builds.StopBuilding(req.Notify)
	s.Success(w, http.StatusOK, map[string]bool{"stopped": wasBuilding})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.Error(w, r, errors.RuntimeError("query history is disabled").Build())
		return
	}
	summary, err := eventstore.LoadSummary(r.Context(), s.history, chi.URLParam(r, "id"))
	if err != nil {
		s.Error(w, r, err)
		return
	}
	s.Success(w, http.StatusOK, summary)
}

func (s *Server) enqueue(w http.ResponseWriter, q *query.Query) {
	resp := QueuedResponse{QueryID: q.ID(), RootFile: q.RootFile(), Jobs: q.PendingJobs()}
	s.builds.AddQuery(q)
	s.Success(w, http.StatusAccepted, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid request body").Build()
	}
	return nil
}

func validateRootFile(path string) error {
	if path == "" {
		return errors.ValidationError("root_file is required").Build()
	}
	if !filepath.IsAbs(path) {
		return errors.ValidationError("root_file must be an absolute path").
			WithContext("root_file", path).Build()
	}
	return nil
}

func validateForward(req *ForwardSyncRequest) error {
	if req.Filename == "" {
		return errors.ValidationError("filename is required").Build()
	}
	if req.Line < 1 {
		return errors.ValidationError("line must be at least 1").WithContext("line", req.Line).Build()
	}
	return nil
}

func forwardParams(req *ForwardSyncRequest) query.ForwardSyncParams {
	return query.ForwardSyncParams{
		Filename: req.Filename,
		Line:     req.Line,
		Column:   req.Column,
		PDFPath:  req.PDFPath,
	}
}
