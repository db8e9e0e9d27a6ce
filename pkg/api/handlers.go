package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/ssargent/mb2/pkg/codec"
	"github.com/ssargent/mb2/pkg/inspect"
	"github.com/ssargent/mb2/pkg/mbh"
	"github.com/ssargent/mb2/pkg/mbi"
	"github.com/ssargent/mb2/pkg/storage"
)

var errUnknownFormat = errors.New("unknown format")

// Server holds the API server state
type Server struct {
	store   storage.DumpStore
	config  ServerConfig
	metrics *Metrics
	log     logrus.FieldLogger
}

// NewServer creates a new API server
func NewServer(store storage.DumpStore, config ServerConfig, metrics *Metrics, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		store:   store,
		config:  config,
		metrics: metrics,
		log:     log,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Get the health status of the API
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	APIResponse
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleInspect godoc
//
//	@Summary		Inspect a dump
//	@Description	Validate boot information or find and validate the header of a kernel image
//	@Tags			inspect
//	@Accept			octet-stream
//	@Produce		json
//	@Param			format	query		string	false	"mbi (default) or header"
//	@Param			body	body		[]byte	true	"Raw bytes"
//	@Success		200		{object}	APIResponse{data=inspect.Report}
//	@Failure		400		{object}	APIResponse
//	@Failure		413		{object}	APIResponse
//	@Failure		422		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/inspect [post]
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	format, data, ok := s.readDump(w, r)
	if !ok {
		return
	}
	report, ok := s.analyzeOrFail(w, format, data)
	if !ok {
		return
	}
	sendSuccess(w, report)
}

// handleCreateDump godoc
//
//	@Summary		Archive a dump
//	@Description	Validate a dump and store it when it is well formed
//	@Tags			dumps
//	@Accept			octet-stream
//	@Produce		json
//	@Param			format	query		string	false	"mbi (default) or header"
//	@Param			name	query		string	false	"Label for the dump"
//	@Param			body	body		[]byte	true	"Raw bytes"
//	@Success		201		{object}	APIResponse{data=DumpResponse}
//	@Failure		400		{object}	APIResponse
//	@Failure		413		{object}	APIResponse
//	@Failure		422		{object}	APIResponse
//	@Failure		500		{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/dumps [post]
func (s *Server) handleCreateDump(w http.ResponseWriter, r *http.Request) {
	format, data, ok := s.readDump(w, r)
	if !ok {
		return
	}
	report, ok := s.analyzeOrFail(w, format, data)
	if !ok {
		return
	}

	d, err := s.store.Create(format, r.URL.Query().Get("name"), data)
	s.metrics.RecordDumpOperation("create", err == nil)
	if err != nil {
		s.log.WithError(err).Error("failed to store dump")
		sendError(w, "Failed to store dump", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusCreated, APIResponse{Success: true, Data: DumpResponse{Dump: d, Report: report}})
}

// handleListDumps godoc
//
//	@Summary		List dumps
//	@Tags			dumps
//	@Produce		json
//	@Success		200	{object}	APIResponse{data=[]storage.Dump}
//	@Failure		500	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/dumps [get]
func (s *Server) handleListDumps(w http.ResponseWriter, r *http.Request) {
	dumps, err := s.store.List()
	s.metrics.RecordDumpOperation("list", err == nil)
	if err != nil {
		s.log.WithError(err).Error("failed to list dumps")
		sendError(w, "Failed to list dumps", http.StatusInternalServerError)
		return
	}
	s.metrics.SetDumpsStored(len(dumps))
	sendSuccess(w, dumps)
}

// handleGetDump godoc
//
//	@Summary		Get a dump
//	@Description	Returns the stored dump with a fresh report, or its raw bytes when raw=1
//	@Tags			dumps
//	@Produce		json,octet-stream
//	@Param			id	path		string	true	"Dump ID"
//	@Param			raw	query		bool	false	"Return the raw bytes"
//	@Success		200	{object}	APIResponse{data=DumpResponse}
//	@Failure		400	{object}	APIResponse
//	@Failure		404	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/dumps/{id} [get]
func (s *Server) handleGetDump(w http.ResponseWriter, r *http.Request) {
	id, ok := dumpID(w, r)
	if !ok {
		return
	}
	d, data, err := s.store.Read(id)
	s.metrics.RecordDumpOperation("read", err == nil || errors.Is(err, storage.ErrNotFound))
	if !s.storeErrorOK(w, err) {
		return
	}

	if raw := r.URL.Query().Get("raw"); raw == "1" || raw == "true" {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.ID.String()+".bin"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	resp := DumpResponse{Dump: d}
	if report, err := s.analyze(d.Kind, data); err == nil {
		resp.Report = report
	} else {
		s.log.WithError(err).WithField("id", d.ID.String()).Warn("stored dump no longer parses")
	}
	sendSuccess(w, resp)
}

// handleDeleteDump godoc
//
//	@Summary		Delete a dump
//	@Tags			dumps
//	@Produce		json
//	@Param			id	path		string	true	"Dump ID"
//	@Success		200	{object}	APIResponse
//	@Failure		400	{object}	APIResponse
//	@Failure		404	{object}	APIResponse
//	@Security		ApiKeyAuth
//	@Router			/dumps/{id} [delete]
func (s *Server) handleDeleteDump(w http.ResponseWriter, r *http.Request) {
	id, ok := dumpID(w, r)
	if !ok {
		return
	}
	err := s.store.Delete(id)
	s.metrics.RecordDumpOperation("delete", err == nil || errors.Is(err, storage.ErrNotFound))
	if !s.storeErrorOK(w, err) {
		return
	}
	sendSuccess(w, map[string]string{"id": id.String(), "status": "deleted"})
}

// readDump reads the request body subject to the configured size limit.
func (s *Server) readDump(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatInformation
	}
	if format != formatInformation && format != formatHeader {
		sendError(w, fmt.Sprintf("Unknown format %q (want %s or %s)", format, formatInformation, formatHeader), http.StatusBadRequest)
		return "", nil, false
	}

	body := r.Body
	if s.config.MaxDumpSize > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxDumpSize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, fmt.Sprintf("Dump exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return "", nil, false
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return "", nil, false
	}
	return format, data, true
}

func (s *Server) analyzeOrFail(w http.ResponseWriter, format string, data []byte) (*inspect.Report, bool) {
	start := time.Now()
	report, err := s.analyze(format, data)
	cause := ""
	if err != nil {
		cause = codec.CauseName(err)
	}
	s.metrics.RecordParse(format, len(data), cause, time.Since(start))
	if err != nil {
		s.log.WithFields(logrus.Fields{"format": format, "size": len(data), "cause": cause}).Debug("rejected dump")
		sendValidationError(w, err, cause)
		return nil, false
	}
	s.metrics.RecordReport(format, report)
	return report, true
}

// analyze validates data as format and reports it.
func (s *Server) analyze(format string, data []byte) (*inspect.Report, error) {
	switch format {
	case formatInformation:
		var opts []mbi.ParseOption
		if s.config.RelaxedTermination {
			opts = append(opts, mbi.WithRelaxedTermination())
		}
		bi, err := mbi.Parse(codec.Aligned(data), opts...)
		if err != nil {
			return nil, err
		}
		return inspect.Information(bi), nil
	case formatHeader:
		h, off, err := mbh.Find(data)
		if err != nil {
			return nil, err
		}
		return inspect.Header(h, off), nil
	}
	return nil, fmt.Errorf("%w %q", errUnknownFormat, format)
}

func dumpID(w http.ResponseWriter, r *http.Request) (ksuid.KSUID, bool) {
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid dump ID", http.StatusBadRequest)
		return ksuid.Nil, false
	}
	return id, true
}

func (s *Server) storeErrorOK(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, storage.ErrNotFound):
		sendError(w, "Dump not found", http.StatusNotFound)
	default:
		s.log.WithError(err).Error("archive operation failed")
		sendError(w, "Archive operation failed", http.StatusInternalServerError)
	}
	return false
}
