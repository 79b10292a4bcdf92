package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/matching"
)

const (
	uploadField     = "file"
	multipartMemory = 1 << 20
)

func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r)
	if r.ContentLength > s.cfg.MaxUploadBytes {
		s.fail(w, log, &http.MaxBytesError{Limit: s.cfg.MaxUploadBytes})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, log, err)
			return
		}
		s.fail(w, log, badRequest("expected a multipart/form-data body"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("removing multipart spool files", zap.Error(err))
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.fail(w, log, badRequest(fmt.Sprintf("form field %q with the resume file is required", uploadField)))
		return
	}
	defer file.Close()

	log.Info("resume received", zap.String("file", header.Filename), zap.Int64("bytes", header.Size))

	report, err := s.svc.ProcessUpload(r.Context(), header.Filename, file)
	if err != nil {
		s.fail(w, log, err)
		return
	}

	respondJSON(w, http.StatusOK, newUploadResponse(report))
}

func (s *Server) handleMatchJobs(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := s.requestLogger(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	req, err := s.decodeMatchRequest(r)
	if err != nil {
		s.fail(w, log, err)
		return
	}

	jobs, err := catalog.DecodeJobs(log, req.Jobs)
	if err != nil {
		s.fail(w, log, matching.NewValidationError("jobs", err.Error()))
		return
	}

	results, err := s.svc.Match(r.Context(), req.ResumeProfile.toProfile(), jobs)
	if err != nil {
		s.fail(w, log, err)
		return
	}

	respondJSON(w, http.StatusOK, matchResponse{
		Success:           true,
		Message:           "Matching completed successfully",
		JobMatches:        newJobMatches(results),
		TotalJobsAnalysed: len(jobs),
		ProcessingTimeMS:  time.Since(start).Milliseconds(),
	})
}

func (s *Server) decodeMatchRequest(r *http.Request) (*matchRequest, error) {
	var req matchRequest

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		var (
			tooLarge *http.MaxBytesError
			typeErr  *json.UnmarshalTypeError
		)
		switch {
		case errors.As(err, &tooLarge):
			return nil, err
		case errors.As(err, &typeErr):
			return nil, matching.NewValidationError(typeErr.Field, fmt.Sprintf("must not be %s", typeErr.Value))
		default:
			return nil, badRequest("request body is not valid JSON")
		}
	}

	if err := s.validate.Struct(&req); err != nil {
		return nil, toValidationError(err)
	}

	return &req, nil
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.svc.Jobs()
	respondJSON(w, http.StatusOK, jobsResponse{
		Success: true,
		Message: "Jobs loaded from local data",
		Jobs:    jobs,
		Total:   len(jobs),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.Health())
}

// fail writes err with the status HTTPStatus picks. Internal errors are
// logged in full and hidden from the client.
func (s *Server) fail(w http.ResponseWriter, log *zap.Logger, err error) {
	status := HTTPStatus(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		message = "internal error while processing the request"
	} else {
		log.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	}

	writeError(w, status, message)
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return matching.NewValidationError("", err.Error())
	}

	fe := fieldErrs[0]
	// Namespace starts with the Go type name of the request.
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	var message string
	switch fe.Tag() {
	case "required":
		message = "is required"
	case "gte":
		message = "must be at least " + fe.Param()
	case "max":
		message = "must be at most " + fe.Param() + " long"
	default:
		message = "failed the " + fe.Tag() + " check"
	}

	return matching.NewValidationError(field, message)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Success: false, Message: message})
}
