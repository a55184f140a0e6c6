package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/export"
	"github.com/Veraticus/tally/internal/loader"
	"github.com/Veraticus/tally/internal/model"
	"github.com/Veraticus/tally/internal/queue"
	"github.com/Veraticus/tally/internal/service"
	"github.com/Veraticus/tally/internal/storage"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 32 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	CorrID  string `json:"corrId"`
}

type packageDetail struct {
	Package       *model.PackageSummary     `json:"package"`
	Discrepancies []model.Discrepancy       `json:"discrepancies"`
	Runs          []model.ReconciliationRun `json:"runs"`
}

type importedPackage struct {
	ID       string                    `json:"id"`
	Invoices int                       `json:"invoices"`
	Charges  int                       `json:"charges"`
	Rejected []model.ValidationFailure `json:"rejected"`
}

type overrideRequest struct {
	Key             string          `json:"key"`
	Author          string          `json:"author"`
	CorrectedAmount model.RawAmount `json:"corrected_amount"`
	Note            string          `json:"note"`
}

type reconcileRequest struct {
	PackageID      string `json:"package_id"`
	Period         string `json:"period"`
	CounterpartyID string `json:"counterparty_id"`
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.PackageFilter{
		Period:         q.Get("period"),
		CounterpartyID: q.Get("counterparty"),
		Status:         model.PackageStatus(q.Get("status")),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "limit: "+err.Error())
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "offset: "+err.Error())
		return
	}
	if v := q.Get("archived"); v != "" {
		if filter.IncludeArchived, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "archived: "+err.Error())
			return
		}
	}

	pkgs, err := s.store.ListPackages(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if pkgs == nil {
		pkgs = []model.PackageSummary{}
	}
	writeJSON(w, http.StatusOK, pkgs)
}

func (s *Server) importPackages(w http.ResponseWriter, r *http.Request) {
	docs, err := loader.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]importedPackage, 0, len(docs))
	for _, doc := range docs {
		res, err := engine.Import(r.Context(), s.store, doc)
		if err != nil {
			s.fail(w, r, fmt.Errorf("package %q: %w", doc.ID, err))
			return
		}
		out = append(out, importedPackage{
			ID:       res.Package.ID,
			Invoices: len(res.Package.Invoices),
			Charges:  len(res.Package.Charges),
			Rejected: nonNil(res.Failures),
		})
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) getPackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "packageID")
	ctx := r.Context()

	pkg, err := s.store.GetPackage(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	discrepancies, err := s.store.GetDiscrepancies(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	runs, err := s.store.GetRuns(ctx, id, 10)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, packageDetail{
		Package:       pkg,
		Discrepancies: nonNil(discrepancies),
		Runs:          nonNil(runs),
	})
}

func (s *Server) archivePackage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "packageID")
	if err := s.store.ArchivePackage(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	pkg, err := s.store.GetPackage(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request) {
	detail, err := s.store.GetInvoiceDetail(r.Context(), chi.URLParam(r, "packageID"), chi.URLParam(r, "invoiceID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) listOverrides(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "packageID")
	if _, err := s.store.GetPackage(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	overrides, err := s.store.GetOverrides(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(overrides))
}

func (s *Server) createOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	amount, err := loader.ParseAmount(req.CorrectedAmount)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "corrected_amount: "+err.Error())
		return
	}

	o := &model.Override{
		PackageID:       chi.URLParam(r, "packageID"),
		Key:             req.Key,
		Author:          req.Author,
		Note:            req.Note,
		CorrectedAmount: amount,
	}
	if err := s.store.SaveOverride(r.Context(), o); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
	}

	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	report, err := s.engine.ReconcileStored(r.Context(), s.store, service.PackageFilter{
		ID:             req.PackageID,
		Period:         req.Period,
		CounterpartyID: req.CounterpartyID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role, err := queue.ParseRole(q.Get("role"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	recent, err := intParam(q.Get("recent"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "recent: "+err.Error())
		return
	}
	scope := queue.Scope{Period: q.Get("period"), CounterpartyID: q.Get("counterparty"), Role: role}

	rq, err := s.engine.StoredQueueRecent(r.Context(), s.store, scope, recent)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch strings.ToLower(q.Get("format")) {
	case "", "json":
		writeJSON(w, http.StatusOK, rq)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="review-queue.xlsx"`)
		if err := export.WriteXLSX(w, rq); err != nil {
			s.logger.Error("Failed to stream workbook", "error", err)
		}
	default:
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", fmt.Sprintf("unknown format %q", q.Get("format")))
	}
}

func (s *Server) metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Metrics().Snapshot())
}

// fail maps a domain error onto an HTTP status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, engine.ErrNoPackages):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, common.ErrDuplicateEntry):
		status, code = http.StatusConflict, "DUPLICATE"
	case errors.Is(err, common.ErrArchived):
		status, code = http.StatusConflict, "ARCHIVED"
	case errors.Is(err, common.ErrStaleOverride):
		status, code = http.StatusConflict, "STALE_OVERRIDE"
	case errors.Is(err, common.ErrMalformedRecord),
		errors.Is(err, storage.ErrInvalidPackage),
		errors.Is(err, storage.ErrInvalidOverride),
		errors.Is(err, storage.ErrInvalidStatus),
		errors.Is(err, storage.ErrEmptyString):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, r, status, code, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("want a non-negative integer, got %q", v)
	}
	return n, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message, CorrID: r.Header.Get(CorrelationHeader)})
}
