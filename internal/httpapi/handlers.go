package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"pendencias/internal"
	"pendencias/internal/config"
	"pendencias/internal/pipeline"
	"pendencias/internal/storage"
)

type Handlers struct {
	svc        *pipeline.ProcessingService
	db         *storage.DB
	maxUpload  int64
	delimiter  rune
	topModules int
	log        *zap.Logger
}

// NewHandlers builds the API handlers; db may be nil, in which case /api/runs
// answers 503.
func NewHandlers(svc *pipeline.ProcessingService, db *storage.DB, cfg config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := int64(cfg.MaxUploadMB) << 20
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	delimiter := ','
	if cfg.Delimiter == ";" {
		delimiter = ';'
	}
	return &Handlers{
		svc:        svc,
		db:         db,
		maxUpload:  maxUpload,
		delimiter:  delimiter,
		topModules: cfg.TopModules,
		log:        logger.Named("http"),
	}
}

type extractResponse struct {
	TraceID     string                   `json:"traceId"`
	Records     []internal.PendingRecord `json:"records"`
	Summary     pipeline.Summary         `json:"summary"`
	Diagnostics internal.Diagnostics     `json:"diagnostics"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) Extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	q := r.URL.Query()
	output := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if output == "" {
		output = "json"
	}
	if output != "json" && output != "csv" && output != "xlsx" {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown output format %q", output))
		return
	}

	overrides, err := parseOverrides(q)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := overrides.Apply(h.svc.Options())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseFilter(q)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.ProcessFileWith(r.Context(), header.Filename, data, opts)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
			"kind":  string(pipeline.KindOf(err)),
		})
		return
	}
	records := pipeline.Filter(res.Records, filter)

	w.Header().Set("X-Trace-Id", res.TraceID)
	base := strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	switch output {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"_pendencias.csv"))
		if err := pipeline.WriteCSV(w, records, h.delimiter); err != nil {
			h.log.Warn("csv response failed", zap.Error(err))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"_pendencias.xlsx"))
		if err := pipeline.WriteXLSX(w, records); err != nil {
			h.log.Warn("xlsx response failed", zap.Error(err))
		}
	default:
		respondJSON(w, http.StatusOK, extractResponse{
			TraceID:     res.TraceID,
			Records:     records,
			Summary:     pipeline.Summarize(records, h.topModules),
			Diagnostics: res.Diagnostics,
		})
	}
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respondError(w, http.StatusServiceUnavailable, "run ledger disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.db.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func parseOverrides(q map[string][]string) (pipeline.Overrides, error) {
	get := func(key string) string {
		if v := q[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	var o pipeline.Overrides
	if v := get("header_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return o, errors.New("header_rows must be 1 or 2")
		}
		o.HeaderRows = n
	}
	o.Delimiter = get("delimiter")
	o.Encoding = get("encoding")
	o.Format = get("input_format")
	if v := get("treat_blank"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, errors.New("treat_blank must be a boolean")
		}
		o.TreatBlank = &b
	}
	return o, nil
}

func parseFilter(q map[string][]string) (pipeline.FilterOptions, error) {
	f := pipeline.FilterOptions{
		Tutors:  q["tutor"],
		Modules: q["module"],
	}
	for _, v := range q["status"] {
		s, ok := internal.ParseStatus(v)
		if !ok {
			return f, fmt.Errorf("unknown status %q", v)
		}
		f.Statuses = append(f.Statuses, s)
	}
	return f, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
