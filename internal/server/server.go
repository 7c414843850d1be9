package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"asset-catalog/internal/catalog"
	"asset-catalog/internal/daemon"
	"asset-catalog/internal/logging"

	"github.com/gorilla/mux"
)

// ScanStarter launches a scan for a volume and returns the job id without
// blocking on the scan itself.
type ScanStarter func(volumeLabel, path string, recursive, force bool, policy catalog.DuplicatePolicy) (jobID string, err error)

// Handlers carries the dependencies of the HTTP API.
type Handlers struct {
	cat       *catalog.Catalog
	daemon    *daemon.Daemon
	startScan ScanStarter
}

func New(cat *catalog.Catalog, d *daemon.Daemon, startScan ScanStarter) *Handlers {
	return &Handlers{cat: cat, daemon: d, startScan: startScan}
}

// Router builds the API routes.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/volumes", h.ListVolumes).Methods("GET")
	api.HandleFunc("/volumes/{label}", h.GetVolume).Methods("GET")
	api.HandleFunc("/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/errors", h.GetJobErrors).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", h.CancelJob).Methods("POST")
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/assets/{id}", h.GetAsset).Methods("GET")
	api.HandleFunc("/assets/{id}/rerender", h.RerenderAsset).Methods("POST")
	api.HandleFunc("/progress", h.GetProgress).Methods("GET")

	return r
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.cat.CountAssets(r.Context(), 0); err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handlers) ListVolumes(w http.ResponseWriter, r *http.Request) {
	vols, err := h.cat.ListVolumes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, vols)
}

func (h *Handlers) GetVolume(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["label"]
	vol, err := h.cat.GetVolumeByLabel(r.Context(), label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if vol == nil {
		writeError(w, http.StatusNotFound, "volume not found")
		return
	}
	writeJSON(w, http.StatusOK, vol)
}

func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	label := q.Get("volume")
	if label == "" {
		writeError(w, http.StatusBadRequest, "volume parameter required")
		return
	}
	recursive := q.Get("recursive") != "false"
	force := q.Get("force") == "true"
	policy := catalog.DuplicatePolicy(q.Get("policy"))
	if policy != "" && !catalog.ValidPolicy(policy) {
		writeError(w, http.StatusBadRequest, "invalid policy")
		return
	}

	jobID, err := h.startScan(label, q.Get("path"), recursive, force, policy)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	logging.Info("Scan requested via API: volume %q path %q (job %s)", label, q.Get("path"), jobID)
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.cat.GetScanJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handlers) GetJobErrors(w http.ResponseWriter, r *http.Request) {
	errs, err := h.cat.ListJobErrors(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, errs)
}

func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	if err := h.cat.CancelScanJob(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancel requested"})
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter required")
		return
	}
	limit := 50
	if s := q.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	hits, err := h.cat.Search(r.Context(), query, catalog.AssetKind(q.Get("kind")), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cat.CalculateStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset id")
		return
	}
	asset, err := h.cat.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if asset == nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handlers) RerenderAsset(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid asset id")
		return
	}
	force := r.URL.Query().Get("force") != "false"
	if err := h.daemon.RequestRerender(id, force); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "rerender queued"})
}

func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.daemon.Progress())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
