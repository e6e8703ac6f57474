package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"PlaylistInsight/core/insight"
	"PlaylistInsight/core/pipeline"
	"PlaylistInsight/logger"

	"github.com/gorilla/mux"
)

const (
	defaultTopLimit  = 10
	maxTopLimit      = 100
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// APIHandler 处理看板数据API请求
type APIHandler struct {
	source DashboardSource
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(source DashboardSource) *APIHandler {
	return &APIHandler{source: source}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}

// dashboard returns the dashboard of ?run=<id>, or of the latest run. On
// failure it has already written the response.
func (h *APIHandler) dashboard(w http.ResponseWriter, r *http.Request, runID string) (*insight.Dashboard, bool) {
	var (
		d   *insight.Dashboard
		err error
	)
	if runID == "" {
		runID = r.URL.Query().Get("run")
	}
	if runID != "" {
		d, err = h.source.ByRun(r.Context(), runID)
	} else {
		d, err = h.source.Latest(r.Context())
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Warn("Dashboard not found", logger.RunID(runID))
			http.Error(w, "Dashboard not found", http.StatusNotFound)
			return nil, false
		}
		logger.Error("Failed to load dashboard",
			logger.RunID(runID),
			logger.ErrorField(err),
		)
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return nil, false
	}
	return d, true
}

// HealthHandler 健康检查
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// RunsHandler 分页列出已发布的运行
func (h *APIHandler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runs, err := h.source.Runs(r.Context(), limit, offset)
	if err != nil {
		logger.Error("Failed to list runs", logger.ErrorField(err))
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// DashboardHandler 返回完整看板数据，/api/runs/{id}/dashboard 指定运行
func (h *APIHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dashboard(w, r, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, d)
}

// FeaturesHandler 特征统计
func (h *APIHandler) FeaturesHandler(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.dashboard(w, r, ""); ok {
		writeJSON(w, d.Features)
	}
}

// CorrelationsHandler 特征相关系数矩阵
func (h *APIHandler) CorrelationsHandler(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.dashboard(w, r, ""); ok {
		writeJSON(w, d.Correlations)
	}
}

// TrendsHandler 按年份或年代的特征趋势
func (h *APIHandler) TrendsHandler(w http.ResponseWriter, r *http.Request) {
	g, err := pipeline.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d, ok := h.dashboard(w, r, "")
	if !ok {
		return
	}
	writeJSON(w, map[string]interface{}{
		"granularity": g,
		"points":      d.Trends(g),
	})
}

func topLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := queryInt(r, "limit", defaultTopLimit)
	if err != nil || limit == 0 || limit > maxTopLimit {
		http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

// TopArtistsHandler 曲目数最多的艺术家
func (h *APIHandler) TopArtistsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := topLimit(w, r)
	if !ok {
		return
	}
	d, ok := h.dashboard(w, r, "")
	if !ok {
		return
	}
	writeJSON(w, d.TopArtists[:min(limit, len(d.TopArtists))])
}

// TopTracksHandler 最受欢迎的曲目
func (h *APIHandler) TopTracksHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := topLimit(w, r)
	if !ok {
		return
	}
	d, ok := h.dashboard(w, r, "")
	if !ok {
		return
	}
	writeJSON(w, d.TopTracks[:min(limit, len(d.TopTracks))])
}

// PlaylistsHandler 每个歌单的特征汇总
func (h *APIHandler) PlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.dashboard(w, r, ""); ok {
		writeJSON(w, d.Playlists)
	}
}

// QualityHandler 数据质量报告
func (h *APIHandler) QualityHandler(w http.ResponseWriter, r *http.Request) {
	if d, ok := h.dashboard(w, r, ""); ok {
		writeJSON(w, d.Quality)
	}
}

// page parses ?limit= and ?offset= for the row endpoints.
func page(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, err := queryInt(r, "limit", defaultPageLimit)
	if err != nil || limit == 0 || limit > maxPageLimit {
		http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
		return 0, 0, false
	}
	offset, err = queryInt(r, "offset", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	return limit, offset, true
}

func window[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	return rows[offset:min(offset+limit, len(rows))]
}

func (h *APIHandler) rowsError(w http.ResponseWriter, runID string, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	logger.Error("Failed to load run rows", logger.RunID(runID), logger.ErrorField(err))
	http.Error(w, "Failed to load run rows", http.StatusInternalServerError)
}

// RunTracksHandler 分页返回某次运行清洗后的曲目
func (h *APIHandler) RunTracksHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	runID := mux.Vars(r)["id"]
	tracks, err := h.source.Tracks(r.Context(), runID)
	if err != nil {
		h.rowsError(w, runID, err)
		return
	}
	writeJSON(w, window(tracks, limit, offset))
}

// RunPlaylistsHandler 分页返回某次运行清洗后的歌单
func (h *APIHandler) RunPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := page(w, r)
	if !ok {
		return
	}
	runID := mux.Vars(r)["id"]
	playlists, err := h.source.Playlists(r.Context(), runID)
	if err != nil {
		h.rowsError(w, runID, err)
		return
	}
	writeJSON(w, window(playlists, limit, offset))
}
