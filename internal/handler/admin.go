package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"wpcom-shopping-cart/internal/logging"
	"wpcom-shopping-cart/internal/service"
	"wpcom-shopping-cart/pkg/apierror"
	"wpcom-shopping-cart/pkg/response"
)

// StatsSource reports cart store statistics.
type StatsSource interface {
	Stats(ctx context.Context) (*service.Stats, error)
}

// Cleaner runs an abandoned cart cleanup on demand.
type Cleaner interface {
	RunNow() (int, error)
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	stats     StatsSource
	cleaner   Cleaner // nil when cleanup is disabled
	dbType    string
	cacheType string
	startTime time.Time
	log       *logrus.Entry
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(stats StatsSource, cleaner Cleaner, dbType, cacheType string) *AdminHandler {
	return &AdminHandler{
		stats:     stats,
		cleaner:   cleaner,
		dbType:    dbType,
		cacheType: cacheType,
		startTime: time.Now(),
		log:       logging.New("AdminHandler"),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	if cartStats, err := h.stats.Stats(r.Context()); err == nil {
		stats["carts"] = cartStats
	} else {
		stats["carts"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// RunCleanup handles POST /api/v1/admin/cleanup
func (h *AdminHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	if h.cleaner == nil {
		response.Error(w, apierror.ServiceUnavailable("cart cleanup is disabled"))
		return
	}
	deleted, err := h.cleaner.RunNow()
	if err != nil {
		h.log.WithError(err).Error("Manual cleanup failed")
		response.Error(w, apierror.InternalError("cleanup failed"))
		return
	}
	response.OK(w, map[string]int{"deleted": deleted})
}
