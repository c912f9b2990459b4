package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	models "TrendPull/internal/domain/models"
	domrepo "TrendPull/internal/domain/repository"
	"TrendPull/internal/regime"
	icache "TrendPull/internal/service/cache"
	svcmetrics "TrendPull/internal/service/metrics"
	"TrendPull/internal/service/ratelimit"
	"TrendPull/internal/usecase"
	xhttp "TrendPull/pkg/http"
	xlogger "TrendPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// EngineEchoHandler exposes the engine's read surface over Echo.
type EngineEchoHandler struct {
	logger    *xlogger.Logger
	evaluator *usecase.Evaluator
	snapshots *regime.Store
	bars      *usecase.BarsUseCase
	cache     icache.BytesCache
	rl        *ratelimit.Limiter
}

func NewEngineEchoHandler(logger *xlogger.Logger, evaluator *usecase.Evaluator, snapshots *regime.Store, bars *usecase.BarsUseCase, cache icache.BytesCache) *EngineEchoHandler {
	if cache == nil {
		cache = icache.NewTTLCache()
	}
	svcmetrics.Register()
	return &EngineEchoHandler{
		logger:    logger,
		evaluator: evaluator,
		snapshots: snapshots,
		bars:      bars,
		cache:     cache,
		rl:        ratelimit.New(),
	}
}

func (h *EngineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/state", h.State)
	g.GET("/lever", h.Lever)
	g.GET("/regime", h.Regime)
	g.GET("/bars", h.Bars)
}

// allow applies a per-client token bucket and records rejections.
func (h *EngineEchoHandler) allow(c echo.Context, endpoint string, capacity, refillPerSec float64) bool {
	if h.rl.Allow(c.RealIP()+":"+endpoint, capacity, refillPerSec) {
		return true
	}
	svcmetrics.APIRateLimited.WithLabelValues(endpoint).Inc()
	return false
}

func observe(endpoint string, start time.Time) {
	svcmetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// successBody mirrors the envelope SuccessResponse writes, for cached blobs.
func successBody(data interface{}) xhttp.APIResponse {
	return xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	}
}

// State returns the current trend state for one (instrument, timeframe).
func (h *EngineEchoHandler) State(c echo.Context) error {
	defer observe("state", time.Now())
	if !h.allow(c, "state", 20, 10) {
		return c.NoContent(http.StatusTooManyRequests)
	}

	req := &models.StateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	st, ok := h.evaluator.State(req.Instrument, string(tf))
	if !ok {
		return xhttp.NotFoundResponse(c, "no state for instrument/timeframe")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, st)
}

// Lever computes the levers on demand from the current snapshot.
func (h *EngineEchoHandler) Lever(c echo.Context) error {
	defer observe("lever", time.Now())
	if !h.allow(c, "lever", 10, 5) {
		return c.NoContent(http.StatusTooManyRequests)
	}

	req := &models.LeverRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	lv, err := h.evaluator.Lever(c.Request().Context(), req.Instrument)
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("lever").Inc()
		h.logger.Error("lever usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, lv)
}

// Regime returns the latest published driver snapshot. The serialized
// snapshot is cached briefly since every instrument shares it.
func (h *EngineEchoHandler) Regime(c echo.Context) error {
	defer observe("regime", time.Now())
	if !h.allow(c, "regime", 5, 2) {
		return c.NoContent(http.StatusTooManyRequests)
	}

	snap := h.snapshots.Current()
	if snap == nil {
		return xhttp.NotFoundResponse(c, "no regime snapshot published yet")
	}

	key := fmt.Sprintf("api:regime:%d", snap.Seq)
	if b, ok, _ := h.cache.GetBytes(key); ok {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
		return c.JSONBlob(http.StatusOK, b)
	}

	b, err := json.Marshal(successBody(snap))
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("regime").Inc()
		return xhttp.AppErrorResponse(c, err)
	}
	_ = h.cache.SetBytes(key, b, 15*time.Second)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return c.JSONBlob(http.StatusOK, b)
}

// Bars returns the latest bars backing an evaluation window.
func (h *EngineEchoHandler) Bars(c echo.Context) error {
	defer observe("bars", time.Now())
	if !h.allow(c, "bars", 5, 2) {
		return c.NoContent(http.StatusTooManyRequests)
	}

	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	// Explicit time range bypasses the latest-window path.
	if fromStr := c.QueryParam("from"); fromStr != "" {
		from := xhttp.ParseTimeDefault(fromStr, time.Time{})
		to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now().UTC())
		res, err := h.bars.GetBarsRange(c.Request().Context(), req.Instrument, from, to, tf)
		if err != nil {
			svcmetrics.APIErrors.WithLabelValues("bars").Inc()
			return xhttp.BadRequestResponse(c, err.Error())
		}
		if limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 && len(res.Bars) > limit {
			res.Bars = res.Bars[len(res.Bars)-limit:]
			res.Count = len(res.Bars)
		}
		return xhttp.SuccessResponse(c, res)
	}

	key := fmt.Sprintf("api:bars:%s:%s:%d", req.Instrument, tf, req.N)
	if b, ok, _ := h.cache.GetBytes(key); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.bars.GetLatestBars(c.Request().Context(), usecase.GetBarsParams{
		Instrument: req.Instrument,
		Timeframe:  tf,
		Limit:      req.N,
	})
	if err != nil {
		svcmetrics.APIErrors.WithLabelValues("bars").Inc()
		h.logger.Error("bars usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if b, err := json.Marshal(successBody(res)); err == nil {
		_ = h.cache.SetBytes(key, b, 5*time.Second)
		return c.JSONBlob(http.StatusOK, b)
	}
	return xhttp.SuccessResponse(c, res)
}
