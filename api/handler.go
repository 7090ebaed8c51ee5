package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rustyeddy/tradegate/engine"
	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/logger"
)

// Handler serves the engine's state and controls.
type Handler struct {
	engine *engine.Engine
	logger zerolog.Logger
}

func NewHandler(e *engine.Engine, log zerolog.Logger) *Handler {
	return &Handler{engine: e, logger: logger.Component(log, "api")}
}

// RegisterRoutes mounts every endpoint on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
	e.GET("/metrics", echo.WrapHandler(h.engine.Metrics().Handler()))

	g := e.Group("/api")
	g.GET("/assets", h.assets)
	g.GET("/modes", h.modes)
	g.GET("/regime/:asset", h.regime)
	g.GET("/risk", h.risk)
	g.GET("/cooldown/:asset", h.cooldownStatus)
	g.DELETE("/cooldown/:asset", h.cooldownClear)
	g.GET("/settings", h.settings)
	g.PATCH("/settings", h.updateSettings)
	g.POST("/evaluate/:asset", h.evaluate)
	g.POST("/trades/:asset/manual", h.manualTrade)
	g.GET("/trades", h.trades)
	g.GET("/trades/export", h.exportTrades)
	g.GET("/trades/summary", h.summary)
	g.GET("/trades/:id", h.trade)
}

func (h *Handler) health(c echo.Context) error {
	return SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *Handler) assets(c echo.Context) error {
	list := market.AssetList()
	return ListResponse(c, list, len(list))
}

type modeInfo struct {
	Mode        gate.Mode `json:"mode"`
	Description string    `json:"description"`
	Current     bool      `json:"current"`
}

func (h *Handler) modes(c echo.Context) error {
	cur := h.engine.Gate().Settings().Get().Mode
	var out []modeInfo
	for _, m := range gate.Modes() {
		out = append(out, modeInfo{Mode: m, Description: m.Description(), Current: m == cur})
	}
	return ListResponse(c, out, len(out))
}

func assetParam(c echo.Context) (market.Asset, error) {
	a, err := market.LookupAsset(c.Param("asset"))
	if err != nil {
		return market.Asset{}, NotFoundErrorf("unknown asset %q", c.Param("asset")).WithError(err)
	}
	return a, nil
}

// regime returns the cached snapshot, classifying on demand when the
// scheduler has not reached the asset yet.
func (h *Handler) regime(c echo.Context) error {
	a, err := assetParam(c)
	if err != nil {
		return err
	}
	snap, err := h.engine.Snapshot(a.Symbol)
	if errors.Is(err, engine.ErrNoSnapshot) || c.QueryParam("refresh") == "true" {
		snap, _, err = h.engine.Classify(c.Request().Context(), a.Symbol)
	}
	if err != nil {
		return InternalErrorf("classify %s", a.Symbol).WithError(err)
	}
	return SuccessResponse(c, snap)
}

type riskResponse struct {
	NAV      float64     `json:"nav"`
	Snapshot interface{} `json:"snapshot"`
}

func (h *Handler) risk(c echo.Context) error {
	rs, err := h.engine.Risk(c.Request().Context())
	if err != nil {
		return InternalErrorf("risk snapshot").WithError(err)
	}
	return SuccessResponse(c, riskResponse{NAV: h.engine.NAV(), Snapshot: rs})
}

func (h *Handler) cooldownStatus(c echo.Context) error {
	a, err := assetParam(c)
	if err != nil {
		return err
	}
	st, err := h.engine.Gate().Cooldowns().Status(c.Request().Context(), a.Symbol)
	if err != nil {
		return InternalErrorf("cooldown status").WithError(err)
	}
	return SuccessResponse(c, st)
}

func (h *Handler) cooldownClear(c echo.Context) error {
	a, err := assetParam(c)
	if err != nil {
		return err
	}
	if err := h.engine.Gate().Cooldowns().Clear(c.Request().Context(), a.Symbol); err != nil {
		return InternalErrorf("cooldown clear").WithError(err)
	}
	h.logger.Info().Str("asset", a.Symbol).Msg("cooldown cleared")
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) settings(c echo.Context) error {
	return SuccessResponse(c, h.engine.Gate().Settings().Get())
}

func (h *Handler) updateSettings(c echo.Context) error {
	var p gate.Patch
	if errs := readAndValidate(c, &p); errs != nil {
		return BadRequestResponse(c, errs)
	}
	if p.Mode != nil {
		m, err := gate.ParseMode(string(*p.Mode))
		if err != nil {
			return BadRequestErrorf("%v", err).WithError(err)
		}
		p.Mode = &m
	}
	s, err := h.engine.Gate().Settings().Update(p)
	if err != nil {
		if errors.Is(err, gate.ErrInvalidSettings) {
			return BadRequestErrorf("%v", err)
		}
		return InternalErrorf("update settings").WithError(err)
	}
	h.logger.Info().Str("mode", string(s.Mode)).Msg("settings updated")
	return SuccessResponse(c, s)
}

func (h *Handler) evaluate(c echo.Context) error {
	a, err := assetParam(c)
	if err != nil {
		return err
	}
	res, err := h.engine.Evaluate(c.Request().Context(), a.Symbol)
	if err != nil {
		return NewAppError("ERR_EVALUATE", "", "evaluation failed", http.StatusBadGateway).WithError(err)
	}
	return SuccessResponse(c, res)
}

type manualRequest struct {
	Action   string `json:"action" validate:"required,oneof=BUY SELL"`
	Override bool   `json:"override"`
}

func (h *Handler) manualTrade(c echo.Context) error {
	a, err := assetParam(c)
	if err != nil {
		return err
	}
	var req manualRequest
	if errs := readAndValidate(c, &req); errs != nil {
		return BadRequestResponse(c, errs)
	}

	res, err := h.engine.ExecuteManual(c.Request().Context(), a.Symbol, market.Action(req.Action), req.Override)
	switch {
	case errors.Is(err, engine.ErrNoSnapshot):
		return ConflictErrorf("no regime snapshot for %s yet", a.Symbol)
	case errors.Is(err, engine.ErrBlocked):
		return NewAppError("ERR_BLOCKED", "", res.Reason, http.StatusForbidden).
			WithParam("violations", res.Verdict.Violations)
	case err != nil:
		return InternalErrorf("manual trade").WithError(err)
	}
	return CreatedResponse(c, res)
}

// parseTime accepts RFC3339 or a bare date. A bare "to" date covers the
// whole day.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return t, nil
}

func filterFromQuery(c echo.Context) (journal.Filter, error) {
	f := journal.Filter{
		Asset:  strings.ToUpper(c.QueryParam("asset")),
		Action: c.QueryParam("action"),
		Mode:   strings.ToUpper(c.QueryParam("mode")),
		Regime: strings.ToUpper(c.QueryParam("regime")),
		Source: strings.ToUpper(c.QueryParam("source")),
		Search: c.QueryParam("search"),
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := parseTime(v, false)
		if err != nil {
			return f, BadRequestErrorf("bad from %q", v).WithError(err)
		}
		f.From = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := parseTime(v, true)
		if err != nil {
			return f, BadRequestErrorf("bad to %q", v).WithError(err)
		}
		f.To = t
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, BadRequestErrorf("bad limit %q", v)
		}
		f.Limit = n
	}
	return f, nil
}

func (h *Handler) trades(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	list, err := h.engine.Store().List(c.Request().Context(), f)
	if err != nil {
		return InternalErrorf("list trades").WithError(err)
	}
	if list == nil {
		list = []journal.Trade{}
	}
	return ListResponse(c, list, len(list))
}

func (h *Handler) trade(c echo.Context) error {
	t, err := h.engine.Store().Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, journal.ErrNotFound) {
		return NotFoundErrorf("trade %s not found", c.Param("id"))
	}
	if err != nil {
		return InternalErrorf("get trade").WithError(err)
	}
	return SuccessResponse(c, t)
}

func (h *Handler) exportTrades(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	list, err := h.engine.Store().List(c.Request().Context(), f)
	if err != nil {
		return InternalErrorf("list trades").WithError(err)
	}
	var buf bytes.Buffer
	if err := journal.WriteCSV(&buf, list); err != nil {
		return InternalErrorf("write csv").WithError(err)
	}
	name := journal.ExportFilename(h.engine.Clock().Now())
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

type summaryResponse struct {
	journal.Summary
	WinRate float64 `json:"win_rate"`
}

func (h *Handler) summary(c echo.Context) error {
	day := h.engine.Clock().Now()
	if v := c.QueryParam("date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return BadRequestErrorf("bad date %q", v).WithError(err)
		}
		day = t
	}
	s, err := journal.DailySummary(c.Request().Context(), h.engine.Store(), day, time.UTC)
	if err != nil {
		return InternalErrorf("daily summary").WithError(err)
	}
	return SuccessResponse(c, summaryResponse{Summary: s, WinRate: s.WinRate()})
}
