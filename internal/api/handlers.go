// Package api exposes a dashboard session over HTTP with gin.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"marketlens/app"
	"marketlens/domain/dataframe"
	"marketlens/domain/export"
	"marketlens/internal"
	"marketlens/internal/errors"
	"marketlens/internal/facet"
	"marketlens/internal/session"
	"marketlens/ports"
)

// DefaultRowLimit caps /api/rows when no limit is given
const DefaultRowLimit = 100

// Handler serves the dashboard routes
type Handler struct {
	service *app.DashboardService
	exports ports.ExportRepository // optional
	hub     *SelectionHub
	logger  *internal.Logger
}

// NewHandler creates a handler. exports may be nil when no database is
// configured; the export history routes then answer 404.
func NewHandler(service *app.DashboardService, exports ports.ExportRepository, hub *SelectionHub, logger *internal.Logger) *Handler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if hub == nil {
		hub = NewSelectionHub(0, logger)
	}
	return &Handler{service: service, exports: exports, hub: hub, logger: logger}
}

type selectionBody struct {
	Values []dataframe.Value `json:"values"`
}

func respondError(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), gin.H{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}

// Health reports the loaded frame size and selection version
func (h *Handler) Health(c *gin.Context) {
	s := h.service.Session()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"session": s.ID.String(),
		"rows":    s.Frame().Len(),
		"version": s.Version(),
		"clients": h.hub.ClientCount(),
	})
}

// GetSelection returns the current selection snapshot
func (h *Handler) GetSelection(c *gin.Context) {
	snap := h.service.Session().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"selection": snap.Selection,
		"version":   snap.Version,
		"hash":      snap.Selection.Hash().String(),
	})
}

// SetSelection replaces one facet's selected values and returns the pruned
// result. An empty value list clears the facet.
func (h *Handler) SetSelection(c *gin.Context) {
	var body selectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, errors.InvalidInput("body must look like {\"values\": [...]}: "+err.Error()))
		return
	}

	change, err := h.service.Session().SetSelection(c.Param("facet"), body.Values...)
	if err != nil {
		respondError(c, err)
		return
	}
	h.publish(change)
	c.JSON(http.StatusOK, change)
}

// ResetSelection clears every facet
func (h *Handler) ResetSelection(c *gin.Context) {
	change := h.service.Session().Reset()
	h.publish(change)
	c.JSON(http.StatusOK, change)
}

func (h *Handler) publish(change session.Change) {
	h.hub.Broadcast(SelectionEvent{
		SessionID: h.service.Session().ID.String(),
		Change:    change,
		Timestamp: time.Now().UTC(),
	})
}

// Rows returns the filtered rows, at most ?limit of them
func (h *Handler) Rows(c *gin.Context) {
	limit, err := intQuery(c, "limit", DefaultRowLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	df, err := h.service.Session().Filtered()
	if err != nil {
		respondError(c, err)
		return
	}
	rows := df.Rows()
	total := len(rows)
	if limit >= 0 && limit < total {
		rows = rows[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "rows": rows})
}

// Options returns the values a facet may currently take
func (h *Handler) Options(c *gin.Context) {
	name := c.Param("facet")
	options, err := h.service.Session().Options(name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facet": name, "options": options})
}

// GroupedOptions returns a dependent facet's options grouped by their
// independent value
func (h *Handler) GroupedOptions(c *gin.Context) {
	name := c.Param("facet")
	groups, err := h.service.Session().GroupedOptions(name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"facet": name, "groups": groups})
}

// Aggregate runs the aggregation named by :op
func (h *Handler) Aggregate(c *gin.Context) {
	req, err := parseAggregateRequest(c, c.Param("op"))
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.service.Aggregate(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Summary describes one metric over the filtered rows
func (h *Handler) Summary(c *gin.Context) {
	metric := c.Query("metric")
	if metric == "" {
		respondError(c, errors.InvalidInput("metric is required"))
		return
	}
	summary, err := h.service.Session().Summarize(metric)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metric": metric, "summary": summary})
}

// Profile describes every column of the filtered rows
func (h *Handler) Profile(c *gin.Context) {
	profiles, err := h.service.Session().Profile()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": profiles})
}

// Export computes ?op and writes it to ?format (xlsx, csv or db)
func (h *Handler) Export(c *gin.Context) {
	req, err := parseAggregateRequest(c, c.Query("op"))
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.service.Export(c.Request.Context(), req, c.DefaultQuery("format", "xlsx"))
	if err != nil {
		h.logger.Warn("[API] export failed: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListExports returns the most recent saved exports
func (h *Handler) ListExports(c *gin.Context) {
	if h.exports == nil {
		respondError(c, errors.NotFound("export history"))
		return
	}
	limit, err := intQuery(c, "limit", 20)
	if err != nil {
		respondError(c, err)
		return
	}
	list, err := h.exports.ListExports(c.Request.Context(), limit)
	if err != nil {
		respondError(c, errors.WithCode(errors.CodeDatabaseError, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": list})
}

// GetExport returns one saved export with its rows
func (h *Handler) GetExport(c *gin.Context) {
	if h.exports == nil {
		respondError(c, errors.NotFound("export history"))
		return
	}
	exp, err := h.exports.GetExport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// parseAggregateRequest reads an aggregation from query parameters. Pivot
// takes row and col; everything else takes group.
func parseAggregateRequest(c *gin.Context, opName string) (app.AggregateRequest, error) {
	op, err := export.ParseOp(opName)
	if err != nil {
		return app.AggregateRequest{}, errors.InvalidInput(err.Error())
	}

	req := app.AggregateRequest{
		Op:     op,
		Group:  c.Query("group"),
		Metric: c.Query("metric"),
	}

	switch op {
	case export.OpPivot:
		req.Group = c.Query("row")
		req.Column = c.Query("col")
	case export.OpTop:
		if req.N, err = intQuery(c, "n", 10); err != nil {
			return req, err
		}
		if req.Direction, err = facet.ParseDirection(c.DefaultQuery("dir", string(facet.Descending))); err != nil {
			return req, errors.InvalidInput(err.Error())
		}
	case export.OpGrowth:
		if req.FromYear, err = intQuery(c, "from", 0); err != nil {
			return req, err
		}
		if req.ToYear, err = intQuery(c, "to", 0); err != nil {
			return req, err
		}
	case export.OpWeighted:
		req.Weight = app.WeightSpec{Kind: strings.ToLower(c.DefaultQuery("weight", "constant")), Field: c.Query("field")}
		if req.Weight.BaseYear, err = intQuery(c, "base", 0); err != nil {
			return req, err
		}
		if req.Weight.Step, err = floatQuery(c, "step", 0.1); err != nil {
			return req, err
		}
		if req.Weight.Divisor, err = floatQuery(c, "divisor", 0); err != nil {
			return req, err
		}
		if req.Weight.Value, err = floatQuery(c, "value", 1); err != nil {
			return req, err
		}
	}
	return req, nil
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidInput(key + " must be an integer")
	}
	return n, nil
}

func floatQuery(c *gin.Context, key string, def float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.InvalidInput(key + " must be a number")
	}
	return f, nil
}
