// Package dashboard serves the cleaned dataset, the insight aggregates and
// the operator run trigger over HTTP.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dealflow/internal/auth"
	"dealflow/internal/insights"
	"dealflow/internal/store"
	"dealflow/pkg/models"
)

type Handler struct {
	Store *store.Store
	Runs  *RunManager
}

func NewHandler(st *store.Store, runs *RunManager) *Handler {
	return &Handler{Store: st, Runs: runs}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/deals", h.listDeals)
	r.GET("/deals/:id", h.getDeal)
	r.GET("/companies/:name", h.getCompany)

	in := r.Group("/insights")
	in.GET("/summary", h.summary)
	in.GET("/quarters", h.quarters)
	in.GET("/years", h.years)
	in.GET("/sectors", h.sectors)
	in.GET("/regions", h.regions)
	in.GET("/stages", h.stages)
	in.GET("/countries", h.countries)
	in.GET("/firms", h.firms)
	in.GET("/export", h.export)
}

// RegisterRunRoutes mounts the operator-only run endpoints behind guard.
func (h *Handler) RegisterRunRoutes(r gin.IRouter, guard gin.HandlerFunc) {
	g := r.Group("/runs", guard)
	g.POST("", h.startRun)
	g.GET("/:id", h.getRun)
}

func (h *Handler) listDeals(c *gin.Context) {
	q := store.DealQuery{
		Q:      c.Query("q"),
		Round:  c.Query("round"),
		Sector: c.Query("sector"),
		From:   c.Query("from"),
		To:     c.Query("to"),
		Limit:  parseInt(c.Query("limit"), store.DefaultDealLimit),
		Offset: parseInt(c.Query("offset"), 0),
	}
	limit, offset := q.Page()

	total, err := h.Store.CountDeals(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}
	items, err := h.Store.ListDeals(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func (h *Handler) getDeal(c *gin.Context) {
	d, err := h.Store.GetDeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) getCompany(c *gin.Context) {
	ctx := c.Request.Context()
	co, err := h.Store.GetCompany(ctx, c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if co == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	deals, err := h.Store.DealsForCompany(ctx, co.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deals failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": co, "deals": deals})
}

// window reads from/to years, defaulting to the dashboard's range.
func window(c *gin.Context) (insights.Window, bool) {
	w := insights.Window{
		From: parseInt(c.Query("from"), insights.DefaultFromYear),
		To:   parseInt(c.Query("to"), insights.DefaultToYear),
	}
	if w.From > w.To {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must not be after to"})
		return w, false
	}
	return w, true
}

func (h *Handler) deals(c *gin.Context) ([]models.Deal, insights.Window, bool) {
	w, ok := window(c)
	if !ok {
		return nil, w, false
	}
	all, err := h.Store.AllDeals(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load deals failed"})
		return nil, w, false
	}
	return insights.FilterDeals(all, w), w, true
}

func (h *Handler) dealInvestors(c *gin.Context) ([]models.DealInvestor, bool) {
	w, ok := window(c)
	if !ok {
		return nil, false
	}
	all, err := h.Store.AllDealInvestors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load deal investors failed"})
		return nil, false
	}
	return insights.FilterDealInvestors(all, w), true
}

func (h *Handler) summary(c *gin.Context) {
	deals, w, ok := h.deals(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "summary": insights.Summarize(deals)})
}

func (h *Handler) quarters(c *gin.Context) {
	deals, w, ok := h.deals(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "items": insights.Quarters(deals)})
}

func (h *Handler) years(c *gin.Context) {
	deals, w, ok := h.deals(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"window":   w,
		"items":    insights.Years(deals),
		"by_stage": insights.YearStageTotals(deals),
	})
}

func (h *Handler) sectors(c *gin.Context) {
	deals, w, ok := h.deals(c)
	if !ok {
		return
	}
	top := parseInt(c.Query("top"), insights.DefaultTopN)
	c.JSON(http.StatusOK, gin.H{
		"window":    w,
		"items":     insights.TopSectors(deals, top),
		"by_region": insights.SectorRegionTotals(deals),
	})
}

func (h *Handler) regions(c *gin.Context) {
	deals, w, ok := h.deals(c)
	if !ok {
		return
	}
	top := parseInt(c.Query("top"), insights.DefaultTopN)
	c.JSON(http.StatusOK, gin.H{"window": w, "items": insights.TopRegions(deals, top)})
}

func (h *Handler) stages(c *gin.Context) {
	deals, w, ok := h.deals(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"window":     w,
		"sectors":    insights.StageTopSectors(deals),
		"ecosystems": insights.StageEcosystemCounts(deals),
	})
}

func (h *Handler) countries(c *gin.Context) {
	dis, ok := h.dealInvestors(c)
	if !ok {
		return
	}
	deals, _, ok := h.deals(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    insights.InvestorsByCountry(dis),
		"by_stage": insights.StageCountryActivity(dis, deals),
	})
}

func (h *Handler) firms(c *gin.Context) {
	dis, ok := h.dealInvestors(c)
	if !ok {
		return
	}
	top := parseInt(c.Query("top"), insights.DefaultTopN)
	year := parseInt(c.Query("year"), 0)
	c.JSON(http.StatusOK, gin.H{"year": year, "items": insights.TopFirms(dis, top, year)})
}

func (h *Handler) export(c *gin.Context) {
	w, ok := window(c)
	if !ok {
		return
	}
	rep, err := h.report(c.Request.Context(), w, parseInt(c.Query("top"), insights.DefaultTopN))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "build report failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="insights.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := rep.WriteXLSX(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) report(ctx context.Context, w insights.Window, top int) (insights.Report, error) {
	deals, err := h.Store.AllDeals(ctx)
	if err != nil {
		return insights.Report{}, err
	}
	dis, err := h.Store.AllDealInvestors(ctx)
	if err != nil {
		return insights.Report{}, err
	}
	return insights.Build(deals, dis, w, top), nil
}

func (h *Handler) startRun(c *gin.Context) {
	if h.Runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "runs disabled"})
		return
	}
	startedBy := ""
	if claims := auth.Operator(c); claims != nil {
		startedBy = claims.Username
	}

	id, err := h.Runs.Start(startedBy)
	if errors.Is(err, ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "run_id": id})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "start run failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id, "status": store.RunRunning})
}

func (h *Handler) getRun(c *gin.Context) {
	r, err := h.Store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
