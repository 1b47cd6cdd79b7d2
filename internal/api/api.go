package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"firewall-simulator/internal/engine"
	"firewall-simulator/internal/metrics"
	"firewall-simulator/internal/model"
	"firewall-simulator/internal/scan"
	"firewall-simulator/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Response struct {
	Code int    `json:"code,omitempty"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

type Options struct {
	AccessLog  bool
	PathPrefix string
	// MetricsPath mounts the prometheus handler when not empty.
	MetricsPath string
	// Workers bounds the goroutines used to evaluate one request's traffic.
	Workers int
	Store   *store.Store
	Scanner scan.Scanner
}

type handler struct {
	store   *store.Store
	scanner scan.Scanner
	workers int
}

func Register(r *gin.Engine, opts *Options) {
	if opts == nil {
		opts = &Options{}
	}
	h := &handler{
		store:   opts.Store,
		scanner: opts.Scanner,
		workers: opts.Workers,
	}
	if h.store == nil {
		h.store = store.New()
	}
	if h.scanner == nil {
		h.scanner = scan.NewTCPScanner(scan.Options{})
	}

	r.Use(
		cors.New(cors.Config{
			AllowAllOrigins:     true,
			AllowMethods:        []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:        []string{"*"},
			AllowPrivateNetwork: true,
		}),
		gin.Recovery(),
		mwRequestID(),
	)
	if opts.AccessLog {
		r.Use(mwLogger())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{Msg: "OK"})
	})
	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	router := r.Group("")
	if opts.PathPrefix != "" {
		router = router.Group(opts.PathPrefix)
	}

	router.POST("/simulate", h.simulate)
	router.POST("/scan", h.scan)

	rules := router.Group("/rules")
	rules.GET("", h.listRules)
	rules.POST("", h.createRule)
	rules.GET("/:id", h.getRule)
	rules.DELETE("/:id", h.deleteRule)
	rules.POST("/simulate", h.simulateStore)
}

type simulateRequest struct {
	Traffic []model.Flow     `json:"traffic"`
	Rules   []model.RuleSpec `json:"rules"`
}

type simulateResponse struct {
	Decisions []model.Decision `json:"decisions"`
}

// simulate evaluates the submitted traffic against the submitted rule set,
// leaving the store untouched. Rules without an id are numbered by position.
func (h *handler) simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, NewError(http.StatusBadRequest, ErrCodeInvalid, fmt.Sprintf("malformed request: %s", err)))
		return
	}

	rules := make([]model.Rule, 0, len(req.Rules))
	for i, spec := range req.Rules {
		id := int64(i + 1)
		if spec.ID != nil {
			id = *spec.ID
		}
		rule, err := store.NewRule(id, spec)
		if err != nil {
			writeError(c, toAPIError(fmt.Errorf("rules[%d]: %w", i, err)))
			return
		}
		rules = append(rules, rule)
	}

	h.evaluate(c, "api", engine.NewEvaluator(rules), req.Traffic)
}

// simulateStore evaluates the submitted traffic against the stored rules.
func (h *handler) simulateStore(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, NewError(http.StatusBadRequest, ErrCodeInvalid, fmt.Sprintf("malformed request: %s", err)))
		return
	}
	h.evaluate(c, "store", engine.NewEvaluator(h.store.List()), req.Traffic)
}

func (h *handler) evaluate(c *gin.Context, source string, e *engine.Evaluator, traffic []model.Flow) {
	start := time.Now()
	decisions, err := e.EvaluateBatch(c.Request.Context(), traffic, h.workers)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	metrics.ObserveDecisions(source, decisions, time.Since(start))
	c.JSON(http.StatusOK, simulateResponse{Decisions: decisions})
}

type ruleListResponse struct {
	Rules []model.Rule `json:"rules"`
}

func (h *handler) listRules(c *gin.Context) {
	c.JSON(http.StatusOK, ruleListResponse{Rules: h.store.List()})
}

func (h *handler) createRule(c *gin.Context) {
	var spec model.RuleSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		writeError(c, NewError(http.StatusBadRequest, ErrCodeInvalid, fmt.Sprintf("malformed rule: %s", err)))
		return
	}

	rule, err := h.store.Add(spec)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	metrics.SetRules(h.store.Len())
	c.JSON(http.StatusCreated, rule)
}

func (h *handler) getRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	rule, err := h.store.Get(id)
	if err != nil {
		writeError(c, toAPIError(err))
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *handler) deleteRule(c *gin.Context) {
	id, ok := ruleID(c)
	if !ok {
		return
	}
	if err := h.store.Remove(id); err != nil {
		writeError(c, toAPIError(err))
		return
	}
	metrics.SetRules(h.store.Len())
	c.JSON(http.StatusOK, Response{Msg: "OK"})
}

func ruleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, NewError(http.StatusBadRequest, ErrCodeInvalid, fmt.Sprintf("invalid rule id %q", c.Param("id"))))
		return 0, false
	}
	return id, true
}

type scanResponse struct {
	Target  string             `json:"target"`
	Results []model.ScanResult `json:"results"`
}

func (h *handler) scan(c *gin.Context) {
	var req model.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, NewError(http.StatusBadRequest, ErrCodeInvalid, fmt.Sprintf("malformed request: %s", err)))
		return
	}
	if req.ScanType == "" {
		req.ScanType = model.ScanTCPConnect
	}
	if _, err := scan.Validate(req); err != nil {
		writeError(c, toAPIError(err))
		return
	}

	results, err := h.scanner.Scan(c.Request.Context(), req)
	metrics.ObserveScan(req.ScanType, results, err)
	if err != nil {
		writeError(c, toScanError(err))
		return
	}
	c.JSON(http.StatusOK, scanResponse{Target: req.Target, Results: results})
}
