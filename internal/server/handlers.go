package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/jacobarthurs/pgplanviz/internal/advisor"
	"github.com/jacobarthurs/pgplanviz/internal/graph"
	"github.com/jacobarthurs/pgplanviz/internal/plan"
	"github.com/jacobarthurs/pgplanviz/internal/present"
	"github.com/jacobarthurs/pgplanviz/internal/session"
)

var errNoAdvisor = errors.New("no advisor configured")

type explainRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Query     string `json:"query" binding:"required"`
	Analyze   *bool  `json:"analyze"`
}

type analyzeRequest struct {
	Plan      plan.ExplainOutput `json:"plan"`
	Query     string             `json:"query"`
	SessionID string             `json:"session_id"`
	// Ticket is what execute-explain returned for this plan. When set
	// together with SessionID, advice is applied only if the session still
	// shows that plan.
	Ticket *present.Ticket `json:"ticket"`
}

type compareRequest struct {
	Plan1  plan.ExplainOutput `json:"plan1"`
	Plan2  plan.ExplainOutput `json:"plan2"`
	Query1 string             `json:"query1"`
	Query2 string             `json:"query2"`
}

type chatRequest struct {
	Message string                `json:"message" binding:"required"`
	Plan    plan.ExplainOutput    `json:"plan"`
	Query   string                `json:"query"`
	History []advisor.ChatMessage `json:"history"`
}

type graphRequest struct {
	Plan        plan.ExplainOutput `json:"plan"`
	Diagnostics *graph.Diagnostics `json:"diagnostics"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

func (s *Server) advisorContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeouts.Advisor > 0 {
		return context.WithTimeout(c.Request.Context(), s.cfg.Timeouts.Advisor)
	}
	return context.WithCancel(c.Request.Context())
}

func (s *Server) advisorFailed(op string, err error) {
	s.metrics.AdvisorFailures.WithLabelValues(op).Inc()
	level.Warn(s.logger).Log("msg", "advisor call failed", "operation", op, "err", err)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "PostgreSQL Query Plan Visualizer"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.store.Len()})
}

func (s *Server) handleConnect(c *gin.Context) {
	var conn session.Connection
	if err := c.ShouldBindJSON(&conn); err != nil {
		badRequest(c, err)
		return
	}

	sess, err := s.store.Connect(c.Request.Context(), conn)
	if err != nil {
		level.Warn(s.logger).Log("msg", "connect failed", "host", conn.Host, "err", err)
		badRequest(c, err)
		return
	}

	level.Info(s.logger).Log("msg", "session opened", "session", sess.ID)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Connected successfully to PostgreSQL\nVersion: " + sess.Version,
		"session_id": sess.ID,
	})
}

func (s *Server) handleExecuteExplain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := s.store.Get(req.SessionID)
	if err != nil {
		badRequest(c, err)
		return
	}

	analyze := req.Analyze == nil || *req.Analyze
	plans, err := executeExplain(c.Request.Context(), sess.DSN, req.Query, plan.Options{
		Analyze: analyze,
		Timeout: s.cfg.Timeouts.Explain,
	})
	if err == nil && len(plans) == 0 {
		err = errors.New("no result returned from EXPLAIN query")
	}
	if err != nil {
		level.Error(s.logger).Log("msg", "explain failed", "session", sess.ID, "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}

	in := plan.Input{Explain: plans[0], Query: req.Query}
	ticket, g := sess.Tracker.Load(in)
	s.metrics.GraphNodes.Observe(float64(len(g.Nodes)))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"plan":    in.Explain,
		"query":   in.Query,
		"graph":   g,
		"ticket":  ticket,
	})
}

func (s *Server) handleAnalyzePlan(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if s.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": errNoAdvisor.Error()})
		return
	}

	ctx, cancel := s.advisorContext(c)
	defer cancel()
	in := plan.Input{Explain: req.Plan, Query: req.Query}

	if req.SessionID == "" || req.Ticket == nil {
		view := present.Analyze(ctx, in, s.advisor, s.opts)
		s.metrics.GraphNodes.Observe(float64(len(view.Graph.Nodes)))
		if view.Err != nil {
			s.advisorFailed("analyze", view.Err)
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  view.Err == nil,
			"analysis": view.Analysis,
			"graph":    view.Graph,
			"error":    view.Error,
		})
		return
	}

	sess, err := s.store.Get(req.SessionID)
	if err != nil {
		badRequest(c, err)
		return
	}

	analysis, err := s.advisor.AnalyzePlan(ctx, in)
	if err != nil {
		s.advisorFailed("analyze", err)
		_, current, _, _ := sess.Tracker.Current()
		c.JSON(http.StatusOK, gin.H{"success": false, "graph": current, "error": err.Error()})
		return
	}

	g, err := sess.Tracker.Apply(*req.Ticket, analysis.Diagnostics(graph.Fingerprint(req.Plan.Root())))
	if errors.Is(err, graph.ErrStaleDiagnostics) {
		s.metrics.StaleDiagnostics.Inc()
		level.Info(s.logger).Log("msg", "discarding stale diagnostics", "session", sess.ID, "generation", req.Ticket.Generation)
		c.JSON(http.StatusConflict, gin.H{"success": false, "analysis": analysis, "graph": g, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analysis": analysis, "graph": g})
}

func (s *Server) handleComparePlans(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx, cancel := s.advisorContext(c)
	defer cancel()

	var source present.ComparisonSource
	if s.advisor != nil {
		source = s.advisor
	}
	view := present.Compare(ctx,
		plan.Input{Explain: req.Plan1, Query: req.Query1},
		plan.Input{Explain: req.Plan2, Query: req.Query2},
		source, s.opts)
	if view.Err != nil {
		s.advisorFailed("compare", view.Err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    view.Err == nil,
		"comparison": view.Comparison,
		"left":       view.Left,
		"right":      view.Right,
		"error":      view.ComparisonError,
	})
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if s.advisor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": errNoAdvisor.Error()})
		return
	}

	ctx, cancel := s.advisorContext(c)
	defer cancel()

	reply, err := s.advisor.Chat(ctx, advisor.ChatRequest{
		Message: req.Message,
		Plan:    plan.Input{Explain: req.Plan, Query: req.Query},
		History: req.History,
	})
	switch {
	case errors.Is(err, advisor.ErrChatUnsupported):
		c.JSON(http.StatusNotImplemented, gin.H{"success": false, "error": err.Error()})
	case err != nil:
		s.advisorFailed("chat", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "reply": reply})
	}
}

// handleGraph builds the positioned graph for a posted plan, merging any
// diagnostics that came with it.
func (s *Server) handleGraph(c *gin.Context) {
	var req graphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	g := graph.Build(req.Plan.Root(), s.opts)
	s.metrics.GraphNodes.Observe(float64(len(g.Nodes)))
	if req.Diagnostics == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "graph": g})
		return
	}

	annotated, err := graph.Annotate(g, *req.Diagnostics)
	if err != nil {
		s.metrics.StaleDiagnostics.Inc()
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"graph":   annotated,
			"error":   fmt.Sprintf("%v: graph %s, diagnostics %s", err, g.Fingerprint, req.Diagnostics.Fingerprint),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "graph": annotated})
}
