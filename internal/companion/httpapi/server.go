// Package httpapi is the HTTP surface spec §6 documents as "out of core" but
// still names: role selection, session start (force_new_session), query
// submission (drives the Turn Orchestrator), mood read/write, plot read,
// history read, session cleanup (triggers flush). Grounded on the teacher's
// gin-gonic/gin router wiring (internal/hivemind/router.go, server.go) —
// narrowed to this domain's handful of endpoints rather than the teacher's
// general-purpose agent/run/plugin surface.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kiosk404/soulgraph/internal/companion/clock"
	"github.com/kiosk404/soulgraph/internal/companion/dialogue"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/lifestory"
	"github.com/kiosk404/soulgraph/internal/companion/log"
	"github.com/kiosk404/soulgraph/internal/companion/mood"
	"github.com/kiosk404/soulgraph/internal/companion/orchestrator"
	"github.com/kiosk404/soulgraph/internal/companion/persona"
	"github.com/kiosk404/soulgraph/internal/companion/plotwindow"
	"github.com/kiosk404/soulgraph/internal/companion/session"
)

var logger = log.For("httpapi")

// Deps aggregates every component a request handler needs. Constructed once
// at process start (cmd/companion) and never mutated — handlers only read
// from it and call into the components it holds.
type Deps struct {
	Personas     *persona.Store
	Moods        *mood.Store
	PlotWindow   *plotwindow.Resolver
	Sessions     *session.Resolver
	Dialogue     *dialogue.Log
	Orchestrator *orchestrator.Orchestrator
	LifeStory    *lifestory.Machine
	Clock        *clock.Clock
}

// NewRouter builds the gin engine. Grounded on the teacher's router.go
// grouping under an API-version prefix.
func NewRouter(d *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())

	v1 := r.Group("/v1")
	{
		v1.POST("/roles/:role_id/select", d.selectRole)
		v1.GET("/roles/:role_id/mood", d.getMood)
		v1.PUT("/roles/:role_id/mood", d.putMood)
		v1.GET("/roles/:role_id/plot", d.getPlotWindow)

		v1.POST("/sessions", d.startSession)
		v1.GET("/sessions/:session_id/history", d.getHistory)
		v1.POST("/sessions/:session_id/cleanup", d.cleanupSession)
		v1.POST("/sessions/:session_id/query", d.query)
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithField("path", c.Request.URL.Path).
			WithField("status", c.Writer.Status()).
			WithField("latency", time.Since(start)).
			Debug("handled request")
	}
}

// selectRole reports whether a role's persona is loaded and resolvable; the
// actual loading happens at process start per spec §4.C (persona load
// failure is fatal, never deferred into a request handler).
func (d *Deps) selectRole(c *gin.Context) {
	roleID := c.Param("role_id")
	p, err := d.Personas.Get(roleID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role_id": p.RoleID, "role_name": p.RoleName, "age": p.Age})
}

func (d *Deps) getMood(c *gin.Context) {
	roleID := c.Param("role_id")
	m, err := d.Moods.Get(c.Request.Context(), roleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

type putMoodRequest struct {
	Valence     float64  `json:"valence"`
	Arousal     float64  `json:"arousal"`
	Intensity   int      `json:"intensity"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

func (d *Deps) putMood(c *gin.Context) {
	roleID := c.Param("role_id")
	var req putMoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := domain.Mood{
		Valence:     req.Valence,
		Arousal:     req.Arousal,
		Intensity:   req.Intensity,
		Tags:        req.Tags,
		Description: req.Description,
	}
	if err := d.Moods.Put(c.Request.Context(), roleID, m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (d *Deps) getPlotWindow(c *gin.Context) {
	roleID := c.Param("role_id")
	now := d.Clock.Now(c.Request.Context())
	lines := d.PlotWindow.Resolve(roleID, now)
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	c.JSON(http.StatusOK, gin.H{"role_id": roleID, "now": now, "lines": texts})
}

type startSessionRequest struct {
	UserName       string `json:"user_name" binding:"required"`
	RoleID         string `json:"role_id" binding:"required"`
	ForceNewSession bool  `json:"force_new_session"`
}

func (d *Deps) startSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := d.Personas.Get(req.RoleID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	// Session warm-up (spec §4.K): run the unlock trigger check and the
	// age-driven stage reconciliation before the first turn. A warm-up
	// failure is logged, not fatal — the next trigger retries.
	if d.LifeStory != nil {
		ctx := c.Request.Context()
		if err := d.LifeStory.WarmUp(ctx, req.RoleID, d.Clock.Now(ctx)); err != nil {
			logger.WithError(err).WithField("role_id", req.RoleID).Warn("life story warm-up failed")
		}
	}

	resolved, err := d.Sessions.Resolve(c.Request.Context(), req.UserName, req.RoleID, p.RoleName, req.ForceNewSession)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":    resolved.Session.SessionID,
		"created":       resolved.Created,
		"message_count": resolved.MessageCount,
	})
}

func (d *Deps) getHistory(c *gin.Context) {
	sessionID := c.Param("session_id")
	limit := 10
	msgs, err := d.Dialogue.Query(c.Request.Context(), sessionID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": msgs})
}

func (d *Deps) cleanupSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := d.Dialogue.Close(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "flushed": true})
}

type queryRequest struct {
	RoleID    string `json:"role_id" binding:"required"`
	Utterance string `json:"utterance" binding:"required"`
}

func (d *Deps) query(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := d.Orchestrator.Turn(c.Request.Context(), sessionID, req.RoleID, req.Utterance)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response":       result.Response,
		"tools_used":     result.ToolsUsed,
		"system_message": result.SystemMessage,
		"session_id":     result.SessionID,
	})
}
