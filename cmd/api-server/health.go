package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dealflow/internal/dashboard"
	"dealflow/internal/events"
	"dealflow/internal/store"
)

// probes serves the liveness, readiness and debug endpoints.
type probes struct {
	db       *sql.DB
	store    *store.Store
	hub      *events.Hub
	runs     *dashboard.RunManager
	dbPath   string
	backfill bool
}

func (p *probes) register(r gin.IRouter) {
	r.GET("/health", p.health)
	r.GET("/ready", p.ready)
	r.GET("/debug", p.debug)
}

func (p *probes) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ready fails only when the database is unreachable. An empty dataset is
// still ready; the deal count tells operators an import is due.
func (p *probes) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := gin.H{"subscribers": p.hub.Stats()}
	if err := p.db.PingContext(ctx); err != nil {
		resp["status"] = "not_ready"
		resp["db_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	deals, err := p.store.CountDeals(ctx, store.DealQuery{})
	if err != nil {
		resp["status"] = "not_ready"
		resp["db_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	resp["status"] = "ready"
	resp["deals"] = deals
	c.JSON(http.StatusOK, resp)
}

func (p *probes) debug(c *gin.Context) {
	resp := gin.H{
		"db":          p.dbPath,
		"subscribers": p.hub.Stats(),
		"backfill":    p.backfill,
	}
	if id, ok := p.runs.Current(); ok {
		resp["current_run"] = id
	}
	if ev, ok := p.hub.Last(); ok {
		resp["last_event"] = ev
	}
	c.JSON(http.StatusOK, resp)
}
