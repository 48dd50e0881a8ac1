package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/loaderkit/errors"
	"github.com/skillsenselab/loaderkit/logger"
	"github.com/skillsenselab/loaderkit/registry"
	"github.com/skillsenselab/loaderkit/version"
)

// API exposes registry diagnostics over HTTP: component listing, on-demand
// load and unload, dependent inspection, and aggregate statistics.
type API struct {
	reg *registry.Registry
	log *logger.Logger
}

// NewAPI creates the diagnostics API for the given registry.
func NewAPI(reg *registry.Registry, log *logger.Logger) *API {
	return &API{reg: reg, log: log.WithComponent("api")}
}

// RegisterRoutes mounts the diagnostics routes on the engine.
func (a *API) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", a.health)
	engine.GET("/version", a.version)

	api := engine.Group("/api")
	api.GET("/components", a.listComponents)
	api.GET("/components/:name", a.getComponent)
	api.GET("/components/:name/dependents", a.getDependents)
	api.POST("/components/:name/load", a.loadComponent)
	api.POST("/components/:name/unload", a.unloadComponent)
	api.GET("/stats", a.stats)
}

// ComponentView is the JSON shape for a component snapshot.
type ComponentView struct {
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Dependencies []string `json:"dependencies,omitempty"`
	Priority     int      `json:"priority"`
	Required     bool     `json:"required"`
	LoadTimeMS   int64    `json:"load_time_ms,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func viewOf(snap registry.Snapshot) ComponentView {
	v := ComponentView{
		Name:         snap.Name,
		Status:       string(snap.Status),
		Dependencies: snap.Dependencies,
		Priority:     snap.Priority,
		Required:     snap.Required,
		LoadTimeMS:   snap.LoadTime.Milliseconds(),
	}
	if snap.Err != nil {
		v.Error = snap.Err.Error()
	}
	return v
}

func viewsOf(snaps []registry.Snapshot) []ComponentView {
	views := make([]ComponentView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, viewOf(snap))
	}
	return views
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "up"})
}

func (a *API) version(c *gin.Context) {
	RespondOK(c, version.Get())
}

func (a *API) listComponents(c *gin.Context) {
	RespondOK(c, viewsOf(a.reg.Snapshots()))
}

func (a *API) getComponent(c *gin.Context) {
	name := c.Param("name")
	snap, ok := a.reg.Snapshot(name)
	if !ok {
		RespondWithError(c, apperrors.UnknownComponent(name))
		return
	}
	RespondOK(c, viewOf(snap))
}

func (a *API) getDependents(c *gin.Context) {
	name := c.Param("name")
	if _, ok := a.reg.Snapshot(name); !ok {
		RespondWithError(c, apperrors.UnknownComponent(name))
		return
	}
	RespondOK(c, viewsOf(a.reg.Dependents(name)))
}

// LoadRequest is the optional POST body for a load call.
type LoadRequest struct {
	Force     bool  `json:"force"`
	TimeoutMS int64 `json:"timeout_ms"`
}

func (a *API) loadComponent(c *gin.Context) {
	name := c.Param("name")

	var req LoadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
			return
		}
	}

	opts := []registry.LoadOption{}
	if req.Force {
		opts = append(opts, registry.Force())
	}
	if req.TimeoutMS > 0 {
		opts = append(opts, registry.WithTimeout(time.Duration(req.TimeoutMS)*time.Millisecond))
	}

	if _, err := a.reg.Load(c.Request.Context(), name, opts...); err != nil {
		a.log.Warn("load via API failed", logger.Fields(
			logger.FieldComponent, name,
			logger.FieldError, err.Error(),
		))
		RespondWithError(c, err)
		return
	}

	snap, _ := a.reg.Snapshot(name)
	RespondOK(c, viewOf(snap))
}

// UnloadResult reports the outcome of an unload call. Dependents is set when
// the unload was refused because other loaded components depend on it.
type UnloadResult struct {
	Name       string          `json:"name"`
	Unloaded   bool            `json:"unloaded"`
	Dependents []ComponentView `json:"dependents,omitempty"`
}

func (a *API) unloadComponent(c *gin.Context) {
	name := c.Param("name")

	ok, err := a.reg.Unload(name)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if !ok {
		RespondConflict(c, UnloadResult{
			Name:       name,
			Dependents: viewsOf(a.reg.Dependents(name)),
		})
		return
	}
	RespondOK(c, UnloadResult{Name: name, Unloaded: true})
}

// StatsView is the JSON shape for registry statistics.
type StatsView struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Loading       int     `json:"loading"`
	Loaded        int     `json:"loaded"`
	Error         int     `json:"error"`
	Unloaded      int     `json:"unloaded"`
	AvgLoadTimeMS float64 `json:"avg_load_time_ms"`
}

func (a *API) stats(c *gin.Context) {
	s := a.reg.Stats()
	RespondOK(c, StatsView{
		Total:         s.Total,
		Pending:       s.Pending,
		Loading:       s.Loading,
		Loaded:        s.Loaded,
		Error:         s.Error,
		Unloaded:      s.Unloaded,
		AvgLoadTimeMS: s.AvgLoadTimeMS(),
	})
}
