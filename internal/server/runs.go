package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eegflow/scriptcast/internal/pipeline"
	"github.com/eegflow/scriptcast/internal/store"
)

// Runner starts a pipeline run and reports the rendered video path.
type Runner interface {
	RunOnce(ctx context.Context, source string) (string, error)
}

// RunsHandler exposes pipeline runs over the API: listing, inspection,
// and manual triggering.
type RunsHandler struct {
	Store  *store.Store
	Runner Runner
	Logger *log.Logger
}

func (h *RunsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/script", h.script)
	g.POST("", h.trigger)
}

func (h *RunsHandler) list(c echo.Context) error {
	runs, err := h.Store.ListRuns(c.Request().Context(), 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *RunsHandler) get(c echo.Context) error {
	run, err := h.Store.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, run)
}

func (h *RunsHandler) script(c echo.Context) error {
	title, doc, err := h.Store.GetScript(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "script not found")
	}
	return c.JSON(http.StatusOK, map[string]any{"title": title, "document": json.RawMessage(doc)})
}

type triggerRequest struct {
	Source string `json:"source"`
}

func (h *RunsHandler) trigger(c echo.Context) error {
	var req triggerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch req.Source {
	case pipeline.SourceWiki, pipeline.SourcePaper, pipeline.SourceGithub:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "source must be wiki, paper, or github")
	}
	// Runs take minutes; fire and let the run record carry the outcome.
	go func() {
		if _, err := h.Runner.RunOnce(context.Background(), req.Source); err != nil {
			h.Logger.Printf("triggered %s run failed: %v", req.Source, err)
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started", "source": req.Source})
}
