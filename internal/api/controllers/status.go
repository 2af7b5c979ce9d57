package controllers

import (
	"net/http"

	"github.com/datallboy/nzbweaver/internal/engine"
	"github.com/labstack/echo/v5"
)

// StatusSource exposes the run in progress. *engine.Downloader satisfies it.
type StatusSource interface {
	Status() (engine.Snapshot, bool)
	Files() ([]engine.FileSnapshot, bool)
}

type StatusController struct {
	Source StatusSource
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleStatus returns the release wide counters
func (ctrl *StatusController) HandleStatus(c *echo.Context) error {
	snap, ok := ctrl.Source.Status()
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no download running"})
	}
	return c.JSON(http.StatusOK, snap)
}

// HandleFiles returns per-file progress
func (ctrl *StatusController) HandleFiles(c *echo.Context) error {
	files, ok := ctrl.Source.Files()
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no download running"})
	}
	return c.JSON(http.StatusOK, files)
}
