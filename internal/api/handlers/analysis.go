package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/insights"
	"github.com/rs/zerolog"
)

// AnalysisHandler serves the latest saved insight artifact.
type AnalysisHandler struct {
	artifacts insights.ArtifactStore
	log       zerolog.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(artifacts insights.ArtifactStore, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{artifacts: artifacts, log: log}
}

// GetAnalysis handles GET /api/analysis
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := h.artifacts.Load(r.Context())
	switch {
	case errors.Is(err, insights.ErrArtifactNotFound):
		middleware.WriteJSON(w, http.StatusOK, insights.NotFoundArtifact())
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to load analysis")
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Failed to load analysis results",
			"error":   err.Error(),
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, a)
}
