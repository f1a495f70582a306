package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"omniversal/services/kernel"
	"omniversal/services/layers"
)

type layerResponse struct {
	Descriptor *layers.Descriptor `json:"descriptor"`
	Report     any                `json:"report"`
}

func (a *API) handleLayers(w http.ResponseWriter, r *http.Request) {
	descs := a.kernel.Registry().Descriptors()
	if descs == nil {
		descs = []*layers.Descriptor{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"layers": descs})
}

func (a *API) handleLayer(w http.ResponseWriter, r *http.Request) {
	kind, err := layers.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	l, ok := a.kernel.Registry().Resolve(kind)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Errorf("layer %s not registered", kind))
		return
	}
	respondJSON(w, http.StatusOK, layerResponse{Descriptor: l.Descriptor(), Report: l.Report()})
}

func (a *API) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	history := a.kernel.Dashboard().History()
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	if history == nil {
		history = []kernel.DashboardSnapshot{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"snapshots": history})
}

func (a *API) handleRuns(w http.ResponseWriter, r *http.Request) {
	if a.archive == nil {
		respondError(w, http.StatusFailedDependency, errors.New("run archive not configured"))
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	runs, err := a.archive.ListRuns(ctx, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *API) handleRunSnapshots(w http.ResponseWriter, r *http.Request) {
	if a.archive == nil {
		respondError(w, http.StatusFailedDependency, errors.New("run archive not configured"))
		return
	}
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid run id"))
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	snaps, err := a.archive.ListSnapshots(ctx, runID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"run_id": runID, "snapshots": snaps})
}

func (a *API) handlePresign(w http.ResponseWriter, r *http.Request) {
	if a.presigner == nil {
		respondError(w, http.StatusFailedDependency, errors.New("s3 client not configured"))
		return
	}

	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		respondError(w, http.StatusBadRequest, errors.New("missing key query parameter"))
		return
	}

	ttl := defaultTTL
	if raw := strings.TrimSpace(r.URL.Query().Get("ttl")); raw != "" {
		seconds, err := queryInt(r, "ttl", 0)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		ttl = time.Duration(seconds) * time.Second
		if ttl > maxTTL {
			ttl = maxTTL
		}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	url, err := a.presigner.PresignGet(ctx, key, ttl)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("presign: %w", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(ttl.Seconds()),
		"object_key": key,
	})
}
