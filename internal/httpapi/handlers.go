// Package httpapi exposes the orchestration service over HTTP for
// operator tooling.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/deckhand/deckhand/internal/api"
	"github.com/deckhand/deckhand/internal/deployment"
	"github.com/deckhand/deckhand/internal/history"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the deployment service.
type Handler struct {
	Service *deployment.Service
	History history.Store
	Logger  *slog.Logger
}

// NewHandler creates a new API handler. History may be nil when no
// journal is configured.
func NewHandler(service *deployment.Service, historyStore history.Store, logger *slog.Logger) *Handler {
	return &Handler{
		Service: service,
		History: historyStore,
		Logger:  logger,
	}
}

// Routes mounts the handler under the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/apps", func(r chi.Router) {
		r.Get("/", h.ListApps)
		r.Post("/", h.DeployApp)
		r.Get("/{name}", h.GetApp)
		r.Delete("/{name}", h.UndeployApp)
	})
	r.Get("/zombies", h.ListZombies)
	r.Get("/events", h.ListEvents)
}

// ListApps handles GET /api/v1/apps
func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request) {
	apps := h.Service.Applications()
	out := make([]api.Application, 0, len(apps))
	for _, app := range apps {
		out = append(out, toAPI(app))
	}
	json.NewEncoder(w).Encode(api.APIResponse{
		Data: out,
	})
}

// GetApp handles GET /api/v1/apps/{name}
func (h *Handler) GetApp(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	app, ok := h.Service.FindApplication(name)
	if !ok {
		http.Error(w, "application not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(api.APIResponse{
		Data: toAPI(app),
	})
}

// DeployApp handles POST /api/v1/apps — a synchronous operator deploy
// outside the poll cycle.
func (h *Handler) DeployApp(w http.ResponseWriter, r *http.Request) {
	var req api.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Location == "" {
		http.Error(w, "Artifact location is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.Deploy(req.Location); err != nil {
		var depErr *deployment.DeploymentError
		if errors.As(err, &depErr) && depErr.Kind == deployment.KindDuplicateName {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(api.APIResponse{
		Message: "Artifact deployed successfully",
	})
}

// UndeployApp handles DELETE /api/v1/apps/{name}
func (h *Handler) UndeployApp(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.Service.Undeploy(name); err != nil {
		if errors.Is(err, deployment.ErrAppNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(api.APIResponse{
		Message: "Application undeployed successfully",
	})
}

// ListZombies handles GET /api/v1/zombies
func (h *Handler) ListZombies(w http.ResponseWriter, r *http.Request) {
	zombies := h.Service.Zombies()
	out := make([]api.ZombieEntry, 0, len(zombies))
	for location, ts := range zombies {
		out = append(out, api.ZombieEntry{Location: location, LastModified: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	json.NewEncoder(w).Encode(api.APIResponse{
		Data: out,
	})
}

// ListEvents handles GET /api/v1/events?app=name&limit=n
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		http.Error(w, "event journal is not configured", http.StatusNotFound)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	events, err := h.History.ListEvents(r.Context(), r.URL.Query().Get("app"), limit)
	if err != nil {
		h.Logger.Error("Failed to list events", "error", err)
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(api.APIResponse{
		Data: events,
	})
}

func toAPI(app *deployment.Application) api.Application {
	return api.Application{
		Name:            app.Name,
		State:           string(app.State),
		Kind:            string(app.Kind),
		Location:        app.Location,
		DeployedAt:      app.DeployedAt,
		DescriptorMtime: app.DescriptorMtime,
	}
}
