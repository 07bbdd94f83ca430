package httpapi

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deckhand/deckhand/internal/api"
	"github.com/deckhand/deckhand/internal/artifact"
	"github.com/deckhand/deckhand/internal/builder"
	"github.com/deckhand/deckhand/internal/deployment"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	events []*api.Event
	err    error
}

func (f *fakeHistory) RecordEvent(ctx context.Context, event *api.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeHistory) ListEvents(ctx context.Context, appName string, limit int) ([]*api.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*api.Event
	for _, e := range f.events {
		if appName != "" && e.AppName != appName {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeHistory) Close() {}

type testAPI struct {
	router  chi.Router
	service *deployment.Service
	history *fakeHistory
	appsDir string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	appsDir := t.TempDir()
	store, err := artifact.NewStore(appsDir)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := deployment.NewService(store, builder.New(logger), logger, deployment.Config{
		PollInterval: time.Hour,
	})
	history := &fakeHistory{}

	router := chi.NewRouter()
	NewHandler(service, history, logger).Routes(router)

	return &testAPI{router: router, service: service, history: history, appsDir: appsDir}
}

// addArchive writes a deployable zip into the apps directory.
func (a *testAPI) addArchive(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(a.appsDir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	entry, err := w.Create(artifact.DescriptorName)
	require.NoError(t, err)
	_, err = entry.Write(nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func (a *testAPI) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) api.APIResponse {
	t.Helper()
	var resp api.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestListAppsEmpty(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/apps", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	apps, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Empty(t, apps)
}

func TestDeployAndGetApp(t *testing.T) {
	a := newTestAPI(t)
	location := a.addArchive(t, "dummy-app.zip")

	rec := a.do(t, http.MethodPost, "/apps", `{"location": "`+location+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/apps/dummy-app", "")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(decodeResponse(t, rec).Data)
	require.NoError(t, err)
	var app api.Application
	require.NoError(t, json.Unmarshal(raw, &app))
	assert.Equal(t, "dummy-app", app.Name)
	assert.Equal(t, "deployed", app.State)
	assert.Equal(t, "packaged", app.Kind)
	assert.Equal(t, location, app.Location)
}

func TestGetAppNotFound(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/apps/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeployRejectsEmptyLocation(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodPost, "/apps", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeployRejectsInvalidBody(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodPost, "/apps", `{"location": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeployMissingArtifact(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodPost, "/apps", `{"location": "/nowhere/app.zip"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeployDuplicateNameConflicts(t *testing.T) {
	a := newTestAPI(t)

	// An exploded app occupies the name first.
	dir := filepath.Join(a.appsDir, "dup")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(artifact.DescriptorPath(dir), nil, 0o644))
	rec := a.do(t, http.MethodPost, "/apps", `{"location": "`+dir+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	location := a.addArchive(t, "dup.zip")
	rec = a.do(t, http.MethodPost, "/apps", `{"location": "`+location+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUndeployApp(t *testing.T) {
	a := newTestAPI(t)
	location := a.addArchive(t, "dummy-app.zip")
	rec := a.do(t, http.MethodPost, "/apps", `{"location": "`+location+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodDelete, "/apps/dummy-app", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/apps/dummy-app", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUndeployUnknownApp(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodDelete, "/apps/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListZombies(t *testing.T) {
	a := newTestAPI(t)
	broken := filepath.Join(a.appsDir, "broken.zip")
	require.NoError(t, os.WriteFile(broken, []byte("not a zip"), 0o644))

	rec := a.do(t, http.MethodPost, "/apps", `{"location": "`+broken+`"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodGet, "/zombies", "")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(decodeResponse(t, rec).Data)
	require.NoError(t, err)
	var zombies []api.ZombieEntry
	require.NoError(t, json.Unmarshal(raw, &zombies))
	require.Len(t, zombies, 1)
	assert.Equal(t, broken, zombies[0].Location)
	assert.False(t, zombies[0].LastModified.IsZero())
}

func TestListEvents(t *testing.T) {
	a := newTestAPI(t)
	a.history.events = []*api.Event{
		{ID: "1", AppName: "alpha", Type: "deploy_success", OccurredAt: time.Now()},
		{ID: "2", AppName: "beta", Type: "deploy_success", OccurredAt: time.Now()},
	}

	rec := a.do(t, http.MethodGet, "/events?app=alpha", "")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := json.Marshal(decodeResponse(t, rec).Data)
	require.NoError(t, err)
	var events []*api.Event
	require.NoError(t, json.Unmarshal(raw, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "alpha", events[0].AppName)
}

func TestListEventsInvalidLimit(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/events?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEventsWithoutJournal(t *testing.T) {
	a := newTestAPI(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	NewHandler(a.service, nil, logger).Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
