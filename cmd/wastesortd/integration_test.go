package main

import (
	"context"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wastesort/internal/artifact"
	"wastesort/internal/config"
	"wastesort/internal/httpapi"
	"wastesort/pkg/types"
)

func newTestServer(t *testing.T, modelDir string) *httptest.Server {
	t.Helper()
	t.Setenv(artifact.EnvModelDir, "")
	httpapi.SetBaseContext(context.Background())
	a := &app{log: zerolog.Nop(), cfg: config.Config{ModelDirs: []string{modelDir}}}
	a.cfg.ApplyDefaults()
	mgr := a.newManager(nil)
	t.Cleanup(func() { _ = mgr.Close() })
	srv := httptest.NewServer(a.newHandler(mgr))
	t.Cleanup(srv.Close)
	return srv
}

func getStatus(t *testing.T, base string) types.StatusResponse {
	t.Helper()
	resp, err := http.Get(base + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st types.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestServeClassifiesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "Biodegradable", "Recylable", "Hazardus")
	srv := newTestServer(t, dir)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "lazy load: not ready before first use")
	assert.Equal(t, "not_loaded", getStatus(t, srv.URL).State)

	cases := []struct {
		color    color.NRGBA
		category string
		label    string
	}{
		{color.NRGBA{R: 255, A: 255}, "biodegradable", "biodegradable"},
		{color.NRGBA{G: 255, A: 255}, "recyclable", "recyclable"},
		{color.NRGBA{B: 255, A: 255}, "hazardous", "hazardous"},
	}
	for _, tc := range cases {
		body, _ := json.Marshal(types.ClassifyRequest{
			ImageBase64: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngOf(t, tc.color)),
			MimeType:    "image/png",
			ImageName:   tc.category + ".png",
		})
		resp, err := http.Post(srv.URL+"/classify", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		var out types.ClassifyResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, tc.category, out.Category)
		assert.Equal(t, tc.label, out.ModelLabel)
		assert.InDelta(t, 0.787, out.Confidence, 1e-3)
		assert.True(t, out.SoftmaxApplied)
		assert.Len(t, out.ClassProbabilities, 3)
		assert.NotEmpty(t, out.RecommendedAction)
		assert.NotEmpty(t, out.ModelID)
	}

	st := getStatus(t, srv.URL)
	assert.Equal(t, "ready", st.State)
	require.NotNil(t, st.Model)
	assert.Equal(t, dir, st.Model.SourceDir)
	assert.Equal(t, []string{"biodegradable", "recyclable", "hazardous"}, st.Model.Labels, "metadata typos fixed")
	assert.Equal(t, uint64(1), st.LoadsTotal)
	assert.Equal(t, uint64(3), st.ClassificationsTotal)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	m, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(m), "wastesort_model_classifications_total")
	assert.Contains(t, string(m), "wastesort_http_requests_total")
}

func TestServeModelLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir)
	srv := newTestServer(t, dir)

	resp, err := http.Post(srv.URL+"/model/load", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := getStatus(t, srv.URL)
	require.Equal(t, "ready", st.State)
	assert.Equal(t, []string{"biodegradable", "recyclable", "hazardous"}, st.Model.Labels, "defaults without metadata")
	firstID := st.Model.ID

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/model", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "not_loaded", getStatus(t, srv.URL).State)

	resp, err = http.Post(srv.URL+"/model/load", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	st = getStatus(t, srv.URL)
	assert.NotEqual(t, firstID, st.Model.ID)
	assert.Equal(t, uint64(2), st.LoadsTotal)
}

func TestServeMissingModel(t *testing.T) {
	srv := newTestServer(t, t.TempDir())

	body := `{"imageBase64":"` + base64.StdEncoding.EncodeToString(pngOf(t, color.NRGBA{A: 255})) + `"}`
	resp, err := http.Post(srv.URL+"/classify", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var e types.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "artifact_not_found", e.Kind)

	st := getStatus(t, srv.URL)
	assert.Equal(t, "not_loaded", st.State)
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, uint64(1), st.LoadFailuresTotal)
}
