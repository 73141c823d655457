package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/docflow/internal/runtime/config"
	jsoncodecpkg "github.com/drblury/docflow/internal/runtime/jsoncodec"
)

func newInspectedGraph(t *testing.T, origins ...string) *Graph {
	t.Helper()
	g, err := NewGraph(&configpkg.Config{InspectorCORSAllowedOrigins: origins}, nil, GraphDependencies{})
	require.NoError(t, err)

	gen := NewGenerator(GeneratorConfig{ProcessorConfig: ProcessorConfig{Name: "source"}}, GeneratorHooks{})
	gen.MustCreateSocket("", NewProtocol("text"))
	gen.SetTotal(4)
	gen.Add(1)

	sink := NewProcessor(ProcessorConfig{Name: "sink"})
	sink.MustCreateConnector("", NewProtocol("text"), noopHandler)

	require.NoError(t, g.Connect(gen, "", sink, ""))
	return g
}

func TestHandleGetProcessorsReturnsJSON(t *testing.T) {
	g := newInspectedGraph(t, "*")

	req := httptest.NewRequest(http.MethodGet, "/api/processors", nil)
	rec := httptest.NewRecorder()
	g.handleGetProcessors(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var payload []ProcessorInfo
	require.NoError(t, jsoncodecpkg.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload, 2)
	assert.Equal(t, "source", payload[0].Name)
	assert.Equal(t, "generator", payload[0].Kind)
	require.NotNil(t, payload[0].Progress)
	assert.Equal(t, int64(1), payload[0].Progress.Count)
	assert.InDelta(t, 0.25, payload[0].Progress.Fraction, 1e-9)
	require.Len(t, payload[0].Sockets, 1)
	assert.Equal(t, "text", payload[0].Sockets[0].Protocol.String())
	assert.Equal(t, 1, payload[0].Sockets[0].Connections)
	assert.Equal(t, "idle", payload[1].Status)
}

func TestHandleGetProcessorByName(t *testing.T) {
	g := newInspectedGraph(t)

	rec := httptest.NewRecorder()
	g.handleGetProcessor(rec, httptest.NewRequest(http.MethodGet, "/api/processors/sink", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info ProcessorInfo
	require.NoError(t, jsoncodecpkg.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "sink", info.Name)
	require.Len(t, info.Connectors, 1)
	require.Len(t, info.Connectors[0].Links, 1)
	assert.Equal(t, "source", info.Connectors[0].Links[0].Processor)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	g.handleGetProcessor(rec, httptest.NewRequest(http.MethodGet, "/api/processors/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInspectorPreflightAndMethods(t *testing.T) {
	g := newInspectedGraph(t, "https://ops.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/processors", nil)
	req.Header.Set("Origin", "https://OPS.example.com")
	rec := httptest.NewRecorder()
	g.handleGetProcessors(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://OPS.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/processors", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	g.handleGetProcessors(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	g.handleGetProcessors(rec, httptest.NewRequest(http.MethodPost, "/api/processors", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartInspectorServerRegistersRoutes(t *testing.T) {
	g := newInspectedGraph(t)
	g.Conf.InspectorEnabled = true
	g.Conf.InspectorPort = 18081
	g.StartInspectorServer()

	mux := g.httpMuxes[18081]
	require.NotNil(t, mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/processors/source", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, g.Close())
}
