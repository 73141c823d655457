package runtime

import (
	"net/http"
	"strings"

	jsoncodecpkg "github.com/drblury/docflow/internal/runtime/jsoncodec"
)

const inspectorPrefix = "/api/processors"

type infoProvider interface {
	Info() ProcessorInfo
}

// StartInspectorServer registers the inspector endpoints when enabled:
// /api/processors lists every processor and /api/processors/{name} describes
// one of them.
func (g *Graph) StartInspectorServer() {
	if !g.Conf.InspectorEnabled {
		return
	}

	port := g.Conf.InspectorPort
	if port == 0 {
		port = defaultInspectorPort
	}

	g.RegisterHTTPHandler(port, inspectorPrefix, http.HandlerFunc(g.handleGetProcessors))
	g.RegisterHTTPHandler(port, inspectorPrefix+"/", http.HandlerFunc(g.handleGetProcessor))
}

// Snapshot describes every registered processor in registration order.
func (g *Graph) Snapshot() []ProcessorInfo {
	nodes := g.Processors()
	out := make([]ProcessorInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeInfo(n))
	}
	return out
}

func nodeInfo(n Node) ProcessorInfo {
	if ip, ok := n.(infoProvider); ok {
		return ip.Info()
	}
	return ProcessorOf(n).Info()
}

func (g *Graph) handleGetProcessors(w http.ResponseWriter, r *http.Request) {
	if g.writeInspectorHeaders(w, r) {
		return
	}
	g.writeJSON(w, g.Snapshot())
}

func (g *Graph) handleGetProcessor(w http.ResponseWriter, r *http.Request) {
	if g.writeInspectorHeaders(w, r) {
		return
	}
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, inspectorPrefix), "/")
	n, ok := g.Processor(name)
	if !ok {
		http.Error(w, "processor not found", http.StatusNotFound)
		return
	}
	g.writeJSON(w, nodeInfo(n))
}

// writeInspectorHeaders sets the response headers and reports whether the
// request was fully answered.
func (g *Graph) writeInspectorHeaders(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Content-Type", "application/json")

	// Set CORS headers based on configuration
	if g.Conf != nil && len(g.Conf.InspectorCORSAllowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		allowedOrigin := g.getAllowedCORSOrigin(origin)
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return true
	case http.MethodGet, http.MethodHead:
		return false
	}
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return true
}

func (g *Graph) writeJSON(w http.ResponseWriter, v any) {
	if err := jsoncodecpkg.Encode(w, v); err != nil {
		g.Logger.Error("Failed to encode inspector response", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin checks if the request origin is allowed and returns the appropriate
// Access-Control-Allow-Origin value.
func (g *Graph) getAllowedCORSOrigin(requestOrigin string) string {
	if g.Conf == nil {
		return ""
	}
	for _, allowed := range g.Conf.InspectorCORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
