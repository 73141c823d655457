package runtime

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

const (
	TerminalKindConnector = "connector"
	TerminalKindSocket    = "socket"
)

// TerminalInfo describes a connector or socket and the terminals linked to it.
type TerminalInfo struct {
	Processor   string                  `json:"processor"`
	Name        string                  `json:"name"`
	Kind        string                  `json:"kind"`
	Protocol    Protocol                `json:"protocol"`
	Default     bool                    `json:"default,omitempty"`
	Description string                  `json:"description,omitempty"`
	Connections int                     `json:"connections"`
	Stats       *ConnectorStatsSnapshot `json:"stats,omitempty"`
	Links       []TerminalInfo          `json:"links,omitempty"`
}

// ProcessorInfo is a point in time view of a processor for logs and the
// inspector.
type ProcessorInfo struct {
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status"`
	Keepalive   bool           `json:"keepalive"`
	RunID       string         `json:"run_id,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	StoppedAt   time.Time      `json:"stopped_at"`
	Connectors  []TerminalInfo `json:"connectors"`
	Sockets     []TerminalInfo `json:"sockets"`
	Progress    *ProgressInfo  `json:"progress,omitempty"`
}

// ProgressInfo carries a generator's advisory counters.
type ProgressInfo struct {
	Count    int64   `json:"count"`
	Total    int64   `json:"total"`
	Fraction float64 `json:"fraction"`
}

// Info describes the processor with every connector and socket.
func (p *Processor) Info() ProcessorInfo {
	p.mu.Lock()
	info := ProcessorInfo{
		Name:        p.name,
		Kind:        p.kind,
		Description: p.description,
		Status:      p.statusLocked(),
		Keepalive:   p.keepalive,
		RunID:       p.runID,
		StartedAt:   p.startedAt,
		StoppedAt:   p.stoppedAt,
	}
	p.mu.Unlock()

	info.Connectors = p.ConnectorInfo()
	info.Sockets = p.SocketInfo()
	return info
}

// Info extends the processor view with the progress counters.
func (g *Generator) Info() ProcessorInfo {
	info := g.Processor.Info()
	info.Progress = &ProgressInfo{Count: g.Count(), Total: g.Total(), Fraction: g.Progress()}
	return info
}

// ConnectorInfo describes the named connectors, or all of them when no name is
// given. Unknown names are skipped.
func (p *Processor) ConnectorInfo(names ...string) []TerminalInfo {
	out := []TerminalInfo{}
	for _, c := range p.Connectors() {
		if len(names) > 0 && !slices.Contains(names, c.name) {
			continue
		}
		out = append(out, connectorInfo(c, true))
	}
	return out
}

// SocketInfo describes the named sockets, or all of them.
func (p *Processor) SocketInfo(names ...string) []TerminalInfo {
	out := []TerminalInfo{}
	for _, s := range p.Sockets() {
		if len(names) > 0 && !slices.Contains(names, s.name) {
			continue
		}
		out = append(out, socketInfo(s, true))
	}
	return out
}

func connectorInfo(c *Connector, links bool) TerminalInfo {
	c.owner.termMu.RLock()
	isDefault := c.owner.defaultConnector == c
	c.owner.termMu.RUnlock()

	sources := c.sockets()
	info := TerminalInfo{
		Processor:   c.owner.name,
		Name:        c.name,
		Kind:        TerminalKindConnector,
		Protocol:    c.protocol,
		Default:     isDefault,
		Description: c.description,
		Connections: len(sources),
	}
	if !links {
		return info
	}
	stats := c.stats.Snapshot()
	info.Stats = &stats
	for _, s := range sources {
		info.Links = append(info.Links, socketInfo(s, false))
	}
	slices.SortFunc(info.Links, func(a, b TerminalInfo) int {
		return strings.Compare(a.Processor+"."+a.Name, b.Processor+"."+b.Name)
	})
	return info
}

func socketInfo(s *Socket, links bool) TerminalInfo {
	s.owner.termMu.RLock()
	isDefault := s.owner.defaultSocket == s
	s.owner.termMu.RUnlock()

	targets := s.attached()
	info := TerminalInfo{
		Processor:   s.owner.name,
		Name:        s.name,
		Kind:        TerminalKindSocket,
		Protocol:    s.protocol,
		Default:     isDefault,
		Description: s.description,
		Connections: len(targets),
	}
	if !links {
		return info
	}
	for _, c := range targets {
		info.Links = append(info.Links, connectorInfo(c, false))
	}
	return info
}

// Dump writes a readable outline of the processor and its terminals. Verbose
// output adds descriptions and labels the linked terminals.
func (p *Processor) Dump(w io.Writer, verbose bool) error {
	info := p.Info()
	var b strings.Builder

	fmt.Fprintf(&b, "PROCESSOR %s (type=%s)\n", info.Name, info.Kind)
	if verbose && info.Description != "" {
		fmt.Fprintf(&b, "  %q\n", info.Description)
	}
	fmt.Fprintf(&b, "  status=%s\n", info.Status)
	b.WriteString("TERMINALS:\n")
	for _, t := range info.Connectors {
		dumpTerminal(&b, t, verbose, 1)
	}
	for _, t := range info.Sockets {
		dumpTerminal(&b, t, verbose, 1)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func dumpTerminal(b *strings.Builder, t TerminalInfo, verbose bool, indent int) {
	spc := strings.Repeat("  ", indent)
	indicator := '-'
	if t.Kind == TerminalKindSocket {
		indicator = '+'
	}

	fmt.Fprintf(b, "%s%c%s.%s(%s) (conns=%d)\n", spc, indicator, t.Processor, t.Name, t.Protocol, t.Connections)
	if verbose && t.Description != "" {
		fmt.Fprintf(b, "%s  %q\n", spc, t.Description)
	}
	if len(t.Links) == 0 {
		return
	}
	if verbose {
		fmt.Fprintf(b, "%s  Connections:\n", spc)
		indent++
	}
	for _, link := range t.Links {
		dumpTerminal(b, link, verbose, indent+1)
	}
}
