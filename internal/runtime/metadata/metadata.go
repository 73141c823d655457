package metadata

// Metadata represents the headers carried alongside a bridged document.
type Metadata map[string]string

// Keys written by the bridge sink and read back by the bridge source.
const (
	KeyProtocol    = "docflow_protocol"
	KeyProcessor   = "docflow_processor"
	KeyTerminal    = "docflow_terminal"
	KeyContentType = "content_type"
)

// Protocol returns the protocol tag stored on the metadata, or "" when absent.
func (m Metadata) Protocol() string {
	return m[KeyProtocol]
}

// ContentType returns the declared payload encoding, or fallback when absent.
func (m Metadata) ContentType(fallback string) string {
	if ct := m[KeyContentType]; ct != "" {
		return ct
	}
	return fallback
}

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
