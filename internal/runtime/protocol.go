package runtime

import (
	"strings"
)

const (
	protocolSeparator = "."
	protocolWildcard  = "any"
)

// Protocol is a dot separated hierarchical tag such as "seating.chair.armchair"
// declared on every connector and socket. The zero value is the wildcard.
type Protocol struct {
	tag string
}

// Any matches every other protocol in both directions.
var Any = Protocol{}

// NewProtocol parses tag. Empty strings, "any" and surrounding whitespace all
// produce the wildcard.
func NewProtocol(tag string) Protocol {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, protocolWildcard) {
		return Any
	}
	return Protocol{tag: tag}
}

func (p Protocol) String() string {
	if p.IsAny() {
		return protocolWildcard
	}
	return p.tag
}

func (p Protocol) IsAny() bool {
	return p.tag == ""
}

// Depth is the number of hierarchy segments, 0 for the wildcard.
func (p Protocol) Depth() int {
	if p.IsAny() {
		return 0
	}
	return strings.Count(p.tag, protocolSeparator) + 1
}

func (p Protocol) Segments() []string {
	if p.IsAny() {
		return nil
	}
	return strings.Split(p.tag, protocolSeparator)
}

// Parent drops the last segment. The parent of a single segment tag is Any.
func (p Protocol) Parent() Protocol {
	idx := strings.LastIndex(p.tag, protocolSeparator)
	if idx < 0 {
		return Any
	}
	return Protocol{tag: p.tag[:idx]}
}

// Accepts reports whether a connector declaring p can be fed by a socket
// declaring out.
func (p Protocol) Accepts(out Protocol) bool {
	return Compatible(out, p)
}

func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Protocol) UnmarshalText(text []byte) error {
	*p = NewProtocol(string(text))
	return nil
}

// Compatible decides whether documents produced under the out tag may be
// delivered to a consumer declaring the in tag: either side is the wildcard,
// the tags are equal, or in is an ancestor of out in the dot hierarchy.
func Compatible(out, in Protocol) bool {
	if out.IsAny() || in.IsAny() {
		return true
	}
	if out.tag == in.tag {
		return true
	}
	return strings.HasPrefix(out.tag, in.tag+protocolSeparator)
}
