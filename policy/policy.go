package policy

import (
	"context"
	"fmt"
	"strings"
)

// Progression modes.
const (
	ModeOnStart = "onStart" // unlock Count slots after every successful start (default)
	ModeManual  = "manual"  // never unlock automatically; callers use UnlockNext
)

// DefaultCount is the number of slots unlocked per start.
const DefaultCount = 2

// Policy represents the unlock progression.
//
//   - Mode selects automatic or manual progression.
//   - Count is the number of slots unlocked per qualifying start.
//   - AllowList, BlockList filter qualifying process kinds.
//
// A nil *Policy unlocks DefaultCount slots after every start.
type Policy struct {
	Mode      string
	Count     int
	AllowList []string
	BlockList []string
}

// Config represents the serialisable form of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Count     *int     `json:"count,omitempty" yaml:"count,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// Validate checks mode and count.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Mode {
	case "", ModeOnStart, ModeManual:
	default:
		return fmt.Errorf("unsupported unlock mode: %s", c.Mode)
	}
	if c.Count != nil && *c.Count < 0 {
		return fmt.Errorf("invalid unlock count: %d", *c.Count)
	}
	return nil
}

// ToConfig converts a runtime Policy into a persistable Config.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	count := p.Count
	return &Config{
		Mode:      p.Mode,
		Count:     &count,
		AllowList: append([]string(nil), p.AllowList...),
		BlockList: append([]string(nil), p.BlockList...),
	}
}

// FromConfig converts a Config to a runtime Policy, applying defaults.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	ret := &Policy{
		Mode:      c.Mode,
		Count:     DefaultCount,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
	if ret.Mode == "" {
		ret.Mode = ModeOnStart
	}
	if c.Count != nil {
		ret.Count = *c.Count
	}
	return ret
}

// IsAllowed evaluates AllowList and BlockList against a process kind,
// case-insensitively. BlockList has priority; an empty AllowList allows all.
func (p *Policy) IsAllowed(kind string) bool {
	if p == nil {
		return true
	}
	normalized := strings.ToLower(kind)
	for _, b := range p.BlockList {
		if normalized == strings.ToLower(b) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if normalized == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// UnlockCount returns how many slots to unlock after a process of kind started.
func (p *Policy) UnlockCount(kind string) int {
	if p == nil {
		return DefaultCount
	}
	if p.Mode == ModeManual || !p.IsAllowed(kind) {
		return 0
	}
	return p.Count
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx; it overrides the manager policy for
// starts performed with that context.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the embedded policy.
func FromContext(ctx context.Context) (*Policy, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(ctxKey).(*Policy)
	return p, ok
}
