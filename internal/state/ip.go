// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package state

// IPConfig holds the IPv4 or IPv6 configuration of an interface.
// A nil IPConfig means "unspecified"; a disabled one is explicit.
type IPConfig struct {
	Enabled  *bool       `json:"enabled,omitempty"`
	DHCP     *bool       `json:"dhcp,omitempty"`
	Autoconf *bool       `json:"autoconf,omitempty"`
	Address  []IPAddress `json:"address,omitempty"`
}

// IPAddress is one static address assignment.
type IPAddress struct {
	IP           string `json:"ip"`
	PrefixLength uint8  `json:"prefix-length"`
}

// NewDisabledIP returns an IPConfig that explicitly disables the stack.
func NewDisabledIP() *IPConfig {
	disabled := false
	return &IPConfig{Enabled: &disabled}
}

// IsEnabled reports whether the stack is explicitly enabled.
func (c *IPConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// Clone returns a deep copy.
func (c *IPConfig) Clone() *IPConfig {
	if c == nil {
		return nil
	}
	out := &IPConfig{}
	if c.Enabled != nil {
		v := *c.Enabled
		out.Enabled = &v
	}
	if c.DHCP != nil {
		v := *c.DHCP
		out.DHCP = &v
	}
	if c.Autoconf != nil {
		v := *c.Autoconf
		out.Autoconf = &v
	}
	if c.Address != nil {
		out.Address = append([]IPAddress(nil), c.Address...)
	}
	return out
}
