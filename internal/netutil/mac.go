// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"net"
	"strings"
)

// NormalizeMAC upper-cases a MAC address string so that desired and
// observed values compare byte for byte. Empty input stays empty.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(mac)
}

// ParseMAC parses a colon-separated hardware address.
func ParseMAC(mac string) (net.HardwareAddr, error) {
	return net.ParseMAC(mac)
}

// MACEqual reports whether two MAC address strings name the same
// hardware address, ignoring case.
func MACEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
