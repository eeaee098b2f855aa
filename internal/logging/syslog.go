// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// SyslogConfig configures remote syslog forwarding.
type SyslogConfig struct {
	Enabled  bool   `hcl:"enabled,optional"`
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	Protocol string `hcl:"protocol,optional"` // udp or tcp
	Tag      string `hcl:"tag,optional"`
	Facility int    `hcl:"facility,optional"` // RFC 3164 facility code
}

// DefaultSyslogConfig returns the default (disabled) syslog configuration.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Port:     514,
		Protocol: "udp",
		Tag:      "netstate",
		Facility: 1,
	}
}

// SyslogWriter is an io.Writer that frames each write as an RFC 3164
// message and sends it to a remote syslog collector.
type SyslogWriter struct {
	cfg  SyslogConfig
	mu   sync.Mutex
	conn net.Conn
}

// NewSyslogWriter creates a SyslogWriter for the given config,
// applying defaults for unset fields.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("syslog host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}
	if cfg.Protocol == "" {
		cfg.Protocol = "udp"
	}
	if cfg.Tag == "" {
		cfg.Tag = "netstate"
	}

	w := &SyslogWriter{cfg: cfg}
	if err := w.connect(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *SyslogWriter) connect() error {
	addr := net.JoinHostPort(w.cfg.Host, fmt.Sprintf("%d", w.cfg.Port))
	conn, err := net.DialTimeout(w.cfg.Protocol, addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to syslog %s: %w", addr, err)
	}
	w.conn = conn
	return nil
}

// Write sends one syslog message. Severity is fixed at informational;
// level filtering happens in the Logger before the record reaches us.
func (w *SyslogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		if err := w.connect(); err != nil {
			return 0, err
		}
	}

	pri := w.cfg.Facility*8 + 6 // severity 6: informational
	hostname, _ := os.Hostname()
	msg := fmt.Sprintf("<%d>%s %s %s[%d]: %s",
		pri, time.Now().Format(time.Stamp), hostname, w.cfg.Tag, os.Getpid(), p)

	n, err := w.conn.Write([]byte(msg))
	if err != nil {
		// Drop the connection so the next write redials.
		w.conn.Close()
		w.conn = nil
		return 0, err
	}
	return n, nil
}

// Close closes the underlying connection.
func (w *SyslogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		err := w.conn.Close()
		w.conn = nil
		return err
	}
	return nil
}
