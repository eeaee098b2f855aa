// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package plugin

import (
	"context"
	"os/exec"
	"strings"

	"grimm.is/netstate/internal/errors"
)

// CommandExecutor runs an external command and returns its stdout.
// Injectable for tests.
type CommandExecutor interface {
	RunCommand(ctx context.Context, name string, arg ...string) (string, error)
}

// RealCommandExecutor shells out.
type RealCommandExecutor struct{}

// RunCommand implements CommandExecutor.
func (RealCommandExecutor) RunCommand(ctx context.Context, name string, arg ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, arg...).Output()
	return string(out), err
}

// IWScanner reads the associated SSID through `iw dev <iface> link`.
type IWScanner struct {
	Exec CommandExecutor
}

// NewIWScanner returns a scanner using the real executor.
func NewIWScanner() *IWScanner {
	return &IWScanner{Exec: RealCommandExecutor{}}
}

// CurrentSSID implements SSIDScanner. Returns "" without error when the
// interface is not associated.
func (s *IWScanner) CurrentSSID(ctx context.Context, iface string) (string, error) {
	out, err := s.Exec.RunCommand(ctx, "iw", "dev", iface, "link")
	if err != nil {
		return "", errors.Wrapf(err, errors.KindPluginFailure,
			"failed to query SSID of %s", iface)
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if ssid, ok := strings.CutPrefix(line, "SSID: "); ok {
			return strings.TrimSpace(ssid), nil
		}
	}
	return "", nil
}
