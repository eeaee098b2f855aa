// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindValidation, "invalid trigger")
	if err.Error() != "invalid trigger" {
		t.Errorf("expected 'invalid trigger', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindStructural, "failed to decode interface")
	if wrapped.Error() != "failed to decode interface: invalid trigger" {
		t.Errorf("expected 'failed to decode interface: invalid trigger', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindVerification, "eth0 diverged")
	if GetKind(err) != KindVerification {
		t.Errorf("expected KindVerification, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindPluginFailure, "apply failed")
	if GetKind(wrapped) != KindPluginFailure {
		t.Errorf("expected KindPluginFailure, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindStructural:    "structural",
		KindVerification:  "verification",
		KindPluginFailure: "plugin_failure",
		KindUnknown:       "unknown",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("Kind(%d).String() = %s, want %s", kind, kind.String(), want)
		}
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindVerification, "state mismatch")
	err = Attr(err, "iface", "br0")
	err = Attr(err, "field", "state")

	attrs := GetAttributes(err)
	if attrs["iface"] != "br0" {
		t.Errorf("expected br0, got %v", attrs["iface"])
	}
	if attrs["field"] != "state" {
		t.Errorf("expected state, got %v", attrs["field"])
	}

	wrapped := Wrap(err, KindInternal, "verify pass failed")
	wrapped = Attr(wrapped, "operation", "verify")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["iface"] != "br0" || allAttrs["operation"] != "verify" {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}
