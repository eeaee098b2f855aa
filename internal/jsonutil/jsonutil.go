// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package jsonutil implements generic structural-value operations over
// JSON-shaped trees (maps, arrays, scalars): deep diff, deep merge,
// revert computation and subset matching. The state package drives its
// diff/verify/revert algorithms through these primitives instead of
// enumerating fields.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"

	"grimm.is/netstate/internal/errors"
)

// ToValue serializes a typed record into the generic comparison form.
// The result always has string keys and JSON scalar types.
func ToValue(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindStructural, "failed to serialize %T", v)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(err, errors.KindStructural, "failed to deserialize %T", v)
	}
	return out, nil
}

// FromValue deserializes a generic tree back into a typed record,
// failing with a structural error instead of silently dropping fields.
func FromValue(val any, out any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return errors.Wrap(err, errors.KindStructural, "failed to serialize generic value")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.Wrapf(err, errors.KindStructural, "failed to decode into %T", out)
	}
	return nil
}

// FromYAML decodes a YAML document into a typed record, going through
// the JSON comparison form so json tags and strict scalar types apply.
func FromYAML(data []byte, out any) error {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return errors.Wrap(err, errors.KindStructural, "failed to parse YAML document")
	}
	return FromValue(tree, out)
}

// Diff computes the minimal changed subtree of desired relative to
// current. Maps are diffed recursively; arrays and scalars are atomic.
// Keys present only in current are ignored: the desired value drives
// the comparison. The second return is false when nothing differs.
func Diff(desired, current any) (any, bool) {
	desMap, desOk := desired.(map[string]any)
	curMap, curOk := current.(map[string]any)
	if desOk && curOk {
		out := make(map[string]any)
		for key, desVal := range desMap {
			curVal, found := curMap[key]
			if !found {
				out[key] = desVal
				continue
			}
			if child, changed := Diff(desVal, curVal); changed {
				out[key] = child
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	}

	if reflect.DeepEqual(desired, current) {
		return nil, false
	}
	return desired, true
}

// Merge deep-overlays src onto dst: nested maps merge key by key,
// arrays and scalars from src replace dst wholesale. Keys absent from
// src are left alone; explicit nulls in src are carried through so a
// revert document can unset fields.
func Merge(dst map[string]any, src map[string]any) error {
	for key, srcVal := range src {
		srcChild, srcOk := srcVal.(map[string]any)
		dstChild, dstOk := dst[key].(map[string]any)
		if srcOk && dstOk {
			if err := Merge(dstChild, srcChild); err != nil {
				return err
			}
			continue
		}
		dst[key] = srcVal
	}
	return nil
}

// Revert plants, into out, the pre-change value of every field that
// desired would modify relative to current. Fields desired introduces
// (absent from current) are planted as explicit nulls so the revert
// unsets them. Fields untouched by desired are not visited.
func Revert(desired, current any, out map[string]any) {
	desMap, desOk := desired.(map[string]any)
	curMap, curOk := current.(map[string]any)
	if !desOk || !curOk {
		return
	}
	for key, desVal := range desMap {
		curVal, found := curMap[key]
		if !found {
			out[key] = nil
			continue
		}
		if reflect.DeepEqual(desVal, curVal) {
			continue
		}
		desChild, desChildOk := desVal.(map[string]any)
		curChild, curChildOk := curVal.(map[string]any)
		if desChildOk && curChildOk {
			sub, ok := out[key].(map[string]any)
			if !ok {
				sub = make(map[string]any)
			}
			Revert(desChild, curChild, sub)
			if len(sub) > 0 {
				out[key] = sub
			}
			continue
		}
		out[key] = curVal
	}
}

// SubsetMatch verifies every field desired specifies against current.
// Maps recurse, arrays and scalars must be deeply equal. Returns the
// JSON-ish path of the first mismatch, or "" when everything desired
// matched.
func SubsetMatch(desired, current any, path string) string {
	desMap, desOk := desired.(map[string]any)
	curMap, curOk := current.(map[string]any)
	if desOk && curOk {
		for key, desVal := range desMap {
			childPath := key
			if path != "" {
				childPath = path + "." + key
			}
			curVal, found := curMap[key]
			if !found {
				return childPath
			}
			if mismatch := SubsetMatch(desVal, curVal, childPath); mismatch != "" {
				return mismatch
			}
		}
		return ""
	}

	if reflect.DeepEqual(desired, current) {
		return ""
	}
	if path == "" {
		return "."
	}
	return path
}

// Equal reports whether two generic trees are structurally identical.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Pretty renders a generic tree as indented JSON for diagnostics.
func Pretty(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
