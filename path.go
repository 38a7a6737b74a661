// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
)

// The agent exposes a single addressable node: the document root "/". Path
// resolution deliberately refuses to be a general tree-addressing engine; if
// more nodes are ever needed this should become a path matcher over tagged
// variants rather than a chain of string comparisons.

// PathString renders a gNMI path as a human-readable string ("/a/b/c").
//
// Keys are rendered in gNMI text form ("/interfaces/interface[name=eth0]").
// The empty path renders as "/".
func PathString(path *gnmipb.Path) string {
	if path == nil || len(path.Elem) == 0 {
		return "/"
	}
	s := ""
	for _, elem := range path.Elem {
		s += "/" + elem.Name
		for key, value := range elem.Key {
			s += "[" + key + "=" + value + "]"
		}
	}
	return s
}

// resolveRoot validates that prefix and path together address the document
// root. The root is the empty element sequence; a single element with an empty
// name (produced by some clients for the xpath "/") is accepted as an alias.
//
// Returns an *UnsupportedPathError carrying the rejected path otherwise.
func resolveRoot(prefix, path *gnmipb.Path) error {
	if !isRoot(prefix) {
		return &UnsupportedPathError{Path: PathString(prefix)}
	}
	if !isRoot(path) {
		return &UnsupportedPathError{Path: PathString(path)}
	}
	return nil
}

// isRoot reports whether path addresses the document root.
func isRoot(path *gnmipb.Path) bool {
	if path == nil {
		return true
	}
	switch len(path.Elem) {
	case 0:
		return true
	case 1:
		return path.Elem[0].Name == "" && len(path.Elem[0].Key) == 0
	default:
		return false
	}
}
