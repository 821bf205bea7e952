package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

const extensionsHeader = "X-A2A-Extensions"

// parseExtensionsHeader reads every X-A2A-Extensions header value (the
// caller may repeat the header or comma-join it) into a set of requested
// extension URIs, tolerant of surrounding whitespace.
func parseExtensionsHeader(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{})
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				set[part] = struct{}{}
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// writeExtensionsHeader echoes the activated extension set back to the
// caller, sorted.
func writeExtensionsHeader(w http.ResponseWriter, cc *a2a.ServerCallContext) {
	if cc == nil || len(cc.ActivatedExtensions) == 0 {
		return
	}
	uris := make([]string, 0, len(cc.ActivatedExtensions))
	for uri := range cc.ActivatedExtensions {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	w.Header().Set(extensionsHeader, strings.Join(uris, ", "))
}

// serverCallContextFromHeaders builds a fresh ServerCallContext for one
// request, populating RequestedExtensions from the X-A2A-Extensions
// header(s). Activation policy: since the core handler has no extension
// registry of its own (extensions are an out-of-band concern negotiated
// above it), every requested extension is considered activated — an
// adapter wrapping this one with real extension middleware can overwrite
// ActivatedExtensions before dispatch.
func serverCallContextFromHeaders(h http.Header) *a2a.ServerCallContext {
	requested := parseExtensionsHeader(h.Values(extensionsHeader))
	return &a2a.ServerCallContext{
		State:               make(map[string]any),
		RequestedExtensions: requested,
		ActivatedExtensions: requested,
	}
}
