package service

import (
	"fmt"
	"sort"
	"strings"
)

// RejectionKind classifies a structured request rejection so the
// transport layer can map it to a status code.
type RejectionKind int

const (
	RejectionInvalid RejectionKind = iota
	RejectionNotFound
	RejectionConflict
)

// Rejection is a structured refusal of a request, identifying every
// offending field. No partial write occurs when a Rejection is returned.
type Rejection struct {
	Kind   RejectionKind
	Fields map[string]string
}

func (r *Rejection) Error() string {
	parts := make([]string, 0, len(r.Fields))
	for field, message := range r.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, message))
	}
	sort.Strings(parts)
	return "request rejected: " + strings.Join(parts, "; ")
}

func newRejection(kind RejectionKind) *Rejection {
	return &Rejection{Kind: kind, Fields: make(map[string]string)}
}

func rejectField(kind RejectionKind, field, message string) *Rejection {
	r := newRejection(kind)
	r.Fields[field] = message
	return r
}
