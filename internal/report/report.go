// Package report is the user-visible side channel for recoverable errors.
//
// Operations of the property layer return typed errors to their caller and,
// independently, append a Report to the List carried by the context so the
// UI can show what degraded. A context without a List drops reports.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/rtprop/internal/rtti"
)

// Severity orders reports for display.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// Report is one user-visible message.
type Report struct {
	Severity Severity
	Kind     rtti.ErrorKind // empty for reports not tied to an rtti error
	Message  string
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %s", r.Severity, r.Message)
}

// List accumulates reports in the order they were raised.
type List struct {
	items []Report
	seen  map[*rtti.Error]struct{}
}

// markSeen records e and reports whether it was already on the list.
func (l *List) markSeen(e *rtti.Error) bool {
	if _, ok := l.seen[e]; ok {
		return true
	}
	if l.seen == nil {
		l.seen = make(map[*rtti.Error]struct{})
	}
	l.seen[e] = struct{}{}
	return false
}

// Add appends a report.
func (l *List) Add(sev Severity, kind rtti.ErrorKind, format string, args ...any) {
	l.items = append(l.items, Report{Severity: sev, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Items returns a copy of the reports.
func (l *List) Items() []Report {
	return append([]Report(nil), l.items...)
}

// Len returns the number of reports.
func (l *List) Len() int {
	return len(l.items)
}

// Has reports whether any report of kind was raised.
func (l *List) Has(kind rtti.ErrorKind) bool {
	for _, r := range l.items {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

// Clear drops all reports.
func (l *List) Clear() {
	l.items = l.items[:0]
	clear(l.seen)
}

func (l *List) String() string {
	lines := make([]string, len(l.items))
	for i, r := range l.items {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

type key struct{}

// WithList attaches l to ctx.
func WithList(ctx context.Context, l *List) context.Context {
	return context.WithValue(ctx, key{}, l)
}

// FromContext returns the List attached to ctx, or nil.
func FromContext(ctx context.Context) *List {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(key{}).(*List)
	return l
}

// Add appends a report to the List in ctx, if any.
func Add(ctx context.Context, sev Severity, kind rtti.ErrorKind, format string, args ...any) {
	if l := FromContext(ctx); l != nil {
		l.Add(sev, kind, format, args...)
	}
}

// Err reports err at a severity derived from its kind and returns it
// unchanged, so call sites can write `return report.Err(ctx, err)`.
// An *rtti.Error already reported by a callee is not reported again.
func Err(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	l := FromContext(ctx)
	if l == nil {
		return err
	}
	var re *rtti.Error
	if !errors.As(err, &re) {
		l.Add(Error, "", "%v", err)
		return err
	}
	if l.markSeen(re) {
		return err
	}
	l.Add(SeverityOf(re.Kind), re.Kind, "%v", err)
	return err
}

// SeverityOf maps error kinds to report severities. Stale paths and missing
// override anchors are expected during normal use.
func SeverityOf(kind rtti.ErrorKind) Severity {
	switch kind {
	case rtti.KindPathBroken, rtti.KindOverrideAnchorMissing:
		return Info
	case rtti.KindNotEditable, rtti.KindNotAnimatable, rtti.KindBadArgument,
		rtti.KindTypeMismatch, rtti.KindCollectionKeyNotFound, rtti.KindStaleInstance:
		return Warning
	default:
		return Error
	}
}
