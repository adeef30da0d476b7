package rtti

import (
	"fmt"
	"strings"
)

// ErrorKind categorizes an Error.
type ErrorKind string

const (
	// Registration-time errors. The registration attempt is rejected and the
	// registry stays consistent.
	KindDuplicateStruct ErrorKind = "duplicate_struct"
	KindDuplicateProp   ErrorKind = "duplicate_prop"
	KindDuplicateFn     ErrorKind = "duplicate_fn"
	KindInvalidSpec     ErrorKind = "invalid_spec"

	// Runtime errors. All are recoverable: the caller degrades the feature
	// that depended on the failing property, path or override.
	KindNotEditable           ErrorKind = "not_editable"
	KindNotAnimatable         ErrorKind = "not_animatable"
	KindBadArgument           ErrorKind = "bad_argument"
	KindTypeMismatch          ErrorKind = "type_mismatch"
	KindCollectionKeyNotFound ErrorKind = "collection_key_not_found"
	KindPathBroken            ErrorKind = "path_broken"
	KindOverrideAnchorMissing ErrorKind = "override_anchor_missing"
	KindIteratorInvalidated   ErrorKind = "iterator_invalidated"
	KindStaleInstance         ErrorKind = "stale_instance"
	KindUnresolvedCallee      ErrorKind = "unresolved_callee"
)

// Sentinels for errors.Is. An *Error matches a sentinel when the kinds agree.
var (
	ErrDuplicateStruct       = &Error{Kind: KindDuplicateStruct}
	ErrDuplicateProp         = &Error{Kind: KindDuplicateProp}
	ErrDuplicateFn           = &Error{Kind: KindDuplicateFn}
	ErrInvalidSpec           = &Error{Kind: KindInvalidSpec}
	ErrNotEditable           = &Error{Kind: KindNotEditable}
	ErrNotAnimatable         = &Error{Kind: KindNotAnimatable}
	ErrBadArgument           = &Error{Kind: KindBadArgument}
	ErrTypeMismatch          = &Error{Kind: KindTypeMismatch}
	ErrCollectionKeyNotFound = &Error{Kind: KindCollectionKeyNotFound}
	ErrPathBroken            = &Error{Kind: KindPathBroken}
	ErrOverrideAnchorMissing = &Error{Kind: KindOverrideAnchorMissing}
	ErrIteratorInvalidated   = &Error{Kind: KindIteratorInvalidated}
	ErrStaleInstance         = &Error{Kind: KindStaleInstance}
	ErrUnresolvedCallee      = &Error{Kind: KindUnresolvedCallee}
)

// Error is the structured error returned by every operation of the layer.
type Error struct {
	Kind   ErrorKind
	Struct string // struct identifier, when known
	Prop   string // prop or function identifier, when known
	Param  string // offending parameter for KindBadArgument
	Path   string // path expression for KindPathBroken
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("rtti: ")
	b.WriteString(string(e.Kind))

	switch {
	case e.Struct != "" && e.Prop != "":
		b.WriteString(" at ")
		b.WriteString(e.Struct)
		b.WriteByte('.')
		b.WriteString(e.Prop)
	case e.Struct != "":
		b.WriteString(" at ")
		b.WriteString(e.Struct)
	case e.Prop != "":
		b.WriteString(" at ")
		b.WriteString(e.Prop)
	}
	if e.Param != "" {
		fmt.Fprintf(&b, " (param %q)", e.Param)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (path %q)", e.Path)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds an *Error of the given kind with a formatted detail.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// At returns a copy of e scoped to a struct and prop.
func (e *Error) At(structID, propID string) *Error {
	c := *e
	c.Struct = structID
	c.Prop = propID
	return &c
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// BadArgument builds a KindBadArgument error naming param.
func BadArgument(fn, param, format string, args ...any) *Error {
	return &Error{Kind: KindBadArgument, Prop: fn, Param: param, Detail: fmt.Sprintf(format, args...)}
}

// PathBroken builds a KindPathBroken error for path.
func PathBroken(path, format string, args ...any) *Error {
	return &Error{Kind: KindPathBroken, Path: path, Detail: fmt.Sprintf(format, args...)}
}
