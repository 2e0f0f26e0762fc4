package ext4

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation against an ext4 image failed.
type Kind int

const (
	// AssumptionFailed means on-disk state is inconsistent with what this
	// package expects: corruption, a checksum mismatch, or a combination of
	// feature bits the package believed could never occur together.
	AssumptionFailed Kind = iota
	// UnsupportedFeature means the filesystem is internally consistent but
	// requests a feature this package does not implement.
	UnsupportedFeature
	// NotFound means the caller asked for something demonstrably absent:
	// inode 0, a missing path component, a missing superblock magic.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case AssumptionFailed:
		return "AssumptionFailed"
	case UnsupportedFeature:
		return "UnsupportedFeature"
	case NotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every exported operation in this
// package, other than errors passed through from caller-supplied
// collaborators (the byte source's I/O errors and ContentCrypto errors),
// which gain call-boundary context but carry no Kind.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

func assumptionFailed(context string, args ...interface{}) *Error {
	return newError(AssumptionFailed, fmt.Sprintf(context, args...), nil)
}

func unsupportedFeature(context string, args ...interface{}) *Error {
	return newError(UnsupportedFeature, fmt.Sprintf(context, args...), nil)
}

func notFound(context string, args ...interface{}) *Error {
	return newError(NotFound, fmt.Sprintf(context, args...), nil)
}

// KindOf extracts the Kind carried by err, when err (or something it wraps)
// is an *Error produced by this package. The second return is false for any
// other error, including pass-through I/O errors from the byte source.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// wrapf annotates an existing error with additional call-boundary context,
// preserving its Kind when it already is one of ours. Any other error is
// wrapped with %w and stays kindless, so errors.Is still finds it.
func wrapf(err error, context string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	ctx := fmt.Sprintf(context, args...)
	if e, ok := err.(*Error); ok {
		return newError(e.Kind, ctx+": "+e.Context, e.Err)
	}
	return fmt.Errorf("%s: %w", ctx, err)
}
