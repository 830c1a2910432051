package cms

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind groups an error into one of six buckets: argument, state, content,
// resource, internal (bug) or delegated (passed through from a collaborator
// such as encoding/asn1 or crypto/x509 unchanged).
type Kind int

const (
	// KindArgument covers invalid arguments, bad indices and conflicting
	// reader/writer assignment.
	KindArgument Kind = iota
	// KindState covers calling the engine out of turn or without a
	// prerequisite (missing writer/content-type/hash function).
	KindState
	// KindContent covers malformed or unrecognized CMS structures.
	KindContent
	// KindResource covers allocation failures.
	KindResource
	// KindInternal covers contract violations inside the engine itself.
	KindInternal
	// KindDelegated covers errors surfaced unchanged from a collaborator.
	KindDelegated
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindState:
		return "state"
	case KindContent:
		return "content"
	case KindResource:
		return "resource"
	case KindInternal:
		return "internal"
	case KindDelegated:
		return "delegated"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every exported engine operation. It
// carries a Kind so callers can branch on the error category without
// string-matching, while still unwrapping through errors.Is/errors.Cause to
// whatever delegated error (if any) caused it.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return fmt.Sprintf("cms: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("cms: %s: %s: %s", e.Op, e.Kind, e.err)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.err }

// Cause lets github.com/pkg/errors.Cause see through to the wrapped cause.
func (e *Error) Cause() error { return e.err }

func newErr(kind Kind, op string, msg string) error {
	return &Error{Kind: kind, Op: op, err: errors.New(msg)}
}

func wrapErr(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, err: errors.WithStack(err)}
}

// Sentinel errors identifying the specific failure, for errors.Is checks.
// These are the leaf causes wrapped inside an *Error by the functions above.
var (
	// ErrInvalidValue is returned for nil/zero arguments that are required.
	ErrInvalidValue = errors.New("invalid value")
	// ErrInvalidIndex is returned for an out-of-range signer/digest index.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrConflict is returned when a reader or writer is assigned twice.
	ErrConflict = errors.New("reader/writer already set")
	// ErrInvalidState is returned when an operation is called out of its
	// documented turn (e.g. WriteContent/EndContent outside BEGIN_DATA, Finish
	// outside END_DATA/NEED_HASH). Parse and Build do not check for RUNNING.
	ErrInvalidState = errors.New("invalid state")
	// ErrMissingAction is returned when a prerequisite (writer, content
	// type, hash function) has not been set before the call that needs it.
	ErrMissingAction = errors.New("missing action")
	// ErrMissingValue is returned when required build state (signers,
	// digest algorithms, a preset message digest) is absent.
	ErrMissingValue = errors.New("missing value")
	// ErrUnknownCMSObject is returned for an unrecognized content-type OID.
	ErrUnknownCMSObject = errors.New("unknown CMS object")
	// ErrUnsupportedCMSObject is returned for a recognized but unimplemented
	// content-type OID (enveloped-data, digested-data, encrypted-data, auth-data).
	ErrUnsupportedCMSObject = errors.New("unsupported CMS object")
	// ErrInvalidCMSObject is returned when a parsed structure doesn't match
	// the shape RFC 2630 requires (e.g. a messageDigest attribute that isn't
	// a SET OF exactly one OCTET STRING).
	ErrInvalidCMSObject = errors.New("invalid CMS object")
	// ErrDuplicateValue is returned when an attribute that must be unique
	// (messageDigest) occurs more than once.
	ErrDuplicateValue = errors.New("duplicate value")
	// ErrValueNotFound is returned when a required element is absent.
	ErrValueNotFound = errors.New("value not found")
	// ErrNoData is returned when an accessor is called before a successful
	// parse has populated signer_info.
	ErrNoData = errors.New("no data")
	// ErrNotImplemented is returned for the documented single-signer
	// limitation (idx > 0 on several accessors).
	ErrNotImplemented = errors.New("not implemented")
	// ErrBug is returned for an internal contract violation; it is not
	// recoverable and indicates a defect in the engine itself.
	ErrBug = errors.New("internal bug")
)
