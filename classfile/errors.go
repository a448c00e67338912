package classfile

import "github.com/pkg/errors"

// Sentinel error kinds the reader/writer wrap with positional context
// (spec §7). Callers use errors.Is against these to classify a failure
// without parsing the message.
var (
	// ErrStructuralParse covers wrong magic, out-of-range pool index,
	// unknown opcode/tag, oversized code, and similar hard failures.
	ErrStructuralParse = errors.New("classfile: structural parse error")

	// ErrAttributeSemantic covers a duplicated at-most-one attribute, an
	// invalid local-variable index type, or an unterminated descriptor.
	ErrAttributeSemantic = errors.New("classfile: attribute semantic error")

	// ErrSkippableWarning names the recoverable class of condition (an
	// unknown attribute nobody asked for, a best-effort debug-render
	// lookup failure). No code in this module returns, wraps or logs it;
	// an unknown attribute reaches the visitor as an opaque Attribute.
	ErrSkippableWarning = errors.New("classfile: skippable warning")
)

// Error kind tags, carried in context alongside the sentinel so callers
// needing machine-readable detail can branch without string matching.
type Kind string

const (
	KindBadMagic              Kind = "BadMagic"
	KindUnsupportedVersion    Kind = "UnsupportedVersion"
	KindMalformedPool         Kind = "MalformedPool"
	KindUnknownAttribute      Kind = "UnknownAttribute"
	KindBadOpcode             Kind = "BadOpcode"
	KindUnknownWideOpcode     Kind = "UnknownWideOpcode"
	KindCodeTooLarge          Kind = "CodeTooLarge"
	KindSwitchBoundsInverted  Kind = "SwitchBoundsInverted"
	KindBranchOutOfRange      Kind = "BranchOutOfRange"
	KindDuplicateAttribute    Kind = "DuplicateAttribute"
	KindWrongTag              Kind = "WrongTag"
	KindOutOfRange            Kind = "OutOfRange"
	KindUnknownMethodHandle   Kind = "UnknownMethodHandleKind"
	KindMissingBootstrap      Kind = "MissingBootstrapMethods"
	KindRecursion             Kind = "Recursion"
)

// PositionedError wraps a sentinel error kind with a human-readable
// location chain (class name, member key, pool index, bytecode offset),
// per spec §7's propagation policy.
type PositionedError struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *PositionedError) Error() string {
	if e.Context == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind) + " (" + e.Context + "): " + e.Err.Error()
}

func (e *PositionedError) Unwrap() error { return e.Err }

func wrapErr(kind Kind, sentinel error, context string, format string, args ...interface{}) error {
	return &PositionedError{
		Kind:    kind,
		Context: context,
		Err:     errors.Wrapf(sentinel, format, args...),
	}
}
