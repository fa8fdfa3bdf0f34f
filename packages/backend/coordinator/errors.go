package coordinator

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"
)

// ErrDispatchOverflow is returned when the Ordered Dispatcher's pending
// buffer exceeds its cap, indicating runaway upstream finals. It is
// session-fatal per spec §4.5/§7.
var ErrDispatchOverflow = stderrors.New("coordinator: dispatch buffer overflow")

// ErrSessionTornDown is returned by operations invoked after teardown has
// begun; the Delivery Sink stops accepting new messages at that point.
var ErrSessionTornDown = stderrors.New("coordinator: session torn down")

// ErrCircuitOpen is the synthetic error recorded for a batch skipped
// because the optional circuit breaker is open. Affected sentences
// dispatch with translation=null, as for any other failure, but the skip
// is not counted toward the breaker's threshold.
var ErrCircuitOpen = stderrors.New("coordinator: circuit breaker open")

// errorKind classifies a translation failure for logging and for the
// optional circuit breaker. It does not change the outbound message
// contract: both transient and permanent failures degrade a final to
// translation=null and are swallowed silently for interims.
type errorKind int

const (
	kindTransient errorKind = iota
	kindPermanent
	kindMalformed
)

// classifyTranslationError assigns a kind to a translation service error
// without guessing at provider-specific status codes: context
// cancellation/deadline are treated as transient (worth retrying later);
// everything else is conservatively treated as permanent so the circuit
// breaker, if enabled, can react to sustained provider failure.
func classifyTranslationError(err error) errorKind {
	if err == nil {
		return kindTransient
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return kindTransient
	}
	return kindPermanent
}

// wrapTranslationError annotates err with the classification boundary it
// crossed, using github.com/pkg/errors so the original call site's stack
// is preserved for session-level logs without changing err's identity for
// errors.Is/As callers.
func wrapTranslationError(err error, kind errorKind) error {
	if err == nil {
		return nil
	}
	switch kind {
	case kindPermanent:
		return errors.Wrap(err, "permanent translation failure")
	case kindMalformed:
		return errors.Wrap(err, "malformed stt event")
	default:
		return errors.Wrap(err, "transient translation failure")
	}
}
