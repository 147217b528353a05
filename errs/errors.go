// Package errs defines the sentinel errors shared across slipwire packages.
//
// Errors fall into the taxonomy used throughout the library:
//
//   - Validation errors: malformed or out-of-bounds input, rejected before
//     any processing and never retried (ErrInvalidPayload, ErrPayloadTooLarge).
//   - Integrity errors: a compressed stream failed to parse or exceeded a
//     size bound during reconstruction (ErrMalformedStream, ErrOutputTooLarge,
//     ErrChecksumMismatch, ErrDigestMismatch). The payload is dropped.
//   - Delivery errors: a tracked message ran out of retry attempts or was
//     cancelled explicitly (ErrRetriesExhausted, ErrSendCancelled).
//
// Callers dispatch on error kind with errors.Is; fallible operations wrap
// these sentinels with context via fmt.Errorf("...: %w", err).
package errs

import "errors"

// Validation errors. Rejected immediately, never retried.
var (
	// ErrInvalidPayload indicates a payload that is structurally unusable,
	// such as a nil delta base or an empty wire frame.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrPayloadTooLarge indicates a compressed input exceeding the hard
	// compressed-size bound. It is returned before any parsing is attempted.
	ErrPayloadTooLarge = errors.New("compressed payload exceeds size bound")
)

// Integrity errors. The offending payload is discarded by the caller.
var (
	// ErrMalformedStream indicates a compressed token stream that cannot be
	// parsed: a truncated back-reference, a distance pointing before the
	// start of the reconstructed output, or a zero distance.
	ErrMalformedStream = errors.New("malformed compressed stream")

	// ErrOutputTooLarge indicates that reconstructing a compressed payload
	// would exceed the hard decompressed-size bound. This guards against
	// decompression bombs from untrusted peers.
	ErrOutputTooLarge = errors.New("decompressed output exceeds size bound")

	// ErrChecksumMismatch indicates that a received packet's length checksum
	// does not match its payload.
	ErrChecksumMismatch = errors.New("packet checksum mismatch")

	// ErrDigestMismatch indicates that a received packet's content digest
	// does not match its payload.
	ErrDigestMismatch = errors.New("packet digest mismatch")
)

// Delivery errors.
var (
	// ErrRetriesExhausted indicates a message that reached its retry budget
	// without being acknowledged. Fatal for that message only.
	ErrRetriesExhausted = errors.New("retries exhausted without acknowledgement")

	// ErrSendCancelled indicates a message whose delivery was cancelled by
	// the caller before it was acknowledged.
	ErrSendCancelled = errors.New("send cancelled")

	// ErrUnknownMessage indicates an operation on a message id the sender
	// is not tracking.
	ErrUnknownMessage = errors.New("unknown message id")
)

// Configuration errors.
var (
	// ErrInvalidConfig indicates a configuration value outside its valid
	// range, detected at construction time.
	ErrInvalidConfig = errors.New("invalid configuration")
)
