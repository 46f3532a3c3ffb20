package actor

import "errors"

// Sentinel errors for the named failure conditions this package raises.
// Callers should prefer errors.Is over string matching.
var (
	// ErrActorTerminated indicates an operation failed because the target
	// actor was stopped or never started.
	ErrActorTerminated = errors.New("actor terminated")

	// ErrDuplicateAddress indicates a registry Add call for an id that
	// already has an entry.
	ErrDuplicateAddress = errors.New("duplicate actor id in registry")

	// ErrUnknownActor indicates a registry lookup for an id with no entry.
	ErrUnknownActor = errors.New("unknown actor id")

	// ErrUnknownTarget indicates a message's target could not be resolved
	// to a child, a remote system, or self during forwarding.
	ErrUnknownTarget = errors.New("unknown forwarding target")

	// ErrAskTimeout indicates an Ask's reply was not received before the
	// caller-supplied timeout elapsed.
	ErrAskTimeout = errors.New("ask timed out waiting for reply")

	// ErrMagicMismatch indicates a decoded frame's magic string did not
	// match the configured security magic.
	ErrMagicMismatch = errors.New("frame magic mismatch")

	// ErrSignatureInvalid indicates a decoded frame's HMAC did not verify
	// under the configured key.
	ErrSignatureInvalid = errors.New("frame signature invalid")

	// ErrFrameMalformed indicates a frame was missing a required
	// separator, had a non-numeric length, or was otherwise unparsable.
	ErrFrameMalformed = errors.New("frame malformed")

	// ErrFrameTooLarge indicates a frame's declared body length exceeded
	// the configured read limit.
	ErrFrameTooLarge = errors.New("frame exceeds maximum body size")

	// ErrEmptyPayload indicates a frame decoded to a zero-length body,
	// which is rejected as malformed rather than treated as a valid
	// empty message.
	ErrEmptyPayload = errors.New("frame body is empty")

	// ErrHashSizeMismatch is a fatal configuration error raised when the
	// configured hash function's digest size does not match what was
	// computed.
	ErrHashSizeMismatch = errors.New("hmac hash size does not match configured function")

	// ErrUnregisteredMessageType indicates a Send or decode attempt
	// referenced a message type name with no registered constructor.
	ErrUnregisteredMessageType = errors.New("unregistered message type")

	// ErrUnregisteredActorClass indicates a CreateActor referenced a class
	// name with no registered factory.
	ErrUnregisteredActorClass = errors.New("unregistered actor class")

	// ErrNotSerializable indicates a payload could not be marshaled to
	// the wire format.
	ErrNotSerializable = errors.New("message is not serializable")
)
