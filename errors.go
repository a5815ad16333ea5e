package membership

import "errors"

// Stable, user-facing error kinds. Operations wrap these with context
// (offending group name); compare with errors.Is. Store transport failures
// are propagated unchanged and match none of them.
var (
	// ErrInvalidData marks a malformed or missing argument, detected before
	// any store call is issued.
	ErrInvalidData = errors.New("membership: invalid data")

	// ErrNoSuchGroup marks an operation that requires an existing group.
	ErrNoSuchGroup = errors.New("membership: no such group")

	// ErrGroupExists marks a create of a name already taken.
	ErrGroupExists = errors.New("membership: group already exists")

	// ErrAlreadyRequested marks a duplicate pending membership request.
	ErrAlreadyRequested = errors.New("membership: membership already requested")

	// ErrNeedsOwner marks a kick that would leave a group ownerless.
	ErrNeedsOwner = errors.New("membership: group needs at least one owner")

	// ErrNotLoggedIn marks a uid that is not a positive integer where
	// identity is required.
	ErrNotLoggedIn = errors.New("membership: not logged in")
)
