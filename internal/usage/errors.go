package usage

import "errors"

// ErrLimitReached indicates the user exhausted the quota for a kind.
var ErrLimitReached = errors.New("limit reached")
