package stub

import "errors"

// ErrNoClient is returned by a Send* method when no client connection
// has been accepted yet.
var ErrNoClient = errors.New("stub: no client connected")
