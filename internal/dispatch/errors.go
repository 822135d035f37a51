package dispatch

import "errors"

// ErrDispatch indicates a message that could not be processed: an
// address triple inconsistent with its verb, an index failure, or an
// entity handler failure.
var ErrDispatch = errors.New("dispatch: message rejected")
