package router

import "errors"

// ErrInvalidTopic is returned by Parse when a topic does not follow the
// peripheral grammar. It is an expected condition, not a fault.
var ErrInvalidTopic = errors.New("router: invalid topic format")
