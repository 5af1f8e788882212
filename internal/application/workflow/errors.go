package workflow

import "errors"

// ErrNoThread is returned when the chat platform accepts a message without reporting its id
var ErrNoThread = errors.New("chat platform returned no message id")
