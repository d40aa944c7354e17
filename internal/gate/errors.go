package gate

import "errors"

// ErrInvalidForStage indicates an action was invoked at a stage that does
// not permit it. No request is issued when this is returned.
var ErrInvalidForStage = errors.New("action invalid for current state")
