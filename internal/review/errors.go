package review

import "errors"

var (
	ErrUnknownDocument = errors.New("document not in review session")
	ErrSaveInFlight    = errors.New("save already in progress")
	ErrApprovalAborted = errors.New("approval not requested: save failed")
)
