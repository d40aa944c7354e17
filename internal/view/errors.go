package view

import "errors"

var ErrClosed = errors.New("claim view closed")
