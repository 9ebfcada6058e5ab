package core

import "errors"

var (
	ErrDuplicateFilter     = errors.New("filter already exists")
	ErrFilterIndex         = errors.New("filter index out of range")
	ErrInvalidFilterKind   = errors.New("invalid filter kind")
	ErrInvalidFilterValue  = errors.New("invalid filter value")
	ErrAlreadyTracking     = errors.New("tracking already running in this chat")
	ErrNotTracking         = errors.New("tracking is not running in this chat")
	ErrNoFilters           = errors.New("no filters configured")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
