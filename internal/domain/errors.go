package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrLockHeld     = errors.New("lock already held")
	ErrCycleRunning = errors.New("cycle already running")
)
