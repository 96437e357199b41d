package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrKeyNotFound     = errors.New("key not found")
	ErrCorruptState    = errors.New("stored state is unreadable")
	ErrLockHeld        = errors.New("lock is held")

	// Job lifecycle
	ErrDispatchFailed = errors.New("dispatch failed")
	ErrMissingRun     = errors.New("run reference is missing")

	// Chat exchange
	ErrExchangeInFlight = errors.New("an exchange is already in flight")
	ErrEmptyMessage     = errors.New("message is empty")

	// Portfolio pulse
	ErrGenerationGated      = errors.New("digest generated recently")
	ErrGenerationInProgress = errors.New("digest generation already in progress")
	ErrUploadLimit          = errors.New("daily watchlist upload limit reached")
)
