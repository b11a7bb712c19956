package config

import "errors"

var (
	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrInvalidBackend indicates the blob backend is not recognized.
	ErrInvalidBackend = errors.New("config: invalid backend (must be \"pinata\" or \"local\")")

	// ErrInvalidHistory indicates the pointer history mode is not recognized.
	ErrInvalidHistory = errors.New("config: invalid history mode (must be \"single\" or \"keep\")")

	// ErrInvalidLedgerURL indicates the remote ledger URL is malformed.
	ErrInvalidLedgerURL = errors.New("config: invalid ledger URL")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
