package model

import "fmt"

// ConfigError marks an invalid strategy configuration: unknown indicator
// type or operator, logic referencing an indicator that was never computed,
// invalid market type. Fails the run before simulation starts.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Msg
}

func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// DataError marks an empty or malformed candle sequence.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string {
	return "data error: " + e.Msg
}

// ComputationError wraps an unexpected failure during signal generation or
// simulation with the stage and bar it occurred at.
type ComputationError struct {
	Stage string
	Bar   int
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation error at %s (bar %d): %v", e.Stage, e.Bar, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
