package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrArtifactNotFound marks a provider job that finished without a locatable artifact.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrNotConfigured means a backend needed by the operation has no credentials.
	ErrNotConfigured = errors.New("backend not configured")
)

// ProviderTimeoutError means polling ran out of attempts before the job reached a
// terminal status. The job may still finish; callers can retry later.
type ProviderTimeoutError struct {
	Provider string
	JobID    string
	Attempts int
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("%s job %s did not finish after %d polls", e.Provider, e.JobID, e.Attempts)
}

// ProviderFailureError is an explicit failure or cancellation reported by a backend.
type ProviderFailureError struct {
	Provider string
	JobID    string
	Status   string
	Message  string
	Err      error
}

func (e *ProviderFailureError) Error() string {
	parts := []string{e.Provider + " failure"}
	if e.JobID != "" {
		parts = append(parts, "job="+e.JobID)
	}
	if e.Status != "" {
		parts = append(parts, "status="+e.Status)
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg != "" {
		parts = append(parts, msg)
	}
	return strings.Join(parts, ": ")
}

func (e *ProviderFailureError) Unwrap() error { return e.Err }

// InfrastructureError aborts the current operation (storage or database unreachable).
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	if e.Err == nil {
		return "infrastructure error: " + e.Op
	}
	return fmt.Sprintf("infrastructure error: %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	var infra *InfrastructureError
	if errors.As(err, &infra) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

func IsProviderTimeout(err error) bool {
	var target *ProviderTimeoutError
	return errors.As(err, &target)
}

func IsProviderFailure(err error) bool {
	var target *ProviderFailureError
	return errors.As(err, &target)
}

func IsInfrastructure(err error) bool {
	var target *InfrastructureError
	return errors.As(err, &target)
}
