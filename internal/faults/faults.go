// Package faults defines the error kinds shared by the association
// sampler. Every failure is unrecoverable for the current particle and
// frame; callers classify with errors.Is and never retry.
package faults

import "errors"

var (
	// ErrInvalidArgument reports an unknown overlap criterion, prior-scaling
	// mode or malformed parameter.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSingularFusion reports a fused precision (or stacked likelihood
	// covariance) that cannot be inverted.
	ErrSingularFusion = errors.New("singular fusion")

	// ErrDegenerateProposal reports a zero proposal or exact-probability
	// total, or a proposal whose length disagrees with the candidate count.
	ErrDegenerateProposal = errors.New("degenerate proposal")

	// ErrShapeMismatch reports a vector or matrix of the wrong dimension.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrConsistencyViolation reports a broken internal invariant.
	ErrConsistencyViolation = errors.New("consistency violation")
)
