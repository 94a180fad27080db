package domain

import "time"

type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate-limited"
	OutcomeTransient   Outcome = "transient-failure"
	OutcomeFatal       Outcome = "fatal-failure"
)

// Attempt is one entry of a request's ordered generation log.
type Attempt struct {
	Candidate Candidate
	Outcome   Outcome
	Latency   time.Duration
	Err       error
}
