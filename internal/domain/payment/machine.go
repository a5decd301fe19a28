package payment

import (
	"github.com/alpian-ledger/payment-service/internal/domain/errors"
)

// Command is an instruction to move a payment through its lifecycle.
type Command string

const (
	CommandSubmit                  Command = "submit"
	CommandConfirmSuccess          Command = "confirm_success"
	CommandConfirmTransientFailure Command = "confirm_transient_failure"
	CommandRetry                   Command = "retry"
	CommandConfirmPermanentFailure Command = "confirm_permanent_failure"
	CommandExhaustRetries          Command = "exhaust_retries"
	CommandCancel                  Command = "cancel"
)

// EventType identifies a lifecycle event produced by a transition.
type EventType string

const (
	EventPaymentSubmitted      EventType = "payment.submitted"
	EventPaymentSettled        EventType = "payment.settled"
	EventPaymentRetryScheduled EventType = "payment.retry_scheduled"
	EventPaymentFailed         EventType = "payment.failed"
	EventPaymentCancelled      EventType = "payment.cancelled"
)

// Decision is the outcome of running a command through the state machine.
type Decision struct {
	Next            Status
	Events          []EventType
	IncrementsRetry bool
}

// transition describes one edge of the state machine graph.
type transition struct {
	from            []Status
	to              Status
	events          []EventType
	incrementsRetry bool
}

var transitions = map[Command]transition{
	CommandSubmit: {
		from:   []Status{StatusCreated},
		to:     StatusSubmitted,
		events: []EventType{EventPaymentSubmitted},
	},
	CommandConfirmSuccess: {
		from:   []Status{StatusSubmitted},
		to:     StatusSettled,
		events: []EventType{EventPaymentSettled},
	},
	CommandConfirmTransientFailure: {
		from:            []Status{StatusSubmitted},
		to:              StatusFailedRetryable,
		events:          []EventType{EventPaymentRetryScheduled},
		incrementsRetry: true,
	},
	CommandRetry: {
		from: []Status{StatusFailedRetryable},
		to:   StatusSubmitted,
		// No new event: the retry re-enters the submitted state silently.
	},
	CommandConfirmPermanentFailure: {
		from:   []Status{StatusSubmitted, StatusFailedRetryable},
		to:     StatusFailedTerminal,
		events: []EventType{EventPaymentFailed},
	},
	CommandExhaustRetries: {
		from:   []Status{StatusFailedRetryable},
		to:     StatusFailedTerminal,
		events: []EventType{EventPaymentFailed},
	},
	CommandCancel: {
		from:   []Status{StatusCreated},
		to:     StatusCancelled,
		events: []EventType{EventPaymentCancelled},
	},
}

// Decide is the pure state machine: given the current state, a command, and
// the retry counters, it computes the next state and the events to enqueue.
// It has no side effects; persisting the outcome atomically is the caller's
// responsibility.
func Decide(current Status, cmd Command, retryCount, maxRetries int) (Decision, error) {
	t, ok := transitions[cmd]
	if !ok {
		return Decision{}, errors.NewDomainError(
			"unknown_command", "unknown command "+string(cmd), errors.ErrInvalidTransition)
	}

	valid := false
	for _, s := range t.from {
		if s == current {
			valid = true
			break
		}
	}
	if !valid {
		return Decision{}, errors.NewDomainError(
			"invalid_transition",
			"cannot apply "+string(cmd)+" in state "+string(current),
			errors.ErrInvalidTransition,
		)
	}

	switch cmd {
	case CommandRetry:
		// A retry is only allowed while the retry budget is not spent.
		if retryCount >= maxRetries {
			return Decision{}, errors.ErrRetriesExhausted
		}
	case CommandExhaustRetries:
		if retryCount < maxRetries {
			return Decision{}, errors.NewDomainError(
				"retries_remaining",
				"cannot exhaust retries while the retry budget remains",
				errors.ErrInvalidTransition,
			)
		}
	}

	return Decision{Next: t.to, Events: t.events, IncrementsRetry: t.incrementsRetry}, nil
}

// CanTransition reports whether cmd is applicable in the given state,
// ignoring retry-budget guards.
func CanTransition(current Status, cmd Command) bool {
	t, ok := transitions[cmd]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == current {
			return true
		}
	}
	return false
}
