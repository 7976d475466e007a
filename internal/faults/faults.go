package faults

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category identifies one member of the closed failure taxonomy.
type Category string

const (
	Network         Category = "network"
	Timeout         Category = "timeout"
	RateLimit       Category = "rate_limit"
	Auth            Category = "auth"
	Content         Category = "content"
	FileIO          Category = "file_io"
	Parse           Category = "parse"
	InvalidInput    Category = "invalid_input"
	Cancelled       Category = "cancelled"
	ExternalService Category = "external_service"
	Unknown         Category = "unknown"
)

var allCategories = []Category{
	Network,
	Timeout,
	RateLimit,
	Auth,
	Content,
	FileIO,
	Parse,
	InvalidInput,
	Cancelled,
	ExternalService,
	Unknown,
}

// Categories returns the ordered closed set.
func Categories() []Category {
	cp := make([]Category, len(allCategories))
	copy(cp, allCategories)
	return cp
}

// ParseCategory converts a string into a known Category.
func ParseCategory(value string) (Category, bool) {
	normalized := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, cat := range allCategories {
		if cat == normalized {
			return cat, true
		}
	}
	return "", false
}

// Error tags an underlying error with a Category so the scheduler can pick a
// retry policy without inspecting handler internals.
type Error struct {
	Category   Category
	Message    string
	RetryAfter time.Duration // server-provided hint, only meaningful for RateLimit
	Err        error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	switch {
	case msg != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Category, msg, e.Err)
	case msg != "":
		return fmt.Sprintf("[%s] %s", e.Category, msg)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %v", e.Category, e.Err)
	default:
		return fmt.Sprintf("[%s] failure", e.Category)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error with no underlying cause.
func New(cat Category, message string) error {
	return &Error{Category: cat, Message: message}
}

// Errorf builds a classified error from a format string.
func Errorf(cat Category, format string, args ...any) error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under cat, preserving it for errors.Is/As chains.
// A nil err yields nil.
func Wrap(cat Category, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Category: cat, Message: message, Err: err}
}

// RateLimited classifies err as RateLimit carrying an optional server hint.
func RateLimited(message string, retryAfter time.Duration, err error) error {
	return &Error{Category: RateLimit, Message: message, RetryAfter: retryAfter, Err: err}
}

// CategoryOf resolves the category of an arbitrary error. Unclassified
// errors map to Unknown; context cancellation and deadline expiry map to
// Cancelled and Timeout so plain context errors behave sensibly.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Unknown
}

// RetryAfterHint returns the server-provided delay hint, when one was
// attached to a RateLimit error anywhere in the chain.
func RetryAfterHint(err error) (time.Duration, bool) {
	var fe *Error
	if errors.As(err, &fe) && fe.RetryAfter > 0 {
		return fe.RetryAfter, true
	}
	return 0, false
}

// Retryable reports whether the category is worth another attempt.
// Unknown is retryable too, but on a reduced budget (see RetryBudget).
func Retryable(cat Category) bool {
	switch cat {
	case Network, Timeout, RateLimit, ExternalService, Unknown:
		return true
	default:
		return false
	}
}

// RetryBudget returns the attempt ceiling for a category given the
// configured maximum. Unknown gets a small safety margin rather than the
// full budget; non-retryable categories get a single attempt.
func RetryBudget(cat Category, maxAttempts int) int {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	switch {
	case cat == Unknown:
		if maxAttempts > 2 {
			return 2
		}
		return maxAttempts
	case Retryable(cat):
		return maxAttempts
	default:
		return 1
	}
}

// IsCancelled reports whether err represents cooperative cancellation.
func IsCancelled(err error) bool {
	return CategoryOf(err) == Cancelled
}
