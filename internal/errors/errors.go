package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind groups errors by the precondition that was not met. Callers branch on
// Kind (via errors.Is against the sentinels below), never on message text.
type Kind string

const (
	KindUnauthorized           Kind = "unauthorized"
	KindValidation             Kind = "validation"
	KindUnknownProduct         Kind = "unknown_product"
	KindInsufficientFunds      Kind = "insufficient_funds"
	KindBannedAccount          Kind = "banned_account"
	KindAlreadyProcessed       Kind = "already_processed"
	KindDraftInProgress        Kind = "draft_in_progress"
	KindPendingApprovalExists  Kind = "pending_approval_exists"
	KindNotFound               Kind = "not_found"
	KindPersistenceUnavailable Kind = "persistence_unavailable"
	KindFeatureDisabled        Kind = "feature_disabled"
	KindExternalAPI            Kind = "external_api"
	KindState                  Kind = "state"
	KindRateLimited            Kind = "rate_limited"
)

type AppError struct {
	Code        string
	Kind        Kind
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	// Field is set for validation errors.
	Field string
	// Entity is set for not-found errors.
	Entity string
	// Shortfall is set for insufficient-funds errors.
	Shortfall int64
	cause     error
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrUnauthorized           = &AppError{Kind: KindUnauthorized}
	ErrValidation             = &AppError{Kind: KindValidation}
	ErrUnknownProduct         = &AppError{Kind: KindUnknownProduct}
	ErrInsufficientFunds      = &AppError{Kind: KindInsufficientFunds}
	ErrBannedAccount          = &AppError{Kind: KindBannedAccount}
	ErrAlreadyProcessed       = &AppError{Kind: KindAlreadyProcessed}
	ErrDraftInProgress        = &AppError{Kind: KindDraftInProgress}
	ErrPendingApprovalExists  = &AppError{Kind: KindPendingApprovalExists}
	ErrNotFound               = &AppError{Kind: KindNotFound}
	ErrPersistenceUnavailable = &AppError{Kind: KindPersistenceUnavailable}
	ErrFeatureDisabled        = &AppError{Kind: KindFeatureDisabled}
	ErrRateLimited            = &AppError{Kind: KindRateLimited}
)

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// Is reports whether target is an AppError of the same kind. A target that
// carries a Field or Entity also has to match it.
func (e *AppError) Is(target error) bool {
	if e == nil {
		return false
	}

	t, ok := target.(*AppError)
	if !ok || t == nil {
		return false
	}

	if t.Kind != e.Kind {
		return false
	}

	if t.Field != "" && t.Field != e.Field {
		return false
	}

	if t.Entity != "" && t.Entity != e.Entity {
		return false
	}

	return true
}

// KindOf returns the Kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind
	}

	return ""
}

// As is errors.As for *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}

	return nil, false
}

func NewValidationError(field, msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Kind:        KindValidation,
		Message:     fmt.Sprintf("invalid %s: %s", field, msg),
		UserMessage: fmt.Sprintf("Invalid %s. %s", field, msg),
		Severity:    SeverityLow,
		Field:       field,
	}
}

func NewDatabaseError(cause error) *AppError {
	return NewPersistenceError("database", cause)
}

func NewPersistenceError(backend string, cause error) *AppError {
	return &AppError{
		Code:        "E200",
		Kind:        KindPersistenceUnavailable,
		Message:     fmt.Sprintf("%s unavailable", backend),
		UserMessage: "Temporary problem, please try again later",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Kind:        KindExternalAPI,
		Message:     fmt.Sprintf("external API error: %s", apiName),
		UserMessage: "Service temporarily unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Kind:        KindState,
		Message:     msg,
		UserMessage: "This action is not possible right now",
		Severity:    SeverityMedium,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Kind:        KindRateLimited,
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds", retryAfter),
		Severity:    SeverityLow,
	}
}

func NewUnauthorizedError() *AppError {
	return &AppError{
		Code:        "E600",
		Kind:        KindUnauthorized,
		Message:     "user is not authorized",
		UserMessage: "You are not authorized to use this bot. Send /register to request access",
		Severity:    SeverityLow,
	}
}

// NewAdminOnlyError is an Unauthorized error for actions reserved to admins.
func NewAdminOnlyError() *AppError {
	return &AppError{
		Code:        "E602",
		Kind:        KindUnauthorized,
		Message:     "admin privileges required",
		UserMessage: "Only admins can do this",
		Severity:    SeverityLow,
	}
}

// NewOwnerOnlyError is an Unauthorized error for actions reserved to the owner.
func NewOwnerOnlyError() *AppError {
	return &AppError{
		Code:        "E603",
		Kind:        KindUnauthorized,
		Message:     "owner privileges required",
		UserMessage: "Only the owner can do this",
		Severity:    SeverityLow,
	}
}

// NewAwaitingApprovalError is returned while a user's top-up is waiting for an
// admin decision. It is Unauthorized-class.
func NewAwaitingApprovalError() *AppError {
	return &AppError{
		Code:        "E601",
		Kind:        KindUnauthorized,
		Message:     "user is awaiting top-up approval",
		UserMessage: "Your top-up is waiting for admin approval. Please wait until it is processed",
		Severity:    SeverityLow,
	}
}

func NewUnknownProductError(code string) *AppError {
	return &AppError{
		Code:        "E610",
		Kind:        KindUnknownProduct,
		Message:     fmt.Sprintf("unknown product %q", code),
		UserMessage: fmt.Sprintf("Product %q does not exist. Check /price for the list", code),
		Severity:    SeverityLow,
	}
}

func NewInsufficientFundsError(required, available int64) *AppError {
	shortfall := required - available
	return &AppError{
		Code:        "E620",
		Kind:        KindInsufficientFunds,
		Message:     fmt.Sprintf("insufficient funds: need %d, have %d", required, available),
		UserMessage: fmt.Sprintf("Insufficient balance. Required: %d MMK, balance: %d MMK, missing: %d MMK. Use /topup to add funds", required, available, shortfall),
		Severity:    SeverityLow,
		Shortfall:   shortfall,
	}
}

func NewBannedAccountError(gameID string) *AppError {
	return &AppError{
		Code:        "E630",
		Kind:        KindBannedAccount,
		Message:     fmt.Sprintf("game id %s is banned", gameID),
		UserMessage: "This game account is banned and cannot receive orders",
		Severity:    SeverityLow,
	}
}

func NewAlreadyProcessedError(entity, id string) *AppError {
	return &AppError{
		Code:        "E640",
		Kind:        KindAlreadyProcessed,
		Message:     fmt.Sprintf("%s %s already processed", entity, id),
		UserMessage: fmt.Sprintf("This %s has already been processed", entity),
		Severity:    SeverityLow,
		Entity:      entity,
	}
}

func NewDraftInProgressError() *AppError {
	return &AppError{
		Code:        "E650",
		Kind:        KindDraftInProgress,
		Message:     "top-up draft in progress",
		UserMessage: "You have an unfinished top-up. Finish it or send /cancel first",
		Severity:    SeverityLow,
	}
}

func NewPendingApprovalExistsError() *AppError {
	return &AppError{
		Code:        "E651",
		Kind:        KindPendingApprovalExists,
		Message:     "pending top-up exists",
		UserMessage: "You already have a top-up waiting for approval",
		Severity:    SeverityLow,
	}
}

func NewNotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:        "E660",
		Kind:        KindNotFound,
		Message:     fmt.Sprintf("%s %s not found", entity, id),
		UserMessage: fmt.Sprintf("No %s found for %s", entity, id),
		Severity:    SeverityLow,
		Entity:      entity,
	}
}

func NewFeatureDisabledError(feature string) *AppError {
	return &AppError{
		Code:        "E670",
		Kind:        KindFeatureDisabled,
		Message:     fmt.Sprintf("feature %s is under maintenance", feature),
		UserMessage: fmt.Sprintf("%s is temporarily unavailable for maintenance", feature),
		Severity:    SeverityLow,
	}
}

// Wrap attaches cause to a copy of e.
func Wrap(e *AppError, cause error) *AppError {
	if e == nil {
		return nil
	}

	cp := *e
	cp.cause = cause
	return &cp
}
