// Package errors defines the application error taxonomy and reporting helpers.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries an internal message plus the text that is safe to show the user.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
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

// NewValidationError covers malformed or out-of-policy user input (bad date,
// weekend, out-of-hours, past timestamp). Always recovered by re-prompting.
func NewValidationError(msg string, userMessage string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: userMessage,
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("database error: %s", underlyingMsg),
		UserMessage: "Tive um problema temporário aqui. Pode tentar novamente?",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewCollaboratorError covers timeouts and failures of the text-understanding service.
func NewCollaboratorError(service string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("collaborator error: %s", service),
		UserMessage: "Desculpe, demorei muito para processar. Pode repetir?",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewConflictError covers a slot taken between the availability check and the insert.
func NewConflictError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "Este horário já está ocupado. Por favor, escolha outro horário.",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewIntegrityError covers rejected data operations such as a duplicate contact
// on lead creation or cancelling an already-cancelled appointment.
func NewIntegrityError(msg string) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     msg,
		UserMessage: "Não consegui concluir essa operação agora.",
		Severity:    SeverityMedium,
		Retryable:   false,
		cause:       nil,
	}
}
