package app

import "fmt"

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errNotFound(message string) *DomainError {
	return domainError(404, "NOT_FOUND", message, nil)
}

func errUnauthorized() *DomainError {
	return domainError(401, "UNAUTHORIZED", "Unauthorized", nil)
}

func errInvalidInput(message string) *DomainError {
	return domainError(400, "INVALID_INPUT", message, nil)
}

func errQuotaExceeded() *DomainError {
	return domainError(402, "QUOTA_EXCEEDED", "Board limit reached for unpaid account", nil)
}

func errInternal(message string) *DomainError {
	return domainError(500, "INTERNAL", message, nil)
}
