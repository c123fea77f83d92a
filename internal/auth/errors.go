package auth

import "fmt"

// Reason описывает внутреннюю причину отказа в аутентификации. Клиенту не раскрывается.
type Reason string

const (
	ReasonMalformed      Reason = "malformed"
	ReasonExpired        Reason = "expired"
	ReasonUnknownSubject Reason = "unknown_subject"
	ReasonBlocked        Reason = "blocked"
	ReasonStaleSession   Reason = "stale_session"
)

// Error описывает ошибку аутентификации с причиной отказа.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unauthorized (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("unauthorized (%s)", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать ошибки по причине: errors.Is(err, &auth.Error{Reason: auth.ReasonBlocked}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}
