package folio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure by what the user can do about it.
type Kind int

const (
	KindConfig Kind = iota + 1
	KindAuth
	KindTransient
	KindUnreachable
	KindNotFound
	KindCapacity
	KindDataIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindAuth:
		return "authentication error"
	case KindTransient:
		return "temporary server error"
	case KindUnreachable:
		return "could not reach server"
	case KindNotFound:
		return "not found"
	case KindCapacity:
		return "result too large"
	case KindDataIntegrity:
		return "catalog data error"
	default:
		return "error"
	}
}

// Code is the stable identifier hosts put in error responses.
func (k Kind) Code() string {
	switch k {
	case KindConfig:
		return "CONFIGURATION"
	case KindAuth:
		return "AUTHENTICATION"
	case KindTransient:
		return "TRANSIENT"
	case KindUnreachable:
		return "UNREACHABLE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindCapacity:
		return "CAPACITY"
	case KindDataIntegrity:
		return "DATA_INTEGRITY"
	default:
		return "INTERNAL"
	}
}

// Error is the categorized failure every engine operation returns.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrAuth) works for
// any authentication failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Status == 0 && t.Detail == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrConfig        = &Error{Kind: KindConfig}
	ErrAuth          = &Error{Kind: KindAuth}
	ErrTransient     = &Error{Kind: KindTransient}
	ErrUnreachable   = &Error{Kind: KindUnreachable}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrCapacity      = &Error{Kind: KindCapacity}
	ErrDataIntegrity = &Error{Kind: KindDataIntegrity}
)

var (
	// ErrIncompleteResults means a page came back empty before the expected
	// total was reached.
	ErrIncompleteResults = errors.New("complete result set could not be assembled")
	// ErrCancelled is returned when the user dismisses the credential prompt.
	ErrCancelled = errors.New("credential entry cancelled")
	// ErrNeedCredentials is returned when a session is required and the host
	// has no way to prompt for one.
	ErrNeedCredentials = errors.New("FOLIO credentials required")
)

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Recoverable reports whether repeating the same operation later may succeed.
func Recoverable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindUnreachable:
		return true
	}
	return false
}

// Advice is the next step shown to the user alongside the error text.
func Advice(err error) string {
	if errors.Is(err, ErrCancelled) {
		return "Operation cancelled."
	}
	switch KindOf(err) {
	case KindConfig:
		return "Check the server URL, tenant id and the values entered, then try again."
	case KindAuth:
		return "Log in to FOLIO again with a valid username and password."
	case KindTransient, KindUnreachable:
		return "Wait a moment and repeat the operation."
	case KindNotFound:
		return "Check the values entered; nothing matched in FOLIO."
	case KindCapacity:
		return "Reduce the number of items or output fields and try again."
	case KindDataIntegrity:
		return "This is a gap in the catalog data. Ask your FOLIO administrator to fix the item records."
	}
	return "Please report this problem."
}

// statusError maps a non-success HTTP status to an Error. 400 is a request
// the client should never have built, so it is a configuration error rather
// than an authentication one.
func statusError(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status, Detail: serverMessage(body)}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuth
	case status == http.StatusConflict || status >= 500:
		e.Kind = KindTransient
	default:
		e.Kind = KindConfig
	}
	return e
}

// serverMessage pulls the human readable text out of a FOLIO error body,
// which is either {"errors":[{"message":...}]}, {"message":...} or plain text.
func serverMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var structured struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &structured); err == nil {
		if len(structured.Errors) > 0 && structured.Errors[0].Message != "" {
			return structured.Errors[0].Message
		}
		if structured.Message != "" {
			return structured.Message
		}
	}
	const maxLen = 300
	if len(trimmed) > maxLen {
		return trimmed[:maxLen] + "..."
	}
	return trimmed
}
