package folio

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusBadRequest, KindConfig},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusNotFound, KindConfig},
		{http.StatusUnprocessableEntity, KindConfig},
		{http.StatusConflict, KindTransient},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusBadGateway, KindTransient},
		{http.StatusServiceUnavailable, KindTransient},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := statusError("GET /inventory/items", tt.status, nil)
			assert.Equal(t, tt.want, err.Kind)
			assert.Equal(t, tt.status, err.Status)
		})
	}
}

func TestServerMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"errors array", `{"errors":[{"message":"Password does not match","code":"password.incorrect"}]}`, "Password does not match"},
		{"message field", `{"message":"Tenant not found"}`, "Tenant not found"},
		{"plain text", "  Invalid token\n", "Invalid token"},
		{"empty", "", ""},
		{"json without message", `{"code":"x"}`, `{"code":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serverMessage([]byte(tt.body)))
		})
	}
}

func TestServerMessageTruncatesLongText(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}
	msg := serverMessage(body)
	assert.Len(t, msg, 303)
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("lookup failed: %w", &Error{Kind: KindAuth, Op: "GET /inventory/items", Status: 401})

	assert.True(t, errors.Is(err, ErrAuth))
	assert.False(t, errors.Is(err, ErrTransient))
	assert.Equal(t, KindAuth, KindOf(err))
	assert.False(t, Recoverable(err))

	incomplete := &Error{Kind: KindTransient, Err: ErrIncompleteResults}
	assert.True(t, errors.Is(incomplete, ErrIncompleteResults))
	assert.True(t, errors.Is(incomplete, ErrTransient))
	assert.True(t, Recoverable(incomplete))

	assert.True(t, Recoverable(&Error{Kind: KindUnreachable}))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}

func TestErrorText(t *testing.T) {
	err := &Error{Kind: KindAuth, Op: "login", Status: 422, Detail: "Password does not match"}
	assert.Equal(t, "login: authentication error (HTTP 422): Password does not match", err.Error())
	assert.Equal(t, "AUTHENTICATION", err.Kind.Code())
}

func TestAdvice(t *testing.T) {
	assert.Contains(t, Advice(&Error{Kind: KindDataIntegrity}), "FOLIO administrator")
	assert.Contains(t, Advice(&Error{Kind: KindCapacity}), "Reduce")
	assert.Equal(t, "Operation cancelled.", Advice(ErrCancelled))
	assert.Equal(t, "Please report this problem.", Advice(errors.New("boom")))
}
