package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid argument"), false},
		{"explicit", NewTransientError(errors.New("x"), 503), true},
		{"wrapped explicit", fmt.Errorf("places: %w", NewTransientError(errors.New("x"), 429)), true},
		{"conn reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"conn refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"tls message", errors.New("net/http: TLS handshake timeout"), true},
		{"eof message", errors.New("Post: unexpected EOF"), true},
		{"unknown host", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 501} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestClassifyStatus(t *testing.T) {
	base := errors.New("status")
	assert.True(t, IsTransient(ClassifyStatus(base, http.StatusTooManyRequests)))
	assert.False(t, IsTransient(ClassifyStatus(base, http.StatusBadRequest)))
	assert.Nil(t, ClassifyStatus(nil, http.StatusServiceUnavailable))

	var te *TransientError
	assert.True(t, errors.As(ClassifyStatus(base, 503), &te))
	assert.Equal(t, 503, te.StatusCode)
	assert.ErrorIs(t, te, base)
}
