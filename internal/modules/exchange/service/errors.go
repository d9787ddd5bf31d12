package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind — класс ошибки шлюза.
type Kind int

const (
	TransportFailure Kind = iota + 1
	AuthFailure
	HTTPStatusFailure
	DecodeFailure
	RateLimited
)

func (k Kind) String() string {
	switch k {
	case TransportFailure:
		return "transport"
	case AuthFailure:
		return "auth"
	case HTTPStatusFailure:
		return "http_status"
	case DecodeFailure:
		return "decode"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// GatewayError — типизированный результат неудачного вызова. Шлюз сам не ретраит.
type GatewayError struct {
	Kind Kind
	Op   string
	Code int
	Body string
	Err  error
}

func (e *GatewayError) Error() string {
	switch e.Kind {
	case HTTPStatusFailure, AuthFailure:
		if e.Code != 0 {
			return fmt.Sprintf("%s: %s failure: http %d: %s", e.Op, e.Kind, e.Code, truncate(e.Body, 256))
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s failure", e.Op, e.Kind)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsKind — err (или обёрнутая) является GatewayError нужного класса.
func IsKind(err error, kind Kind) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}

// IsRateLimited — 429 от биржи или отказ локального лимитера.
func IsRateLimited(err error) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	return ge.Kind == RateLimited || (ge.Kind == HTTPStatusFailure && ge.Code == http.StatusTooManyRequests)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
