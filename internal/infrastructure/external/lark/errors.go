package lark

import (
	"errors"
	"fmt"
)

// codeRateLimited is the open platform's request frequency limit
const codeRateLimited = 99991400

// APIError is a non-zero code returned by the open platform
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: code=%d, msg=%s", e.Code, e.Msg)
}

func apiError(code int, msg string) error {
	return &APIError{Code: code, Msg: msg}
}

// isRetryableAPIError reports whether err is an API rejection worth retrying.
// Anything else the server answered with a code is final.
func isRetryableAPIError(err error) (retryable, isAPI bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false, false
	}
	return apiErr.Code == codeRateLimited, true
}
