package courseapi

import (
	"errors"
	"fmt"
)

// HTTPError is any non-2xx answer from the content API other than 429.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("content api http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// QuotaError is the 429 answer to a generation call: the monthly allowance is used up.
type QuotaError struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	IsPremium bool `json:"isPremium"`
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("generation quota reached (%d/%d)", e.Used, e.Limit)
}

// ErrInvalidPayload marks a 2xx response whose body lacks the required structure.
var ErrInvalidPayload = errors.New("invalid generated structure")

func AsQuota(err error) (*QuotaError, bool) {
	var q *QuotaError
	if errors.As(err, &q) && q != nil {
		return q, true
	}
	return nil, false
}
