package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	gh "github.com/google/go-github/v72/github"
)

type Category string

const (
	CategoryNotFound     Category = "not_found"
	CategoryUnauthorized Category = "unauthorized"
	CategoryForbidden    Category = "forbidden"
	CategoryRateLimited  Category = "rate_limited"
	CategoryValidation   Category = "validation"
	CategoryServer       Category = "server"
	CategoryNetwork      Category = "network"
	CategoryUnknown      Category = "unknown"
)

// ErrNotFound matches any RemoteError whose provider status was 404.
var ErrNotFound = errors.New("github: not found")

// RemoteError carries the provider status and a coarse category for a failed
// call.
type RemoteError struct {
	Op       string
	Status   int
	Category Category
	Message  string
	Err      error
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("github %s: %s (status=%d): %v", e.Op, e.Category, e.Status, e.Err)
	}
	return fmt.Sprintf("github %s: %s: %v", e.Op, e.Category, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.Category == CategoryNotFound
}

// Temporary reports whether retrying the same call later could succeed.
func (e *RemoteError) Temporary() bool {
	switch e.Category {
	case CategoryRateLimited, CategoryServer, CategoryNetwork:
		return true
	}
	return false
}

// CategoryOf returns the category of a RemoteError anywhere in err's chain.
func CategoryOf(err error) Category {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Category
	}
	return CategoryUnknown
}

func classify(op string, resp *gh.Response, err error) error {
	if err == nil {
		return nil
	}
	re := &RemoteError{Op: op, Err: err, Category: CategoryUnknown}
	if resp != nil && resp.Response != nil {
		re.Status = resp.StatusCode
	}

	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	var respErr *gh.ErrorResponse
	var netErr net.Error
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		re.Category = CategoryRateLimited
		return re
	case errors.As(err, &respErr):
		if respErr.Response != nil {
			re.Status = respErr.Response.StatusCode
		}
		re.Message = respErr.Message
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.As(err, &netErr):
		re.Category = CategoryNetwork
		return re
	}

	switch {
	case re.Status == http.StatusNotFound:
		re.Category = CategoryNotFound
	case re.Status == http.StatusUnauthorized:
		re.Category = CategoryUnauthorized
	case re.Status == http.StatusForbidden:
		re.Category = CategoryForbidden
	case re.Status == http.StatusUnprocessableEntity:
		re.Category = CategoryValidation
	case re.Status == http.StatusTooManyRequests:
		re.Category = CategoryRateLimited
	case re.Status >= 500:
		re.Category = CategoryServer
	}
	return re
}
