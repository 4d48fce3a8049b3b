package google

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// ErrRateLimited indicates the Gmail API throttled the request.
var ErrRateLimited = errors.New("google: rate limited")

// rateLimitReasons are the 403 reasons Google uses for quota errors.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// StatusCode returns the HTTP status of a Google API error, or 0.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized reports a rejected credential.
func IsUnauthorized(err error) bool {
	if StatusCode(err) == http.StatusUnauthorized {
		return true
	}
	var rerr *oauth2.RetrieveError
	return errors.As(err, &rerr)
}

// IsForbidden reports a 403 that is not a quota error.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden && !IsRateLimited(err)
}

// IsRateLimited reports a 429, or a 403 carrying a quota reason.
func IsRateLimited(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}

// RetryAfter returns the Retry-After hint of a throttled response, or 0.
func RetryAfter(err error) time.Duration {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}
	secs, convErr := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if convErr != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// IsHistoryIDExpired reports that history.list can no longer serve the start id.
// Gmail answers 404 for ids older than its retention window and 400 for ids it
// does not recognise.
func IsHistoryIDExpired(err error) bool {
	switch StatusCode(err) {
	case http.StatusNotFound:
		return true
	case http.StatusBadRequest:
		return strings.Contains(strings.ToLower(err.Error()), "starthistoryid")
	}
	return false
}

// WrapError maps Google API failures onto domain errors.
func WrapError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsRateLimited(err):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case IsUnauthorized(err), IsForbidden(err):
		return fmt.Errorf("%w: %w", domain.ErrAuthInvalid, err)
	}
	return err
}
