package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apierr "github.com/lorafab/lorafab/pkg/api/types/errors"
)

// MessageFor maps an HTTP status code range to the summary used when a
// call fails in that range.
type MessageFor map[StatusCodeRange]string

// unmarshalJsonResponse decodes a 2xx JSON response into v. Any other
// response is turned into an error wrapping the classification sentinel
// for its status code, with the provider's message attached when the
// body carries one.
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	if err := classify(resp, messageFor); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf(
			"%w: unexpected response shape (status code = %d): %s",
			ErrPermanent, resp.StatusCode, err,
		)
	}
	return nil
}

// classify maps a response status to nil (2xx) or a sentinel-wrapped
// error:
//
//   - 401, 403            -> ErrAuthentication
//   - 408, 429, 5xx       -> ErrTransient
//   - other non-2xx       -> ErrPermanent
func classify(resp *http.Response, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	if scr == Status2xx {
		return nil
	}

	summary, ok := messageFor[scr]
	if !ok {
		summary = scr.String()
	}
	detail := readErrorDetail(resp.Body)
	if detail != "" {
		summary = summary + ": " + detail
	}

	var category error
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		category = ErrAuthentication
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		category = ErrTransient
	default:
		if scr == Status5xx {
			category = ErrTransient
		} else {
			category = ErrPermanent
		}
	}

	return fmt.Errorf("%w: %s (status code = %d)", category, summary, resp.StatusCode)
}

func readErrorDetail(body io.Reader) string {
	buf, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return ""
	}
	if em, ok := apierr.Parse(buf); ok {
		return em.String()
	}
	return string(buf)
}
