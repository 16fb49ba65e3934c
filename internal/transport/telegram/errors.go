package telegram

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mymmrac/telego/telegoapi"

	"relay/internal/transport"
)

// classify translates a Bot API failure into the transport error taxonomy.
// Errors it does not recognize are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		desc := strings.ToLower(apiErr.Description)
		switch {
		case apiErr.ErrorCode == http.StatusUnauthorized,
			apiErr.ErrorCode == http.StatusConflict:
			return transport.Classified(transport.ErrSessionInvalidated, err)
		case apiErr.ErrorCode == http.StatusTooManyRequests:
			retryAfter := time.Second
			if apiErr.Parameters != nil && apiErr.Parameters.RetryAfter > 0 {
				retryAfter = time.Duration(apiErr.Parameters.RetryAfter) * time.Second
			}
			return &transport.FloodWaitError{RetryAfter: retryAfter, Err: err}
		case strings.Contains(desc, "protected content"),
			strings.Contains(desc, "can't be copied"),
			strings.Contains(desc, "can't be forwarded"):
			return transport.Classified(transport.ErrProtectedContent, err)
		}
		return err
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return transport.Classified(transport.ErrProtocolSkew, err)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "decode") || strings.Contains(msg, "unmarshal") {
		return transport.Classified(transport.ErrProtocolSkew, err)
	}

	return err
}

// isPermanent reports errors that a retry of the same call cannot fix.
func isPermanent(err error) bool {
	return transport.IsSessionInvalidated(err) || transport.IsProtocolSkew(err)
}
