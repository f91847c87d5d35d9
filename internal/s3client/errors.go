package s3client

import (
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Kind classifies a failed remote call. The set is closed so callers can
// assert on the cause of a failure instead of matching error strings.
type Kind int

const (
	// KindNone means no error.
	KindNone Kind = iota
	// KindNotFound is a missing object or bucket.
	KindNotFound
	// KindTransient covers throttling, timeouts and 5xx responses.
	KindTransient
	// KindPermanent covers other service errors (access denied, bad
	// request) that will not succeed on a later attempt.
	KindPermanent
	// KindUnexpected is anything that is not a service response.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unexpected"
	}
}

// IsNotFound reports whether err is a missing-object response. HeadObject
// surfaces these as *types.NotFound, GetObject as *types.NoSuchKey.
func IsNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}

// Classify maps an error from a remote call to its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if IsNotFound(err) {
		return KindNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "ServiceUnavailable", "RequestTimeout", "RequestTimeoutException", "InternalError":
			return KindTransient
		}
		if httpErr, ok := apiErr.(interface{ HTTPStatusCode() int }); ok {
			if code := httpErr.HTTPStatusCode(); code >= 500 && code < 600 {
				return KindTransient
			}
		}
		return KindPermanent
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindTransient
	}
	return KindUnexpected
}

// Code extracts the remote service's error code, or the error text when the
// failure never reached the service.
func Code(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
