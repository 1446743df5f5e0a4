// Package resterror defines the closed error taxonomy for the REST client
// layer. Every failure is classified into one of four kinds (transport,
// protocol, unsupported operation, or validation), and each classified error
// produces exactly one user-facing friendly message and one stable
// classification code suitable for localized lookup.
package resterror

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies the failure class of an Error.
type Kind int

const (
	// KindTransport is a network or I/O failure before any response was
	// obtained. Always eligible for retry.
	KindTransport Kind = iota
	// KindProtocol is a received response signaling failure.
	KindProtocol
	// KindUnsupported is an HTTP 501 response. Never retried.
	KindUnsupported
	// KindValidation covers a rejected session token and responses that
	// violate the JSON contract. Never retried.
	KindValidation
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindUnsupported:
		return "unsupported"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the classified failure of a REST operation. The Kind field
// selects which of the remaining fields are meaningful.
type Error struct {
	Kind Kind

	// Cause is the underlying I/O error for KindTransport.
	Cause error

	// Protocol fields.
	Status          int
	RequestURI      string
	RequestMethod   string
	Body            string
	Messages        []string
	ErrorCode       string
	DescriptionData map[string]any

	// Reason carries the unsupported-operation body or the validation
	// failure description.
	Reason string

	code string
}

// Error implements the error interface. The message is the friendly message
// so an unhandled error still reads sensibly in logs.
func (e *Error) Error() string {
	return e.FriendlyMessage()
}

// Unwrap returns the transport cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the stable classification code for the error.
func (e *Error) Code() string {
	switch e.Kind {
	case KindTransport:
		return "REST-API-IO"
	case KindProtocol:
		return fmt.Sprintf("REST-API-STATUS-%d", e.Status)
	case KindUnsupported:
		return "REST-API-STATUS-501"
	case KindValidation:
		if e.code != "" {
			return e.code
		}
		return "AUTH-SESSION-INVALID"
	default:
		return "REST-API-UNKNOWN"
	}
}

// Retryable reports whether the failure is worth re-attempting. Transport
// failures always are. Protocol failures are not when the status indicates a
// client-caused problem; everything else (5xx, unclassified 4xx) is.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindUnsupported, KindValidation:
		return false
	case KindProtocol:
		if e.Status >= 300 && e.Status < 400 {
			return false
		}
		switch e.Status {
		case http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusMethodNotAllowed,
			http.StatusNotAcceptable,
			http.StatusUnsupportedMediaType:
			return false
		}
		return true
	default:
		return false
	}
}

// FriendlyMessage renders the single user-facing description of the failure.
// This is the one exhaustive match point over the taxonomy: adding a Kind
// without extending this switch is a compile-visible gap.
func (e *Error) FriendlyMessage() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf(
			"Unexpected problem when contacting the server REST API. Please make sure that your internet connection is working correctly. The service might also be down at the moment, please try again later. Problem: [%T]: %v",
			e.Cause, e.Cause)
	case KindProtocol:
		return e.protocolMessage()
	case KindUnsupported:
		return fmt.Sprintf("Unsupported request to %s. Message: %s", e.RequestURI, e.Reason)
	case KindValidation:
		return e.Reason
	default:
		return fmt.Sprintf("Unknown error (kind %d)", e.Kind)
	}
}

func (e *Error) protocolMessage() string {
	var message string
	switch e.Status {
	case http.StatusBadRequest,
		http.StatusMethodNotAllowed,
		http.StatusNotAcceptable,
		http.StatusUnsupportedMediaType:
		message = "Could not process the server request correctly. The request is badly formatted, please make sure that all your data and files are formatted correctly. If they are, please report a bug"
	case http.StatusConflict:
		message = "Could not process the server request correctly. The server response code indicates some conflict or incompatible action was detected"
	case http.StatusUnauthorized, http.StatusForbidden:
		message = "Could not process the server request correctly. Please make sure that you have the right permissions and that you have logged in"
	case http.StatusNotFound:
		message = "Could not process the server request correctly. The request addressed an element that does not exist, please make sure the identifier is correct and the element has not been deleted"
	case http.StatusServiceUnavailable:
		message = "Could not process the server request correctly. The service is down, please try again later"
	default:
		if e.Status >= 500 {
			message = fmt.Sprintf("Could not process the server request correctly. An unknown problem happened, this is probably a bug in the server or the API is not available, please report it. HTTP Status: %d", e.Status)
		} else {
			message = "Could not process the server request correctly. Please make sure that you have the right permissions and that you have logged in, also check your network is working correctly, no problems with proxies, etc"
		}
	}

	if len(e.Messages) > 0 {
		message += fmt.Sprintf(". HTTP Status code = %d. The server indicated the following cause of the problem: %s",
			e.Status, strings.Join(e.Messages, "; "))
	} else {
		message += fmt.Sprintf(". HTTP Status code = %d", e.Status)
		if e.Body != "" {
			message += ". Body = " + e.Body
		}
	}

	if e.ErrorCode != "" {
		message += ". Error code = " + e.ErrorCode
	}

	return message
}

// Source describes where the failure originated, for diagnostics.
func (e *Error) Source() string {
	if e.Kind != KindProtocol {
		return ""
	}
	s := fmt.Sprintf("%s [%s]", e.RequestURI, e.RequestMethod)
	if e.Body != "" {
		s += ": " + e.Body
	}
	return s
}
