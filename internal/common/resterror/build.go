package resterror

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Transport classifies an I/O failure that produced no response.
func Transport(cause error) *Error {
	return &Error{
		Kind:  KindTransport,
		Cause: cause,
	}
}

// Protocol classifies a received failure response. When the body is a JSON
// object the structured server messages, error code, and description data are
// extracted from it.
func Protocol(status int, method, uri string, body []byte) *Error {
	e := &Error{
		Kind:          KindProtocol,
		Status:        status,
		RequestMethod: method,
		RequestURI:    uri,
		Body:          strings.TrimSpace(string(body)),
	}
	e.Messages, e.ErrorCode, e.DescriptionData = parseServerMessages(body)
	return e
}

// Unsupported classifies an HTTP 501 response.
func Unsupported(uri string, message string) *Error {
	return &Error{
		Kind:       KindUnsupported,
		Status:     501,
		RequestURI: uri,
		Reason:     message,
	}
}

// SessionInvalid classifies a rejected session token.
func SessionInvalid(reason string) *Error {
	return &Error{
		Kind:   KindValidation,
		Reason: reason,
		code:   "AUTH-SESSION-INVALID",
	}
}

// Contract classifies a successful response that violates the expected JSON
// contract. This is a programming error, not a transient condition.
func Contract(reason string) *Error {
	return &Error{
		Kind:   KindValidation,
		Reason: reason,
		code:   "REST-API-CONTRACT",
	}
}

// parseServerMessages extracts the optional structured error fields from a
// server error body: errorCode (string), errorDescriptionData (string-keyed
// map), and the first present of messages/message (array of values coerced
// to strings, nulls skipped).
func parseServerMessages(body []byte) ([]string, string, map[string]any) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil, "", nil
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, "", nil
	}

	var errorCode string
	if v := root.Get("errorCode"); v.Exists() && v.Type == gjson.String {
		errorCode = v.String()
	}

	var desc map[string]any
	if v := root.Get("errorDescriptionData"); v.IsObject() {
		if m, ok := v.Value().(map[string]any); ok {
			desc = m
		}
	}

	list := root.Get("messages")
	if !list.Exists() {
		list = root.Get("message")
	}
	var messages []string
	if list.IsArray() {
		for _, item := range list.Array() {
			if item.Type == gjson.Null {
				continue
			}
			messages = append(messages, item.String())
		}
	} else if list.Exists() {
		log.Debug().Str("body", string(body)).Msg("server messages field is not an array, ignoring")
	}

	return messages, errorCode, desc
}
