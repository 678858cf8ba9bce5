// Package httpresponse builds the JSON envelopes the game client expects.
//
// Every response body has the shape
//
//	{"err": <code>, "errmsg": <string or null>, "data": <payload>}
//
// where err is a BackendErrorCode and errmsg is null on success.
package httpresponse

import (
	"github.com/sptgo/gameserver/internal/jsonutil"
)

// Body is the envelope wrapping every JSON payload.
type Body[T any] struct {
	Err    BackendErrorCode `json:"err"`
	ErrMsg *string          `json:"errmsg"`
	Data   T                `json:"data"`
}

// GetBody serializes data into an envelope. An empty message is sent as null.
func GetBody[T any](data T, code BackendErrorCode, message string) string {
	body := Body[T]{Err: code, Data: data}
	if message != "" {
		body.ErrMsg = &message
	}
	return jsonutil.Serialize(body)
}

// NoBody serializes data without an envelope.
func NoBody(data any) string {
	return jsonutil.Serialize(data)
}

// NullResponse is a successful envelope with null data.
func NullResponse() string {
	return GetBody[any](nil, None, "")
}

// EmptyArrayResponse is a successful envelope with an empty array.
func EmptyArrayResponse() string {
	return GetBody([]any{}, None, "")
}

// NotFound is the body sent when no route produced output for path.
func NotFound(path string) string {
	return GetBody[any](nil, HTTPNotFound, "UNHANDLED RESPONSE: "+path)
}
