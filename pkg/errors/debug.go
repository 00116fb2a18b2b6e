package errors

import (
	"errors"
	"fmt"
)

// ErrorDump flattens an error chain into log fields.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	HTTPStatus int    `json:"http_status"`
	Retryable  bool   `json:"retryable"`
	// Root is the innermost cause, usually a store or codec sentinel.
	Root  string   `json:"root,omitempty"`
	Chain []string `json:"chain,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	code := CodeOf(err)
	meta := MetadataFor(code)
	d := ErrorDump{
		TopMessage: err.Error(),
		Code:       code,
		HTTPStatus: meta.HTTPStatus,
		Retryable:  meta.Retryable,
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
		d.Root = e.Error()
	}
	return d
}
