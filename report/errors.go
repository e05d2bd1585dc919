package report

import (
	"errors"
	"fmt"

	"xdao.co/sigpolicy/fetch"
	"xdao.co/sigpolicy/policy"
	"xdao.co/sigpolicy/storage"
	"xdao.co/sigpolicy/validate"
)

type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrDecode         ErrorCode = "DECODE"
	ErrInvalidCID     ErrorCode = "INVALID_CID"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrCIDMismatch    ErrorCode = "CID_MISMATCH"
	ErrFetch          ErrorCode = "FETCH"
	ErrStrict         ErrorCode = "STRICT"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code" cbor:"code"`
	RuleID  string    `json:"ruleId,omitempty" cbor:"ruleId,omitempty"`
	Message string    `json:"message" cbor:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// FromError maps any error from the sigpolicy packages to a CodedError.
func FromError(err error) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}

	out := &CodedError{Code: ErrInternal, Message: err.Error(), RuleID: policy.RuleID(err)}
	switch {
	case errors.Is(err, validate.ErrStrict):
		out.Code = ErrStrict
	case policy.IsKind(err, policy.KindInvalidArgument):
		out.Code = ErrInvalidRequest
	case policy.IsKind(err, policy.KindDecode):
		out.Code = ErrDecode
	case errors.Is(err, storage.ErrNotFound):
		out.Code = ErrNotFound
	case errors.Is(err, storage.ErrCIDMismatch):
		out.Code = ErrCIDMismatch
	case errors.Is(err, storage.ErrInvalidCID):
		out.Code = ErrInvalidCID
	case errors.Is(err, fetch.ErrStatus), errors.Is(err, fetch.ErrTooLarge), errors.Is(err, fetch.ErrUnsupportedScheme):
		out.Code = ErrFetch
	}
	return out
}
