// Package apperr は各ドメインパッケージ共通のエラーモデル。
// 以前はパッケージごとに同型の APIError を持っていたが、コード追加のたびに
// 定義がずれるので一本化した。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeInternal        Code = "INTERNAL"

	// 貸出まわりの業務ルール違反
	CodeQuotaExceeded        Code = "QUOTA_EXCEEDED"
	CodeItemUnavailable      Code = "ITEM_UNAVAILABLE"
	CodeInvalidPeriod        Code = "INVALID_PERIOD"
	CodeAlreadyReturned      Code = "ALREADY_RETURNED"
	CodeExtensionAlreadyUsed Code = "EXTENSION_ALREADY_USED"

	// レビューまわり
	CodeRentalNotReturned Code = "RENTAL_NOT_RETURNED"
	CodeDuplicateReview   Code = "DUPLICATE_REVIEW"
	CodeInvalidRating     Code = "INVALID_RATING"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func New(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }

func Invalid(msg string) *Error      { return &Error{Code: CodeInvalidArgument, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Code: CodeNotFound, Message: msg} }
func Conflict(msg string) *Error     { return &Error{Code: CodeConflict, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Code: CodeUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Code: CodeForbidden, Message: msg} }
func Internal(msg string) *Error     { return &Error{Code: CodeInternal, Message: msg} }

// CodeOf: *Error でなければ INTERNAL 扱い
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func ToHTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Code {
	case CodeInvalidArgument, CodeInvalidPeriod, CodeInvalidRating:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeQuotaExceeded, CodeItemUnavailable,
		CodeAlreadyReturned, CodeExtensionAlreadyUsed,
		CodeRentalNotReturned, CodeDuplicateReview:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Body: ハンドラがそのまま c.JSON に渡すレスポンスボディ
func Body(code Code, msg string) any {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func BodyFromErr(err error) any {
	var ae *Error
	if errors.As(err, &ae) {
		return Body(ae.Code, ae.Message)
	}
	return Body(CodeInternal, err.Error())
}
