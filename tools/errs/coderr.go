package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// CodeError is the error shape shared by the HTTP API, the socket reply frames and the logs.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
	status int
}

func NewCodeError(code int, msg string, status int) *CodeError {
	return &CodeError{Code: code, Msg: msg, status: status}
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{
		Code:   e.Code,
		Msg:    e.Msg,
		Detail: e.Detail,
		status: e.status,
	}
}

// WithDetail returns a copy carrying an extra detail fragment.
func (e *CodeError) WithDetail(detail string) *CodeError {
	c := e.clone()
	if c.Detail == "" {
		c.Detail = detail
	} else {
		c.Detail += ", " + detail
	}
	return c
}

// WrapMsg returns a copy with msg and key/value pairs appended to the detail.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	if msg == "" && len(kv) == 0 {
		return e.clone()
	}
	return e.WithDetail(toString(msg, kv))
}

// Is matches any CodeError with the same code, so copies made by WrapMsg still match
// the predefined sentinel.
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

func (e *CodeError) Status() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// Wrap annotates an infrastructure error with a message, keeping the cause reachable
// through errors.Is / errors.As.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, msg)
}

// WrapMsg annotates err with msg and key/value pairs.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, toString(msg, kv))
}

// New builds a plain error annotated with key/value pairs.
func New(msg string, kv ...any) error {
	return pkgerrors.New(toString(msg, kv))
}

// As extracts the CodeError carried by err, falling back to ErrInternal.
func As(err error) *CodeError {
	var c *CodeError
	if errors.As(err, &c) {
		return c
	}
	return ErrInternal.WithDetail(err.Error())
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	var c *CodeError
	if errors.As(err, &c) {
		return c.Status()
	}
	return http.StatusInternalServerError
}

func toString(msg string, kv []any) string {
	if len(kv) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprint(kv[i]))
		sb.WriteString("=")
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprint(kv[i+1]))
		} else {
			sb.WriteString("MISSING")
		}
	}
	return sb.String()
}
