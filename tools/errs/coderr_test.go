package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeError_WrapMsgKeepsIdentity(t *testing.T) {
	req := require.New(t)

	err := ErrRecipientNotFound.WrapMsg("lookup failed", "receiverId", "u-2")

	req.True(errors.Is(err, ErrRecipientNotFound))
	req.False(errors.Is(err, ErrUserNotFound))
	req.Equal(http.StatusNotFound, HTTPStatus(err))
	req.Contains(err.Error(), "receiverId=u-2")
	// the sentinel itself is untouched
	req.Empty(ErrRecipientNotFound.Detail)
}

func TestHTTPStatus_WrappedInfrastructureError(t *testing.T) {
	req := require.New(t)

	cause := errors.New("connection refused")
	err := Wrap(cause, "persist message")

	req.True(errors.Is(err, cause))
	req.Equal(http.StatusInternalServerError, HTTPStatus(err))
	req.Equal(ServerInternalError, As(err).Code)
}

func TestToString_OddKeyValues(t *testing.T) {
	req := require.New(t)

	req.Equal("msg, a=1, b=MISSING", toString("msg", []any{"a", 1, "b"}))
	req.Equal("msg", toString("msg", nil))
}
