package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidatorCollectsFailures(t *testing.T) {
	v := NewValidator().
		Field("document", []byte{}, Required).
		Field("mime_type", "application/zip", Required, SupportedMime).
		Field("subscriber_key", "ok", MaxLength(128))

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 2)
	assert.True(t, errors.Is(v.Err(), ErrValidation))
}

func TestSupportedMime(t *testing.T) {
	for _, mt := range []string{"application/pdf", "text/plain; charset=utf-8", "image/png", "IMAGE/JPEG"} {
		assert.Nil(t, SupportedMime("mime_type", mt), mt)
	}
	assert.NotNil(t, SupportedMime("mime_type", "application/msword"))
}

func TestToStatus(t *testing.T) {
	st, _ := status.FromError(ToStatus(NewValidator().Field("x", "", Required).Err()))
	assert.Equal(t, codes.InvalidArgument, st.Code())

	st, _ = status.FromError(ToStatus(WrapError(ErrNotFound, "budget job")))
	assert.Equal(t, codes.NotFound, st.Code())

	st, _ = status.FromError(ToStatus(errors.New("boom")))
	assert.Equal(t, codes.Internal, st.Code())

	assert.Nil(t, ToStatus(nil))
}
