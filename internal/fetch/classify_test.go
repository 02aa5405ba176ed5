package fetch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Statuses(t *testing.T) {
	cases := []struct {
		status int
		want   Class
	}{
		{200, ClassOK},
		{206, ClassOK},
		{404, ClassNotFound},
		{418, ClassBanned},
		{403, ClassRateLimited},
		{429, ClassRateLimited},
		{503, ClassRateLimited},
		{500, ClassTransport},
		{302, ClassTransport},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.status, nil), "status %d", tc.status)
	}
}

func TestClassify_DisguisedRateLimiting(t *testing.T) {
	// Connection-layer errors that in practice mean throttling.
	for _, msg := range []string{
		"remote error: tls: handshake failure",
		"unexpected EOF",
		"read: connection reset by peer",
		"ssl protocol error",
	} {
		assert.Equal(t, ClassRateLimited, Classify(0, errors.New(msg)), msg)
	}
}

func TestClassify_GenericTransport(t *testing.T) {
	assert.Equal(t, ClassTransport, Classify(0, errors.New("no such host")))
	assert.Equal(t, ClassTransport, Classify(0, errors.New("request timed out")))
}

func TestClassify_ErrTakesPrecedence(t *testing.T) {
	assert.Equal(t, ClassTransport, Classify(200, errors.New("no such host")))
}
