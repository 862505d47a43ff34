package tpx3

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

func TestCloseOutputJoinsCloseError(t *testing.T) {
	t.Parallel()

	errFlush := errors.New("disk full on close")

	var err error
	closeOutput(failingCloser{err: errFlush}, "out.png", &err)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "out.png", ioErr.Filename)
	assert.ErrorIs(t, err, errFlush)

	errWrite := errors.New("short write")
	err = errWrite
	closeOutput(failingCloser{err: errFlush}, "out.csv", &err)
	assert.ErrorIs(t, err, errWrite)
	assert.ErrorIs(t, err, errFlush)

	err = nil
	closeOutput(failingCloser{}, "out.html", &err)
	assert.NoError(t, err)
}
