package rawxfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeTokens(t *testing.T) {
	assert.Equal(t, "OK", OUTCOME_OK.Token())
	assert.Equal(t, "E0", OUTCOME_SIZE_MISMATCH.Token())
	assert.Equal(t, "E1", OUTCOME_CROSS_CHECK_MISMATCH.Token())
	assert.Equal(t, "E2", OUTCOME_DIGEST_MISMATCH.Token())
	assert.Equal(t, "E?", Outcome(99).Token())
}

func TestRcvVerifyOrder(t *testing.T) {
	var data = []byte("hello")
	var good = digest_bytes(data)
	var bad = digest_bytes([]byte("jello"))

	var want = Expectation{Declared: 5, CrossSize: 5, HaveDigest: true, Digest: good.String()}

	assert.Equal(t, OUTCOME_OK, rcv_verify(5, good, want))
	assert.Equal(t, OUTCOME_DIGEST_MISMATCH, rcv_verify(5, bad, want))

	// Size against header wins over everything.
	var short = want
	short.CrossSize = 3
	assert.Equal(t, OUTCOME_SIZE_MISMATCH, rcv_verify(4, bad, short))

	// Cross check beats digest.
	assert.Equal(t, OUTCOME_CROSS_CHECK_MISMATCH, rcv_verify(5, bad, short))
}

func TestRcvVerifyOptionalChecks(t *testing.T) {
	var anything = digest_bytes([]byte("x"))

	assert.Equal(t, OUTCOME_OK, rcv_verify(7, anything, Expectation{Declared: 7, CrossSize: -1}))
	assert.Equal(t, OUTCOME_SIZE_MISMATCH, rcv_verify(6, anything, Expectation{Declared: 7, CrossSize: -1}))
}

func TestRcvBytesStopsAtWant(t *testing.T) {
	var l, feed, _ = pipeLink(t)

	_, err := feed.Write([]byte("abcdefXYZ"))
	require.NoError(t, err)

	var got bytes.Buffer
	var n, rcvErr = rcv_bytes(context.Background(), l, &got, 6, testTimeout, testTimeout)
	require.NoError(t, rcvErr)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "abcdef", got.String())

	// The rest is still there for whoever reads next.
	var rest, hdrErr = rcv_header(context.Background(), l, 3, testTimeout, testTimeout)
	require.NoError(t, hdrErr)
	assert.Equal(t, "XYZ", string(rest))
}

func TestRcvBytesZero(t *testing.T) {
	var l, _, _ = pipeLink(t)

	var n, err = rcv_bytes(context.Background(), l, io.Discard, 0, testTimeout, testTimeout)

	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestRcvBytesShortOnSilence(t *testing.T) {
	var l, feed, _ = pipeLink(t)

	_, err := feed.Write([]byte("abc"))
	require.NoError(t, err)

	var got bytes.Buffer
	var n, rcvErr = rcv_bytes(context.Background(), l, &got, 5, testTimeout, testTimeout)

	assert.ErrorIs(t, rcvErr, ErrLinkTimeout)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "abc", got.String())
}

func TestRcvBytesShortOnHangup(t *testing.T) {
	var l, feed, _ = pipeLink(t)

	_, err := feed.Write([]byte("ab"))
	require.NoError(t, err)
	feed.Close()

	var n, rcvErr = rcv_bytes(context.Background(), l, io.Discard, 5, testTimeout, testTimeout)

	assert.ErrorIs(t, rcvErr, io.EOF)
	assert.Equal(t, int64(2), n)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("disk full")
}

func TestRcvBytesWriteTrouble(t *testing.T) {
	var l, feed, _ = pipeLink(t)

	_, err := feed.Write([]byte("ab"))
	require.NoError(t, err)

	var _, rcvErr = rcv_bytes(context.Background(), l, failingWriter{}, 2, testTimeout, testTimeout)

	assert.ErrorContains(t, rcvErr, "disk full")
}

func TestRcvHeaderPartial(t *testing.T) {
	var l, feed, _ = pipeLink(t)

	_, err := feed.Write([]byte{0, 0})
	require.NoError(t, err)

	var hdr, hdrErr = rcv_header(context.Background(), l, SIZE_HEADER_LEN, testTimeout, testTimeout)

	assert.ErrorIs(t, hdrErr, ErrLinkTimeout)
	assert.Len(t, hdr, 2)
	assert.Equal(t, "timeout", link_trouble(hdrErr))
}

func TestLinkTrouble(t *testing.T) {
	assert.Equal(t, "timeout", link_trouble(fmt.Errorf("x: %w", ErrLinkTimeout)))
	assert.Equal(t, "closed", link_trouble(io.EOF))
	assert.Equal(t, "interrupted", link_trouble(context.Canceled))
	assert.Equal(t, "boom", link_trouble(fmt.Errorf("boom")))
}

func TestRcvSingleArgs(t *testing.T) {
	var a, err = rcv_single_args([]string{"out.bin"})
	require.NoError(t, err)
	assert.Equal(t, "out.bin", a.path)
	assert.False(t, a.check)

	a, err = rcv_single_args([]string{"out.bin", "1234", "900150983cd24fb0d6963f7d28e17f72"})
	require.NoError(t, err)
	assert.True(t, a.check)
	assert.Equal(t, int64(1234), a.size)

	for _, bad := range [][]string{
		{},
		{""},
		{"out.bin", "1234"},
		{"out.bin", "lots", "900150983cd24fb0d6963f7d28e17f72"},
		{"out.bin", "-1", "900150983cd24fb0d6963f7d28e17f72"},
		{"out.bin", "1234", "nothex"},
		{"a", "b", "c", "d"},
	} {
		_, err = rcv_single_args(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestRcvBatchArgs(t *testing.T) {
	var n, err = rcv_batch_args([]string{"3"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, bad := range [][]string{{}, {"0"}, {"-2"}, {"three"}, {"1", "2"}} {
		_, err = rcv_batch_args(bad)
		assert.Error(t, err, "%q", bad)
	}
}
