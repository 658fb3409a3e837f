package rawxfer

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawrcv(mode RcvMode, args ...string) func(stdin, stdout, stderr *os.File) int {
	return func(stdin, stdout, stderr *os.File) int {
		return rawrcv_main(append([]string{"/usr/local/bin/rawrcv"}, args...), mode, stdin, stdout, stderr)
	}
}

func rawsend(args ...string) func(stdin, stdout, stderr *os.File) int {
	return func(stdin, stdout, stderr *os.File) int {
		return rawsend_main(append([]string{"rawsend"}, args...), stdin, stdout, stderr)
	}
}

func TestMainsEndToEnd(t *testing.T) {
	quietDiag(t)
	var dir = isolateConfig(t)

	var data = []byte("dive 42 data\x00\xff\r\n")
	var in = filepath.Join(dir, "p0420042.tar")
	require.NoError(t, os.WriteFile(in, data, 0644))

	var status, wire, _ = runMain(t, "", rawsend(in))
	require.Equal(t, 0, status)
	require.Equal(t, TOKEN_READY, wire[:len(TOKEN_READY)])

	var out = filepath.Join(dir, "received.tar")
	var rcvStatus, replies, _ = runMain(t, wire[len(TOKEN_READY):],
		rawrcv(RCV_MODE_SINGLE, "-t", "300ms", out, strconv.Itoa(len(data)), digest_bytes(data).String()))

	assert.Equal(t, 0, rcvStatus)
	assert.Equal(t, TOKEN_READY+"OK", replies)

	var got, err = os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	var log, logErr = os.ReadFile(filepath.Join(dir, DEFAULT_COMM_LOG))
	require.NoError(t, logErr)
	assert.Contains(t, string(log), "Sending 16 bytes of "+in)
	assert.Contains(t, string(log), "Received 16 bytes of "+out)
}

func TestMainsBatchEndToEnd(t *testing.T) {
	quietDiag(t)
	var dir = isolateConfig(t)

	writeFiles(t, filepath.Join(dir, "out"), map[string]string{})
	writeFiles(t, dir, map[string]string{"sg0001.log": "log", "sg0001.eng": "eng"})

	// No receiver: the sender times out waiting for a verdict on the
	// first file, which is as far as a one way pipe gets.
	var status, wire, _ = runMain(t, "", rawsend("--batch", "-t", "100ms", filepath.Join(dir, "sg0001.log"), filepath.Join(dir, "sg0001.eng")))
	assert.Equal(t, 2, status)
	require.Equal(t, TOKEN_READY, wire[:len(TOKEN_READY)])

	testChdir(t, filepath.Join(dir, "out"))
	var rcvStatus, replies, _ = runMain(t, wire[len(TOKEN_READY):], rawrcv(RCV_MODE_BATCH, "-t", "300ms", "1"))

	assert.Equal(t, 0, rcvStatus)
	assert.Equal(t, TOKEN_READY+"OK", replies)

	var got, err = os.ReadFile("sg0001.log")
	require.NoError(t, err)
	assert.Equal(t, "log", string(got))
	assert.NoFileExists(t, "sg0001.eng", "never sent")
}

func TestRawRcvMainRefuses(t *testing.T) {
	quietDiag(t)
	isolateConfig(t)

	var cases = map[string]func(stdin, stdout, stderr *os.File) int{
		"no file":        rawrcv(RCV_MODE_SINGLE),
		"unknown flag":   rawrcv(RCV_MODE_SINGLE, "--bogus", "x"),
		"bad timeout":    rawrcv(RCV_MODE_SINGLE, "-t", "0s", "x"),
		"batch no count": rawrcv(RCV_MODE_BATCH),
		"batch bad N":    rawrcv(RCV_MODE_BATCH, "lots"),
		"flag batch":     rawrcv(RCV_MODE_SINGLE, "--batch", "0"),
		"missing config": rawrcv(RCV_MODE_SINGLE, "-c", "/nonexistent/rawxfer.yaml", "x"),
	}

	for name, main := range cases {
		var status, stdout, _ = runMain(t, "", main)

		assert.Equal(t, 1, status, name)
		assert.Equal(t, TOKEN_NO, stdout, name)
	}
}

func TestRawSendMainRefuses(t *testing.T) {
	quietDiag(t)
	var dir = isolateConfig(t)

	var cases = map[string]func(stdin, stdout, stderr *os.File) int{
		"no file":      rawsend(),
		"two files":    rawsend("a", "b"),
		"missing file": rawsend(filepath.Join(dir, "missing")),
		"batch none":   rawsend("--batch"),
		"unknown flag": rawsend("--bogus", "x"),
	}

	for name, main := range cases {
		var status, stdout, _ = runMain(t, "", main)

		assert.Equal(t, 1, status, name)
		assert.Equal(t, TOKEN_NO, stdout, name)
	}
}

func TestMainsVersionAndHelp(t *testing.T) {
	quietDiag(t)
	isolateConfig(t)

	var status, stdout, stderr = runMain(t, "", rawrcv(RCV_MODE_BATCH, "--version"))
	assert.Equal(t, 0, status)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "rawrcv (rawxfer) - Version")

	status, stdout, stderr = runMain(t, "", rawsend("--help"))
	assert.Equal(t, 0, status)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "--chunk-size")

	status, stdout, stderr = runMain(t, "", rawsend("-h"))
	assert.Equal(t, 0, status)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Usage:")
}
