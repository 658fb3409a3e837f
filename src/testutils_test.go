package rawxfer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Generous enough for pipes on a loaded machine, short enough that
// the timeout tests don't drag.
const e2eTimeout = 500 * time.Millisecond

func testConfig(t *testing.T) *Config {
	t.Helper()

	var cfg = config_default()
	cfg.ByteTimeout = e2eTimeout
	cfg.ChunkSize = 100
	cfg.CommLog = filepath.Join(t.TempDir(), "comm.log")

	return cfg
}

// quietDiag keeps diagnostics out of the test output and hands them
// back for inspection.
func quietDiag(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	diag_set_output(&buf)
	t.Cleanup(func() {
		diag_set_output(os.Stderr)
	})

	return &buf
}

/*
 * Two programs talking through a stand-in for the remote.
 *
 *	sender --toRelay--> relay --toRcv--> receiver
 *	sender <----------back-------------- receiver
 *
 * The relay swallows the sender's READY!, which in real use goes to
 * whatever started it, and can cut the line short or damage bytes.
 */

type linkPair struct {
	sender   *fdLink
	receiver *fdLink

	senderOut *os.File /* Close when the sender is finished. */
	backOut   *os.File /* Close when the receiver is finished. */
	back      *os.File /* What the receiver said, once backOut is closed. */

	files []*os.File
}

type relayOptions struct {
	// Pass this many bytes then hang up.  -1 for no limit.
	limit int64

	// Applied to each byte passed.
	mangle func(off int64, b byte) byte
}

func newLinkPair(opts relayOptions) (*linkPair, error) {
	var toRelayR, toRelayW, err1 = os.Pipe()
	var toRcvR, toRcvW, err2 = os.Pipe()
	var backR, backW, err3 = os.Pipe()
	if err := firstError(err1, err2, err3); err != nil {
		return nil, err
	}

	var p = &linkPair{
		sender:    fd_link_new(backR, toRelayW),
		receiver:  fd_link_new(toRcvR, backW),
		senderOut: toRelayW,
		backOut:   backW,
		back:      backR,
		files:     []*os.File{toRelayR, toRelayW, toRcvR, toRcvW, backR, backW},
	}

	go relay(toRelayR, toRcvW, opts)

	return p, nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *linkPair) close() {
	for _, f := range p.files {
		f.Close()
	}
}

// replies closes the receiver's side and returns everything it sent.
func (p *linkPair) replies() string {
	p.backOut.Close()

	var b, _ = io.ReadAll(p.back)

	return string(b)
}

func relay(src io.Reader, dst io.WriteCloser, opts relayOptions) {
	defer dst.Close()

	var ready = make([]byte, len(TOKEN_READY))
	if _, err := io.ReadFull(src, ready); err != nil || string(ready) != TOKEN_READY {
		return
	}

	var buf = make([]byte, 512)
	var off int64

	for {
		var n, err = src.Read(buf)
		for i := 0; i < n; i++ {
			if opts.limit >= 0 && off >= opts.limit {
				// Hang up on the receiver but keep the sender from blocking.
				dst.Close()
				io.Copy(io.Discard, src) //nolint:errcheck
				return
			}
			var c = buf[i]
			if opts.mangle != nil {
				c = opts.mangle(off, c)
			}
			if _, werr := dst.Write([]byte{c}); werr != nil {
				io.Copy(io.Discard, src) //nolint:errcheck
				return
			}
			off++
		}
		if err != nil {
			return
		}
	}
}

func noRelayLimit() relayOptions {
	return relayOptions{limit: -1}
}

func flipBitAt(pos int64) func(int64, byte) byte {
	return func(off int64, b byte) byte {
		if off == pos {
			return b ^ 0x10
		}
		return b
	}
}

// runMain runs a main-like function with stdin, stdout and stderr on
// pipes and collects what it wrote.
func runMain(t *testing.T, stdinData string, main func(stdin, stdout, stderr *os.File) int) (int, string, string) {
	t.Helper()

	var inR, inW, err = os.Pipe()
	require.NoError(t, err)
	var outR, outW, err2 = os.Pipe()
	require.NoError(t, err2)
	var errR, errW, err3 = os.Pipe()
	require.NoError(t, err3)

	go func() {
		inW.WriteString(stdinData) //nolint:errcheck
		inW.Close()
	}()

	var outC = make(chan string)
	var errC = make(chan string)
	go func() {
		var b, _ = io.ReadAll(outR)
		outC <- string(b)
	}()
	go func() {
		var b, _ = io.ReadAll(errR)
		errC <- string(b)
	}()

	var status = main(inR, outW, errW)

	outW.Close()
	errW.Close()
	inR.Close()

	return status, <-outC, <-errC
}

func readCommLog(t *testing.T, cfg *Config) string {
	t.Helper()

	var b, err = os.ReadFile(cfg.CommLog)
	require.NoError(t, err)

	return string(b)
}

func countLines(s string, substr string) int {
	var n = 0
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}

	return n
}

// testChdir changes the working directory for the duration of the
// test, restoring it on cleanup (equivalent of testing.T.Chdir, which
// needs Go 1.24).
func testChdir(t *testing.T, dir string) {
	t.Helper()

	var old, err = os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
