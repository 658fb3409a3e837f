package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:   	Link over a pair of already open file descriptors.
 *
 * Description:	This is how the programs are normally used.  The remote
 *		logs in over the modem and runs us from its shell, so
 *		standard input and output are the line.
 *
 *		Either side could also be a pipe (tests, or an ssh
 *		session without a pty).  Then there is no terminal mode
 *		to change and nothing to drain.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

type fdLink struct {
	in  *os.File
	out *os.File

	infd  int
	outfd int

	intty  bool
	outtty bool
}

func fd_link_new(in, out *os.File) *fdLink {
	// Fd() also puts the descriptor back into blocking mode, which
	// is what we want since readiness comes from poll below.
	var l = &fdLink{
		in:    in,
		out:   out,
		infd:  int(in.Fd()),
		outfd: int(out.Fd()),
	}

	l.intty = is_tty(l.infd)
	l.outtty = is_tty(l.outfd)

	return l
}

func is_tty(fd int) bool {
	var a unix.Termios

	return termios.Tcgetattr(uintptr(fd), &a) == nil
}

func (l *fdLink) Write(p []byte) (int, error) {
	return l.out.Write(p)
}

/*-------------------------------------------------------------------
 *
 * Name:        ReadTimeout
 *
 * Purpose:     Get whatever is available, waiting a bounded time.
 *
 * Description:	poll(2) for readability, then one read(2).  The read
 *		never asks for more than len(p) so we can't swallow
 *		bytes that belong to the next frame.
 *
 *--------------------------------------------------------------------*/

func (l *fdLink) ReadTimeout(ctx context.Context, p []byte, timeout time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	var deadline = time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var slice = wait_slice(deadline)
		if slice <= 0 {
			return 0, ErrLinkTimeout
		}

		var fds = []unix.PollFd{{Fd: int32(l.infd), Events: unix.POLLIN}} //nolint:gosec
		var ready, pollErr = unix.Poll(fds, poll_timeout_ms(slice))
		if pollErr != nil {
			if errors.Is(pollErr, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("poll %s: %w", l.in.Name(), pollErr)
		}

		if ready == 0 {
			continue
		}

		// POLLIN or POLLHUP.  The read sorts out which.
		var n, readErr = unix.Read(l.infd, p)
		if readErr != nil {
			if errors.Is(readErr, unix.EINTR) || errors.Is(readErr, unix.EAGAIN) {
				continue
			}
			return 0, &os.PathError{Op: "read", Path: l.in.Name(), Err: readErr}
		}

		if n <= 0 {
			return 0, io.EOF
		}

		return n, nil
	}
}

// poll_timeout_ms rounds up.  A zero timeout returns at once, which
// would spin for the last fraction of a millisecond.
func poll_timeout_ms(d time.Duration) int {
	return max(1, int((d+time.Millisecond-1)/time.Millisecond))
}

func (l *fdLink) Drain() error {
	if !l.outtty {
		return nil
	}

	return termios.Tcdrain(uintptr(l.outfd))
}

/*-------------------------------------------------------------------
 *
 * Name:        SetRaw
 *
 * Purpose:     Stop the line discipline from interpreting our bytes.
 *
 * Description:	The sender only needs output left alone, the receiver
 *		needs input left alone, so each changes just its own side.
 *		On a real login they are the same tty anyway.
 *
 *--------------------------------------------------------------------*/

func (l *fdLink) SetRaw(mode RawMode) (func() error, error) {
	var fd, tty = l.infd, l.intty
	if mode == RAW_SEND {
		fd, tty = l.outfd, l.outtty
	}

	if !tty {
		return restore_nothing, nil
	}

	var orig unix.Termios
	if err := termios.Tcgetattr(uintptr(fd), &orig); err != nil {
		return restore_nothing, fmt.Errorf("tcgetattr: %w", err)
	}

	var a = orig
	raw_attr(&a, mode)

	if err := termios.Tcsetattr(uintptr(fd), termios.TCSANOW, &a); err != nil {
		return restore_nothing, fmt.Errorf("tcsetattr: %w", err)
	}

	var once sync.Once
	var restoreErr error

	return func() error {
		once.Do(func() {
			restoreErr = termios.Tcsetattr(uintptr(fd), termios.TCSANOW, &orig)
		})
		return restoreErr
	}, nil
}

// raw_attr applies the same settings the remote side has always expected.
func raw_attr(a *unix.Termios, mode RawMode) {
	a.Iflag = unix.IGNBRK
	a.Oflag = 0

	if mode == RAW_RECEIVE {
		a.Lflag = 0
		a.Cc[unix.VMIN] = 1  /* wait for at least one character */
		a.Cc[unix.VTIME] = 0 /* no fancy timing. */
	}
}

// Close leaves the descriptors open; they belong to whoever gave them to us.
// Control is the line itself, as when run from the modem session's shell.
func (l *fdLink) Control() io.Writer {
	return l.out
}

func (l *fdLink) Close() error {
	return nil
}
