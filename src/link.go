package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:   	The byte transport between the two ends, hiding whether
 *		it is our own stdin/stdout, a serial port, or a TCP
 *		connection standing in for a modem call.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ErrLinkTimeout means nothing arrived within the liveness window.
var ErrLinkTimeout = errors.New("link timeout")

// Waits are done in slices this long so cancellation is noticed promptly.
const LINK_WAIT_SLICE = 250 * time.Millisecond

type RawMode int

const (
	RAW_SEND    RawMode = iota /* iflag=IGNBRK, oflag=0.  Leave local modes alone. */
	RAW_RECEIVE                /* Also lflag=0: no echo, non-canonical, no signals. */
)

func (m RawMode) String() string {
	switch m {
	case RAW_SEND:
		return "send"
	case RAW_RECEIVE:
		return "receive"
	default:
		return fmt.Sprintf("RawMode(%d)", int(m))
	}
}

type Link interface {
	Write(p []byte) (int, error)

	// ReadTimeout waits at most timeout for at least one byte and
	// returns whatever is available, never more than len(p).
	// Silence gives ErrLinkTimeout, a closed peer gives io.EOF.
	ReadTimeout(ctx context.Context, p []byte, timeout time.Duration) (int, error)

	// Drain blocks until written data has actually gone out.
	Drain() error

	// SetRaw switches to raw mode.  The returned function puts
	// back whatever was there before and is always safe to call.
	SetRaw(mode RawMode) (func() error, error)

	// Control is where a sender reports READY! or NO! to whatever
	// started it.  Only on the stdin/stdout link is that the line.
	Control() io.Writer

	Close() error
}

/*-------------------------------------------------------------------
 *
 * Name:	link_open
 *
 * Purpose:	Open the link described by the configuration.
 *
 * Inputs:	cfg		- Device, TCP or neither.
 *
 *		stdin, stdout	- Used when nothing else is configured.
 *				  This is the normal case: we were started
 *				  from the login shell of the modem session.
 *				  Otherwise stdout is only the control output.
 *
 * Returns 	Link, ready for use.
 *
 *---------------------------------------------------------------*/

func link_open(ctx context.Context, cfg *Config, stdin, stdout *os.File) (Link, error) { //nolint:ireturn
	switch {
	case cfg.Device != "":
		var l, err = term_link_open(cfg.Device, cfg.Speed, stdout)
		if err != nil {
			return nil, err
		}
		diag.Debug("link", "device", cfg.Device, "speed", cfg.Speed)
		return l, nil

	case cfg.Connect != "":
		var d net.Dialer
		var conn, err = d.DialContext(ctx, "tcp", cfg.Connect)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.Connect, err)
		}
		diag.Debug("link", "connect", cfg.Connect)
		return net_link_new(conn, stdout), nil

	case cfg.Listen != "":
		var l, err = net_link_accept(ctx, cfg.Listen, stdout)
		if err != nil {
			return nil, err
		}
		return l, nil

	default:
		return fd_link_new(stdin, stdout), nil
	}
}

/*-------------------------------------------------------------------
 *
 * Name:	link_context
 *
 * Purpose:	Run context cancelled by the usual termination signals.
 *
 * Description:	A hangup or kill from the session script must not leave
 *		the terminal in raw mode.  Cancelling the context makes
 *		the current read return, and the deferred restore runs
 *		on the way out.
 *
 *---------------------------------------------------------------*/

func link_context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
}

// wait_slice is the smaller of what is left and LINK_WAIT_SLICE.
func wait_slice(deadline time.Time) time.Duration {
	var left = time.Until(deadline)
	if left > LINK_WAIT_SLICE {
		return LINK_WAIT_SLICE
	}

	return left
}

// link_send_token writes a status token.  Nothing useful can be done
// if that fails, the remote will time out and try again.
func link_send_token(lnk Link, token string) {
	if _, err := lnk.Write([]byte(token)); err != nil {
		diag.Warn("could not send token", "token", token, "err", err)
		return
	}
	if err := lnk.Drain(); err != nil {
		diag.Debug("drain after token", "err", err)
	}
}

// control_send_token reports to whatever started the sender.  With a
// separate link the token must stay out of the byte stream, or the
// receiver would take it for the start of a header.
func control_send_token(lnk Link, token string) {
	if _, err := io.WriteString(lnk.Control(), token); err != nil {
		diag.Warn("could not report", "token", token, "err", err)
		return
	}
	if err := lnk.Drain(); err != nil {
		diag.Debug("drain after token", "err", err)
	}
}

func restore_nothing() error {
	return nil
}
