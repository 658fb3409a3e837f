package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:   	Link over TCP.
 *
 * Description:	Some modem services hand the call to the shore
 *		station as a TCP connection rather than a serial line.
 *		The byte stream is the same; there is just no terminal.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

type netLink struct {
	conn    net.Conn
	control io.Writer
}

func net_link_new(conn net.Conn, control io.Writer) *netLink {
	return &netLink{conn: conn, control: control}
}

/*-------------------------------------------------------------------
 *
 * Name:	net_link_accept
 *
 * Purpose:	Wait for one incoming connection and use it as the link.
 *
 *---------------------------------------------------------------*/

func net_link_accept(ctx context.Context, addr string, control io.Writer) (*netLink, error) {
	var lc net.ListenConfig
	var ln, err = lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	defer ln.Close()

	// Accept doesn't take a context.  Closing the listener unblocks it.
	var stop = context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var conn, acceptErr = ln.Accept()
	if acceptErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept on %s: %w", addr, acceptErr)
	}

	diag.Debug("link connected", "remote", conn.RemoteAddr().String())

	return net_link_new(conn, control), nil
}

func (l *netLink) Write(p []byte) (int, error) {
	return l.conn.Write(p)
}

func (l *netLink) ReadTimeout(ctx context.Context, p []byte, timeout time.Duration) (int, error) {
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

		if err := l.conn.SetReadDeadline(time.Now().Add(slice)); err != nil {
			return 0, err
		}

		var n, err = l.conn.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, err
		}
	}
}

// Drain has nothing to wait for; TCP takes care of pacing.
func (l *netLink) Drain() error {
	return nil
}

func (l *netLink) SetRaw(_ RawMode) (func() error, error) {
	return restore_nothing, nil
}

func (l *netLink) Control() io.Writer {
	return l.control
}

func (l *netLink) Close() error {
	return l.conn.Close()
}
