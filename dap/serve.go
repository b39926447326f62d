package dap

import (
	"context"
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ListenAndServe accepts IDE connections on addr (":0" for an
// ephemeral port) and runs one adapter per connection, one at a time.
// The bound address is reported through onListen before accepting.
func ListenAndServe(ctx context.Context, addr string, onListen func(net.Addr)) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on %s", addr)
	}
	defer l.Close()

	if onListen != nil {
		onListen(l.Addr())
	}

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accept failed")
		}

		if err := serveConn(ctx, conn); err != nil {
			logrus.WithError(err).Warn("debug adapter session ended")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func serveConn(ctx context.Context, nc net.Conn) error {
	defer nc.Close()

	conn := NewConn(nc, nc)
	defer conn.Close()

	a := New()
	defer a.Stop()
	return a.Serve(ctx, conn)
}

// ServeStdio runs one adapter over stdin/stdout. Logging must already
// be pointed at stderr.
func ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	conn := NewConn(in, out)
	defer conn.Close()

	a := New()
	defer a.Stop()
	return a.Serve(ctx, conn)
}
