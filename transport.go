package sidecar

import (
	"io"
	"net"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/murmurapp/sidecar/codec"
)

// Dial connects to a sidecar already listening on a network address
// (typically a unix socket) and returns a running client.
func Dial(network, address string, opts ...Option) (*Client, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "dial sidecar at %s", address)
	}
	return NewClient(codec.NewLineCodec(conn), opts...), nil
}

// StartProcess launches the sidecar binary and speaks JSON-RPC over its
// stdin/stdout. The worker's stderr is passed through for its own logging.
// The returned cmd is the caller's to wait on after closing the client.
func StartProcess(path string, args []string, opts ...Option) (*Client, *exec.Cmd, error) {
	cmd := exec.Command(path, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, errors.Wrap(err, "open sidecar stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, errors.Wrap(err, "open sidecar stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, errors.Wrapf(err, "start sidecar %s", path)
	}
	pipe := &stdioPipe{r: stdout, w: stdin}
	return NewClient(codec.NewLineCodec(pipe), opts...), cmd, nil
}

// stdioPipe glues a child process's stdout/stdin into one ReadWriteCloser.
type stdioPipe struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (p *stdioPipe) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *stdioPipe) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *stdioPipe) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
