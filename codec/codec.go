// Package codec frames JSON-RPC messages as newline-delimited JSON over a
// byte stream (the sidecar's stdio pipes or a local socket).
package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/murmurapp/sidecar/proto"
)

type lineCodec struct {
	r *bufio.Reader
	w *bufio.Writer
	c io.Closer

	// mutex serializes writers; the reader side is single-goroutine by the
	// ClientCodec contract and needs no lock.
	mutex sync.Mutex
}

// NewLineCodec returns a proto.ClientCodec speaking newline-delimited
// JSON-RPC on conn.
func NewLineCodec(conn io.ReadWriteCloser) proto.ClientCodec {
	return &lineCodec{
		r: bufio.NewReader(conn),
		w: bufio.NewWriter(conn),
		c: conn,
	}
}

func (c *lineCodec) WriteRequest(req *proto.Request) error {
	buf, err := json.Marshal(req)
	if err != nil {
		return errors.Wrapf(err, "marshal request %q", req.Method)
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, err = c.w.Write(buf); err != nil {
		return errors.Wrap(err, "write request")
	}
	if err = c.w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "write request")
	}
	return errors.Wrap(c.w.Flush(), "flush request")
}

// ReadMessage reads the next non-empty line and decodes it. Undecodable
// lines surface as *proto.ParseError so the caller can drop them and keep
// reading; any other error is a transport failure.
func (c *lineCodec) ReadMessage() (*proto.Incoming, error) {
	for {
		line, err := c.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return nil, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}
		msg, perr := proto.ParseIncoming(line)
		if perr != nil {
			return nil, perr
		}
		return msg, nil
	}
}

func (c *lineCodec) Close() error {
	return c.c.Close()
}
