package lsp

import (
	"errors"
	"io"
	"os"
)

type stdrwc struct {
	in  io.ReadCloser
	out io.WriteCloser
}

// Stdio returns the process stdin/stdout as one stream.
func Stdio() io.ReadWriteCloser {
	return stdrwc{in: os.Stdin, out: os.Stdout}
}

func (s stdrwc) Read(p []byte) (int, error) {
	return s.in.Read(p)
}

func (s stdrwc) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s stdrwc) Close() error {
	return errors.Join(s.in.Close(), s.out.Close())
}
