package output

import (
	"bufio"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/datacounter"
)

const sinkBufferSize = 64 * 1024

// Sink is a buffered writer bound to the output file. Every WriteBlock is
// flushed before it returns. A Sink has a single owner.
type Sink struct {
	File           *os.File
	Writer         *bufio.Writer
	Counter        *datacounter.WriterCounter
	SyncEveryBlock bool
	closed         bool
}

func OpenSink(path string, appendMode, syncEveryBlock bool) (*Sink, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	counter := datacounter.NewWriterCounter(f)
	return &Sink{
		File:           f,
		Writer:         bufio.NewWriterSize(counter, sinkBufferSize),
		Counter:        counter,
		SyncEveryBlock: syncEveryBlock,
	}, nil
}

func (s *Sink) WriteBlock(b []byte) error {
	if s.closed {
		return os.ErrClosed
	}
	n, err := s.Writer.Write(b)
	if err != nil {
		return fmt.Errorf("unable to write: %w", err)
	}
	if n != len(b) {
		return fmt.Errorf("invalid write length: %d != %d", n, len(b))
	}
	if err := s.Writer.Flush(); err != nil {
		return fmt.Errorf("unable to flush: %w", err)
	}
	if s.SyncEveryBlock {
		if err := s.File.Sync(); err != nil {
			return fmt.Errorf("unable to sync: %w", err)
		}
	}
	return nil
}

// BytesWritten returns the amount of bytes that reached the file.
func (s *Sink) BytesWritten() uint64 {
	return s.Counter.Count()
}

func (s *Sink) Name() string {
	return s.File.Name()
}

func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var mErr *multierror.Error
	if err := s.Writer.Flush(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to flush: %w", err))
	}
	if err := s.File.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close: %w", err))
	}
	return mErr.ErrorOrNil()
}
