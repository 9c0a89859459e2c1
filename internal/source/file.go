// Package source provides the line sources the ingest controller reads from.
package source

import (
	"Go2NetIngest/internal/config"
	"Go2NetIngest/internal/model"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// DefaultMaxLineBytes bounds a single input line.
const DefaultMaxLineBytes = 1 << 20

const readBufferSize = 64 * 1024

// Open returns the source selected by cfg.Type.
func Open(cfg config.SourceConfig, logger *zap.Logger) (model.LineSource, error) {
	switch cfg.Type {
	case "file":
		src, err := OpenFile(cfg.Path, cfg.MaxLineBytes, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "nats":
		src, err := NewNATSSource(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source type: '%s'", cfg.Type)
	}
}

// FileSource reads newline-delimited records from a file, stdin or a gzip stream.
type FileSource struct {
	reader  *bufio.Reader
	maxLine int
	buf     []byte
	closers []io.Closer
}

// OpenFile opens path for reading. "-" reads stdin and a ".gz" suffix is
// decompressed on the fly.
func OpenFile(path string, maxLineBytes int, logger *zap.Logger) (*FileSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		r       io.Reader
		closers []io.Closer
	)
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		r = f
		closers = append(closers, f)
	}

	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		r = zr
		closers = append([]io.Closer{zr}, closers...)
	}

	logger.Info("reading flow records", zap.String("path", path))
	return NewReaderSource(r, maxLineBytes, closers...), nil
}

// NewReaderSource reads lines from r. The closers are closed by Close.
func NewReaderSource(r io.Reader, maxLineBytes int, closers ...io.Closer) *FileSource {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	return &FileSource{
		reader:  bufio.NewReaderSize(r, readBufferSize),
		maxLine: maxLineBytes,
		closers: closers,
	}
}

// Next returns the next line without its terminator, or io.EOF. A line longer
// than the limit is consumed up to its newline and reported as
// model.ErrLineTooLong; the following call continues with the next line.
// Reads from a local file are not interrupted by ctx.
func (s *FileSource) Next(_ context.Context) ([]byte, error) {
	s.buf = s.buf[:0]
	var (
		read    int
		tooLong bool
	)
	for {
		chunk, err := s.reader.ReadSlice('\n')
		read += len(chunk)
		if !tooLong {
			s.buf = append(s.buf, chunk...)
			if len(trimEOL(s.buf)) > s.maxLine {
				tooLong = true
				s.buf = s.buf[:0]
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if read == 0 {
				return nil, io.EOF
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		break
	}

	if tooLong {
		return nil, fmt.Errorf("%w: %d bytes exceed limit of %d", model.ErrLineTooLong, read, s.maxLine)
	}
	return trimEOL(s.buf), nil
}

// Close releases the underlying file and decompressor.
func (s *FileSource) Close() error {
	return closeAll(s.closers)
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
