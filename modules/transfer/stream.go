package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ChunkStream is a pull-based, single-pass stream of byte chunks read from a
// file, optionally compressed with zstd. Each Next call reads at most one
// chunk-size slice of input; compressed output chunks vary in length because
// the encoding is variable-length. The zstd frame is self-delimiting, so a
// generic decoder can consume the stream without knowing the original size.
//
// Cleanup contract: Close releases the encoder and the underlying file handle.
// It is idempotent and must be called both after normal exhaustion and on early
// abandonment (e.g. the client disconnected mid-transfer).
type ChunkStream struct {
	file   *os.File
	in     []byte
	out    bytes.Buffer
	enc    *zstd.Encoder
	size   int64
	err    error
	closed bool
}

// OpenCompressedStream opens path for reading and streams its content as a
// single zstd frame. level is a standard zstd compression level.
func OpenCompressedStream(path string, chunkSize, level int) (*ChunkStream, error) {
	s, err := openStream(path, chunkSize)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(&s.out,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		s.file.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	s.enc = enc
	return s, nil
}

// OpenRawStream opens path for reading without compression. The concatenation
// of all chunks is byte-identical to the file content; Size reports the file
// size at open time.
func OpenRawStream(path string, chunkSize int) (*ChunkStream, error) {
	return openStream(path, chunkSize)
}

func openStream(path string, chunkSize int) (*ChunkStream, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return &ChunkStream{
		file: f,
		in:   make([]byte, chunkSize),
		size: stat.Size(),
	}, nil
}

// Size returns the uncompressed file size at open time.
func (s *ChunkStream) Size() int64 {
	return s.size
}

// Next returns the next chunk, or io.EOF once the input is exhausted and all
// buffered output has been delivered. A returned chunk is never paired with an
// error. The slice is owned by the caller.
func (s *ChunkStream) Next() ([]byte, error) {
	if s.closed {
		return nil, os.ErrClosed
	}

	for {
		if s.out.Len() > 0 {
			chunk := make([]byte, s.out.Len())
			copy(chunk, s.out.Bytes())
			s.out.Reset()
			return chunk, nil
		}
		if s.err != nil {
			return nil, s.err
		}

		n, err := s.file.Read(s.in)
		if n > 0 {
			if s.enc != nil {
				if _, werr := s.enc.Write(s.in[:n]); werr != nil {
					s.err = werr
					continue
				}
				// Flush per step so the client receives data promptly and one
				// Next never consumes more than one input chunk.
				if werr := s.enc.Flush(); werr != nil {
					s.err = werr
					continue
				}
			} else {
				s.out.Write(s.in[:n])
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
				continue
			}
			if s.enc != nil {
				// Close emits the frame epilogue into the output buffer.
				if cerr := s.enc.Close(); cerr != nil {
					s.err = cerr
					s.enc = nil
					continue
				}
				s.enc = nil
			}
			s.err = io.EOF
		}
	}
}

// Close releases the encoder and the file handle. Safe to call more than once
// and at any point of the stream's life.
func (s *ChunkStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.enc != nil {
		s.enc.Close()
		s.enc = nil
	}
	return s.file.Close()
}
