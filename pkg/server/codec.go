package server

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

var zlibWriterPool = sync.Pool{
	New: func() any {
		zw, _ := zlib.NewWriterLevel(io.Discard, zlib.BestSpeed)
		return zw
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	// Oversized buffers are left for the GC.
	if buf.Cap() > 4<<20 {
		return
	}
	bufferPool.Put(buf)
}

// compressTo writes the zlib stream of data into dst.
func compressTo(dst *bytes.Buffer, data string) error {
	zw := zlibWriterPool.Get().(*zlib.Writer)
	defer func() {
		// Drop the reference to dst so an oversized buffer can be collected.
		zw.Reset(io.Discard)
		zlibWriterPool.Put(zw)
	}()
	zw.Reset(dst)
	if _, err := io.WriteString(zw, data); err != nil {
		return err
	}
	return zw.Close()
}

// Compress returns data as a zlib stream at BestSpeed, the framing the client
// uses for request and response bodies.
func Compress(data string) ([]byte, error) {
	var buf bytes.Buffer
	if err := compressTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates a zlib stream. A limit greater than zero bounds the
// inflated size.
func Decompress(data []byte, limit int64) (string, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := inflateTo(buf, bytes.NewReader(data), limit); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func inflateTo(dst *bytes.Buffer, src io.Reader, limit int64) error {
	zr, err := zlib.NewReader(src)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBodyDecode, err)
	}
	defer zr.Close()

	var r io.Reader = zr
	if limit > 0 {
		r = io.LimitReader(zr, limit+1)
	}
	n, err := dst.ReadFrom(r)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBodyDecode, err)
	}
	if limit > 0 && n > limit {
		return ErrBodyTooLarge
	}
	return nil
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
