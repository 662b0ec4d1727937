// Package fileutil provides transparent reading and writing of
// possibly-compressed files, keyed by file extension. Used for
// archived database logs (.zst by default) and for inspecting them.
package fileutil

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// implement io.ReadCloser over os.File wrapped with io.Reader.
// io.Closer goes to os.File, io.Reader goes to wrapping reader
type readerWrappedFile struct {
	f *os.File
	r io.Reader
}

func (rc *readerWrappedFile) Close() error {
	return rc.f.Close()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

func wrapInReadCloser(f *os.File, r io.Reader, err error) (io.ReadCloser, error) {
	if err != nil {
		f.Close()
		return nil, err
	}
	return &readerWrappedFile{
		f: f,
		r: r,
	}, nil
}

// OpenMaybeCompressed opens a file that might be compressed with gzip
// or zstd or brotli, based on the extension.
func OpenMaybeCompressed(path string) (io.ReadCloser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch ext {
	case ".gz":
		r, err := gzip.NewReader(f)
		return wrapInReadCloser(f, r, err)
	case ".zst", ".zstd":
		r, err := zstd.NewReader(f)
		return wrapInReadCloser(f, r, err)
	case ".br":
		r := brotli.NewReader(f)
		return wrapInReadCloser(f, r, nil)
	}
	return f, nil
}

// ReadMaybeCompressed reads the whole file, decompressing if needed.
func ReadMaybeCompressed(path string) ([]byte, error) {
	r, err := OpenMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func newCompressor(f *os.File, ext string) (io.WriteCloser, error) {
	switch ext {
	case ".gz":
		return gzip.NewWriterLevel(f, gzip.BestCompression)
	case ".zst", ".zstd":
		return zstd.NewWriter(f)
	case ".br":
		return brotli.NewWriterLevel(f, brotli.BestCompression), nil
	}
	return nil, fmt.Errorf("unsupported compression extension %q", ext)
}

// CompressFile compresses srcPath into dstPath. The codec is picked
// from dstPath's extension: .gz, .zst / .zstd or .br.
// On error the partially-written destination is removed.
func CompressFile(dstPath, srcPath string) error {
	fSrc, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer fSrc.Close()

	fDst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(dstPath))
	w, err := newCompressor(fDst, ext)
	if err == nil {
		_, err = io.Copy(w, fSrc)
		if err2 := w.Close(); err == nil {
			err = err2
		}
	}
	if err2 := fDst.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(dstPath)
		return err
	}
	return nil
}
