package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/royalcat/cjstream/cityjson"
	"github.com/royalcat/cjstream/collector"
)

// openReader opens path for streaming, with a progress bar for regular files
// and transparent zstd decompression for .zst inputs. "-" reads stdin.
func openReader(path string) (io.Reader, func() error, error) {
	if path == "-" || path == "" {
		return os.Stdin, func() error { return nil }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	bar := pb.Full.Start64(info.Size())
	bar.Set(pb.Bytes, true)
	var r io.Reader = bar.NewProxyReader(f)

	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(r)
		if err != nil {
			bar.Finish()
			f.Close()
			return nil, nil, fmt.Errorf("opening zstd reader: %w", err)
		}
		return zr, func() error {
			zr.Close()
			bar.Finish()
			return f.Close()
		}, nil
	}

	return r, func() error {
		bar.Finish()
		return f.Close()
	}, nil
}

// openWriter opens path for writing, compressing .zst outputs. "-" writes
// stdout.
func openWriter(path string) (io.Writer, func() error, error) {
	if path == "-" || path == "" {
		return os.Stdout, func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}

	if strings.HasSuffix(path, ".zst") {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("opening zstd writer: %w", err)
		}
		return zw, func() error {
			if err := zw.Close(); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}, nil
	}

	return f, f.Close, nil
}

func readDocument(path string) (*cityjson.CityJSON, error) {
	r, closeIn, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer closeIn()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return cityjson.ParseCityJSON(data)
}

// readDocumentOrSeq reads either a whole CityJSON document or a CityJSONSeq
// stream, collecting the latter into one document.
func readDocumentOrSeq(ctx context.Context, path string) (*cityjson.CityJSON, error) {
	r, closeIn, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer closeIn()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// a stream's first line is itself a complete document, a pretty-printed
	// file's first line is not
	head, rest, _ := bytes.Cut(data, []byte{'\n'})
	if doc, err := cityjson.ParseCityJSON(head); err == nil {
		if len(bytes.TrimSpace(rest)) > 0 {
			return collector.Collect(ctx, bytes.NewReader(data))
		}
		return doc, nil
	}
	return cityjson.ParseCityJSON(data)
}

func writeDocument(w io.Writer, doc *cityjson.CityJSON) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}

func cityjsonTransform(vals []float64) cityjson.Transform {
	return cityjson.Transform{
		Scale:     [3]float64{vals[0], vals[1], vals[2]},
		Translate: [3]float64{vals[3], vals[4], vals[5]},
	}
}
