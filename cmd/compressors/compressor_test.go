package compressors

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

func TestGetCompressor(t *testing.T) {
	tests := []struct {
		name    string
		wantExt string
		wantErr bool
	}{
		{name: "zstd", wantExt: ".zst"},
		{name: "lz4", wantExt: ".lz4"},
		{name: "gzip", wantExt: ".gz"},
		{name: "none", wantExt: ""},
		{name: "snappy", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := GetCompressor(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedCompression) {
					t.Fatalf("expected ErrUnsupportedCompression, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Extension() != tt.wantExt {
				t.Errorf("extension = %q, want %q", c.Extension(), tt.wantExt)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"id": 1, "diffs": {"amt": ["10.0", 10], "_status": "value_differences"}}`+"\n"), 64)

	readers := map[string]func(r io.Reader) (io.Reader, error){
		"zstd": func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
		"lz4": func(r io.Reader) (io.Reader, error) {
			return lz4.NewReader(r), nil
		},
		"gzip": func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		},
		"none": func(r io.Reader) (io.Reader, error) {
			return r, nil
		},
	}

	for name, open := range readers {
		t.Run(name, func(t *testing.T) {
			comp, err := GetCompressor(name)
			if err != nil {
				t.Fatalf("GetCompressor(%q): %v", name, err)
			}

			var buf bytes.Buffer
			w, err := comp.NewWriter(&buf, comp.DefaultLevel())
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}
			if _, err := w.Write(payload); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close failed: %v", err)
			}

			r, err := open(&buf)
			if err != nil {
				t.Fatalf("failed to open reader: %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
			}
		})
	}
}

func TestLZ4LevelMapping(t *testing.T) {
	// Levels 1-9 must map onto valid lz4 level constants; raw integers
	// in that range are not themselves valid options.
	for level := 1; level <= 9; level++ {
		var buf bytes.Buffer
		w, err := NewLZ4Compressor().NewWriter(&buf, level)
		if err != nil {
			t.Fatalf("level %d rejected: %v", level, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close at level %d: %v", level, err)
		}
	}
}
