package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/tidewell/tablediff/cmd/compressors"
)

// ErrOutputPathInvalid is returned for malformed s3:// output targets
var ErrOutputPathInvalid = errors.New("invalid output path")

// reportSink is the destination for diff records. WriteRecord appends one
// NDJSON line; Close flushes buffers and, for S3 targets, performs the
// upload.
type reportSink interface {
	WriteRecord(record *DiffRecord) error
	Close() error
	Target() string
}

// newReportSink builds the sink for the configured output target. With no
// --output the report streams uncompressed to stdout; file and s3://
// targets get placeholder expansion, compression, and a compression
// extension appended to the name.
func newReportSink(ctx context.Context, cfg *Config, stdout io.Writer) (reportSink, error) {
	if cfg.Output == "" {
		return &streamSink{w: stdout}, nil
	}

	comp, err := compressors.GetCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}
	level := cfg.CompressionLevel
	if level == 0 {
		level = comp.DefaultLevel()
	}

	target := expandOutputPath(cfg.Output, cfg.Table1, cfg.Table2, time.Now())
	target += comp.Extension()

	if strings.HasPrefix(target, "s3://") {
		return newS3Sink(ctx, target, cfg.S3, comp, level)
	}
	return newFileSink(target, comp, level)
}

// expandOutputPath substitutes {table1}, {table2}, {date} and {datetime}
// placeholders in the configured output target.
func expandOutputPath(path, table1, table2 string, now time.Time) string {
	result := path
	result = strings.ReplaceAll(result, "{table1}", sanitizeRefForPath(table1))
	result = strings.ReplaceAll(result, "{table2}", sanitizeRefForPath(table2))
	result = strings.ReplaceAll(result, "{date}", now.Format("2006-01-02"))
	result = strings.ReplaceAll(result, "{datetime}", now.Format("2006-01-02-150405"))
	return result
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// sanitizeRefForPath flattens a qualified table reference into a token
// safe for file and object names (dots and quoting become underscores).
func sanitizeRefForPath(ref string) string {
	return unsafePathChars.ReplaceAllString(ref, "_")
}

// parseS3URI splits s3://bucket/key into bucket and key
func parseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q (expected s3://bucket/path)", ErrOutputPathInvalid, uri)
	}
	return bucket, key, nil
}

func writeNDJSONLine(w io.Writer, record *DiffRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal diff record: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("failed to write diff record: %w", err)
	}
	return nil
}

// streamSink writes records straight to an existing stream (stdout)
type streamSink struct {
	w io.Writer
}

func (s *streamSink) WriteRecord(record *DiffRecord) error {
	return writeNDJSONLine(s.w, record)
}

func (s *streamSink) Close() error { return nil }

func (s *streamSink) Target() string { return "stdout" }

// fileSink writes compressed records to a local file
type fileSink struct {
	path string
	file *os.File
	buf  *bufio.Writer
	comp io.WriteCloser
}

func newFileSink(path string, comp compressors.Compressor, level int) (*fileSink, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	buf := bufio.NewWriter(file)
	cw, err := comp.NewWriter(buf, level)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &fileSink{path: path, file: file, buf: buf, comp: cw}, nil
}

func (s *fileSink) WriteRecord(record *DiffRecord) error {
	return writeNDJSONLine(s.comp, record)
}

func (s *fileSink) Close() error {
	if err := s.comp.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush output file: %w", err)
	}
	return s.file.Close()
}

func (s *fileSink) Target() string { return s.path }

// s3Sink buffers the compressed report in memory and uploads it on Close.
// Diff reports are bounded by the configured limit, so buffering the whole
// object keeps the upload a single PUT instead of a multipart dance.
type s3Sink struct {
	ctx    context.Context
	uri    string
	bucket string
	key    string
	s3cfg  S3Config
	buf    bytes.Buffer
	comp   io.WriteCloser
}

func newS3Sink(ctx context.Context, uri string, s3cfg S3Config, comp compressors.Compressor, level int) (*s3Sink, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}

	sink := &s3Sink{ctx: ctx, uri: uri, bucket: bucket, key: key, s3cfg: s3cfg}
	cw, err := comp.NewWriter(&sink.buf, level)
	if err != nil {
		return nil, err
	}
	sink.comp = cw

	return sink, nil
}

func (s *s3Sink) WriteRecord(record *DiffRecord) error {
	return writeNDJSONLine(s.comp, record)
}

func (s *s3Sink) Close() error {
	if err := s.comp.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	return s.upload()
}

func (s *s3Sink) Target() string { return s.uri }

func (s *s3Sink) upload() error {
	awsConfig := &aws.Config{}
	if s.s3cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.s3cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	if s.s3cfg.Region != "" {
		awsConfig.Region = aws.String(s.s3cfg.Region)
	}
	if s.s3cfg.AccessKey != "" && s.s3cfg.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(s.s3cfg.AccessKey, s.s3cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return fmt.Errorf("failed to create S3 session: %w", err)
	}

	uploader := s3manager.NewUploader(sess)
	_, err = uploader.UploadWithContext(s.ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("failed to upload report to S3: %w", err)
	}

	logger.Info(fmt.Sprintf("📤 Uploaded diff report to s3://%s/%s (%d bytes)", s.bucket, s.key, s.buf.Len()))
	return nil
}
