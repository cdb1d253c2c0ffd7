package emit

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"sync"

	"history-forwarder/core/storage"

	"github.com/minio/minio-go/v7"
)

// Sink receives serialized records, one JSON object per line.
type Sink interface {
	// Write appends one line for entityType. The newline is added by the sink.
	Write(ctx context.Context, entityType string, line []byte) error
	// Flush makes every written line durable.
	Flush(ctx context.Context) error
	// Close flushes and releases the sink.
	Close() error
}

// StreamSink writes lines to an io.Writer such as os.Stdout.
type StreamSink struct {
	mu sync.Mutex
	w  *bufio.Writer
	c  io.Closer
}

// NewStreamSink returns a sink writing to w.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: bufio.NewWriter(w)}
}

// NewFileSink creates or truncates the file at p.
func NewFileSink(p string) (*StreamSink, error) {
	f, err := os.Create(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &StreamSink{w: bufio.NewWriter(f), c: f}, nil
}

func (s *StreamSink) Write(_ context.Context, _ string, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *StreamSink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

func (s *StreamSink) Close() error {
	err := s.Flush(context.Background())
	if s.c != nil {
		if cerr := s.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ObjectSink buffers lines per entity type and uploads them as
// `<prefix>/<entity>/<run>.ndjson` on Flush.
type ObjectSink struct {
	client storage.Client
	bucket string
	prefix string
	runID  string

	mu      sync.Mutex
	buffers map[string]*bytes.Buffer
	parts   map[string]int
}

// NewObjectSink returns a sink uploading to bucket through client.
func NewObjectSink(client storage.Client, bucket, prefix, runID string) *ObjectSink {
	return &ObjectSink{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		runID:   runID,
		buffers: make(map[string]*bytes.Buffer),
		parts:   make(map[string]int),
	}
}

func (s *ObjectSink) Write(_ context.Context, entityType string, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.buffers[entityType]
	if !ok {
		buf = new(bytes.Buffer)
		s.buffers[entityType] = buf
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return nil
}

// Flush uploads every non-empty buffer. A second flush for the same entity type in one
// run gets a numbered key instead of overwriting the first object.
func (s *ObjectSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := make([]string, 0, len(s.buffers))
	for entity, buf := range s.buffers {
		if buf.Len() > 0 {
			entities = append(entities, entity)
		}
	}
	sort.Strings(entities)

	for _, entity := range entities {
		buf := s.buffers[entity]
		key := s.objectKey(entity)
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()),
			minio.PutObjectOptions{ContentType: "application/x-ndjson"})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
		s.parts[entity]++
		buf.Reset()
	}
	return nil
}

func (s *ObjectSink) objectKey(entity string) string {
	name := s.runID + ".ndjson"
	if n := s.parts[entity]; n > 0 {
		name = fmt.Sprintf("%s-%d.ndjson", s.runID, n)
	}
	return path.Join(s.prefix, entity, name)
}

func (s *ObjectSink) Close() error {
	return s.Flush(context.Background())
}

// Open returns the sink selected by cfg. client and bucket are only used in s3 mode.
func Open(cfg Config, client storage.Client, bucket, runID string) (Sink, error) {
	switch cfg.Mode {
	case ModeStdout, "", "-":
		return NewStreamSink(os.Stdout), nil
	case ModeFile:
		return NewFileSink(cfg.Path)
	case ModeObject:
		if client == nil {
			return nil, fmt.Errorf("output mode %q requires a storage client", cfg.Mode)
		}
		return NewObjectSink(client, bucket, cfg.Prefix, runID), nil
	default:
		return nil, fmt.Errorf("unsupported output mode %q", cfg.Mode)
	}
}
