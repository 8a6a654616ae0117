package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/procslot/service/messaging"
)

// Config holds configuration for the filesystem journal queue
type Config struct {
	BasePath   string `json:"basePath" yaml:"basePath"`
	MaxRetries int    `json:"maxRetries" yaml:"maxRetries"`
	// Retain keeps acknowledged messages under done/ instead of deleting them.
	Retain bool `json:"retain" yaml:"retain"`
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BasePath:   "/tmp/procslot/queue",
		MaxRetries: 3,
	}
}

// Message is a journaled queue entry
type Message[T any] struct {
	Seq       int64     `json:"seq"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"createdAt"`

	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack removes the message from the in-flight directory
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %d already processed", m.Seq)
	}
	m.processed = true
	return m.queue.complete(context.Background(), m)
}

// Nack returns the message to pending, or to dlq/ once MaxRetries is exceeded
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %d already processed", m.Seq)
	}
	m.processed = true
	m.Retries++
	if err != nil {
		m.Error = err.Error()
	}
	return m.queue.fail(context.Background(), m)
}

// Queue journals messages as one JSON file each; file names carry a
// monotonic sequence so that Consume returns messages in publish order.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	doneDir       string
	dlqDir        string
	seq           int64
	mu            sync.Mutex
}

// NewQueue creates a filesystem queue rooted at config.BasePath
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    path.Join(config.BasePath, "pending"),
		processingDir: path.Join(config.BasePath, "processing"),
		doneDir:       path.Join(config.BasePath, "done"),
		dlqDir:        path.Join(config.BasePath, "dlq"),
		seq:           time.Now().UnixNano(),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.doneDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes a new message into pending/
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	if now := time.Now().UnixNano(); now > q.seq {
		q.seq = now
	}
	message := &Message[T]{Seq: q.seq, Data: *t, CreatedAt: time.Now()}
	return q.write(ctx, path.Join(q.pendingDir, filename(message.Seq)), message)
}

// Consume moves the oldest pending message to processing/ and returns it;
// it returns nil when nothing is pending.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.list(ctx, q.pendingDir)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, nil
	}
	obj := objects[0]
	message, err := q.read(ctx, obj.URL())
	if err != nil {
		_ = q.fs.Move(ctx, obj.URL(), path.Join(q.dlqDir, "invalid-"+obj.Name()))
		return nil, err
	}
	if err = q.fs.Move(ctx, obj.URL(), path.Join(q.processingDir, obj.Name())); err != nil {
		return nil, fmt.Errorf("failed to move message %s to processing: %w", obj.Name(), err)
	}
	message.queue = q
	return message, nil
}

// Size returns the number of pending messages
func (q *Queue[T]) Size(ctx context.Context) (int, error) {
	objects, err := q.list(ctx, q.pendingDir)
	return len(objects), err
}

// DLQSize returns the number of dead messages
func (q *Queue[T]) DLQSize(ctx context.Context) (int, error) {
	objects, err := q.list(ctx, q.dlqDir)
	return len(objects), err
}

func (q *Queue[T]) complete(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	name := filename(m.Seq)
	if q.config.Retain {
		if err := q.write(ctx, path.Join(q.doneDir, name), m); err != nil {
			return err
		}
	}
	return q.fs.Delete(ctx, path.Join(q.processingDir, name))
}

func (q *Queue[T]) fail(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	name := filename(m.Seq)
	dest := path.Join(q.pendingDir, name)
	if m.Retries > q.config.MaxRetries {
		dest = path.Join(q.dlqDir, name)
	}
	if err := q.write(ctx, dest, m); err != nil {
		return err
	}
	return q.fs.Delete(ctx, path.Join(q.processingDir, name))
}

func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var ret []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			ret = append(ret, obj)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret, nil
}

func (q *Queue[T]) write(ctx context.Context, URL string, m *Message[T]) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message %d: %w", m.Seq, err)
	}
	if err = q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write message %s: %w", URL, err)
	}
	return nil
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	message := &Message[T]{}
	if err = json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return message, nil
}

func filename(seq int64) string {
	return fmt.Sprintf("%020d.json", seq)
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
