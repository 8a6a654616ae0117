package event

import (
	"time"

	"github.com/viant/afs"
	"github.com/viant/procslot/service/messaging/fs"
	"github.com/viant/procslot/service/messaging/memory"
	"go.uber.org/zap"
)

type Option func(s *Service)

// WithFsQueueConfig sets the file system queue configuration
func WithFsQueueConfig(newConfig func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsQueueConfig = newConfig
	}
}

// WithMemoryQueueConfig sets the memory queue configuration
func WithMemoryQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memQueueConfig = newConfig
	}
}

// WithFs sets the storage service used by the fs vendor
func WithFs(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithPollInterval sets how often an idle listener polls the queue
func WithPollInterval(interval time.Duration) Option {
	return func(s *Service) {
		s.pollInterval = interval
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
