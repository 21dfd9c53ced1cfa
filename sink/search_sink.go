package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

// SearchSink buffers posted messages and hands them to the search index in batches.
// A batch is flushed when it reaches maxBatch messages or bufferTimeout after its
// first message, whichever comes first.
type SearchSink struct {
	mu            sync.Mutex
	timer         *time.Timer
	index         contract.ISearchIndex
	log           *slog.Logger
	messages      []domain.Message
	maxBatch      int
	bufferTimeout time.Duration
}

func NewSearchSink(index contract.ISearchIndex, log *slog.Logger, maxBatch int, bufferTimeout time.Duration) *SearchSink {
	return &SearchSink{
		index:         index,
		log:           log,
		maxBatch:      maxBatch,
		bufferTimeout: bufferTimeout,
	}
}

func (s *SearchSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.messages = append(s.messages, evt.Message)

	// The first message of a batch arms the timer so that a quiet
	// conversation doesn't wait for the batch to fill up.
	if len(s.messages) == 1 && s.timer == nil {
		s.timer = time.AfterFunc(s.bufferTimeout, func() {
			if err := s.Flush(); err != nil {
				s.log.Error("Timeout flush of search batch failed", "error", err)
			}
		})
	}
	isFull := len(s.messages) >= s.maxBatch
	s.mu.Unlock()

	if isFull {
		return s.Flush()
	}
	return nil
}

// Flush indexes whatever is buffered. The buffer is swapped under the lock
// so that new messages can be accepted while the batch is written.
func (s *SearchSink) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.messages
	s.messages = make([]domain.Message, 0, s.maxBatch)
	s.mu.Unlock()

	if err := s.index.IndexBatch(batch); err != nil {
		return fmt.Errorf("failed to index batch of %d messages: %w", len(batch), err)
	}
	s.log.Debug("Search batch indexed", "count", len(batch))
	return nil
}
