package stream

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"citepay/internal/audit"
	id "citepay/pkg/domain"
)

// capturePublisher records published batches and can fail on demand.
type capturePublisher struct {
	batches [][]*audit.Entry
	fail    bool
}

func (p *capturePublisher) Publish(_ context.Context, entries []*audit.Entry) error {
	if p.fail {
		return errors.New("broker unreachable")
	}
	batch := make([]*audit.Entry, len(entries))
	copy(batch, entries)
	p.batches = append(p.batches, batch)
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) published() int {
	total := 0
	for _, batch := range p.batches {
		total += len(batch)
	}
	return total
}

type WorkerSuite struct {
	suite.Suite
	ctx       context.Context
	entries   *audit.InMemoryStore
	cursor    *InMemoryCursorStore
	publisher *capturePublisher
	worker    *Worker
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.ctx = context.Background()
	s.entries = audit.NewInMemory()
	s.cursor = NewInMemoryCursorStore()
	s.publisher = &capturePublisher{}
	s.worker = NewWorker(s.entries, s.cursor, s.publisher, slog.Default(), 0, 2)
}

func (s *WorkerSuite) append(n int) {
	for i := 0; i < n; i++ {
		s.Require().NoError(s.entries.Append(s.ctx, &audit.Entry{
			ID:         id.NewAuditEntryID(),
			EntityType: audit.EntityCitation,
			EntityID:   uuid.New(),
			Actor:      "cashier-1",
			Action:     audit.ActionCreated,
		}))
	}
}

func (s *WorkerSuite) TestDrainPublishesInBatches() {
	s.append(5)

	s.Require().NoError(s.worker.drain(s.ctx))

	s.Equal(5, s.publisher.published())
	s.Len(s.publisher.batches, 3, "batch size two yields 2+2+1")

	seq, err := s.cursor.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(5), seq)

	s.Run("entries stream in seq order", func() {
		var last int64
		for _, batch := range s.publisher.batches {
			for _, entry := range batch {
				s.Greater(entry.Seq, last)
				last = entry.Seq
			}
		}
	})
}

func (s *WorkerSuite) TestDrainIsIncremental() {
	s.append(2)
	s.Require().NoError(s.worker.drain(s.ctx))
	s.Equal(2, s.publisher.published())

	s.Require().NoError(s.worker.drain(s.ctx))
	s.Equal(2, s.publisher.published(), "nothing new, nothing published")

	s.append(1)
	s.Require().NoError(s.worker.drain(s.ctx))
	s.Equal(3, s.publisher.published())
}

func (s *WorkerSuite) TestPublishFailureKeepsCursor() {
	s.append(3)
	s.publisher.fail = true

	s.Error(s.worker.drain(s.ctx))

	seq, err := s.cursor.Load(s.ctx)
	s.Require().NoError(err)
	s.Zero(seq, "cursor only advances after a successful publish")

	s.Run("retry redelivers from the cursor", func() {
		s.publisher.fail = false
		s.Require().NoError(s.worker.drain(s.ctx))
		s.Equal(3, s.publisher.published())
	})
}
