package app

import (
	"context"

	"github.com/datallboy/nzbweaver/internal/domain"
	"github.com/datallboy/nzbweaver/internal/infra/config"
	"github.com/datallboy/nzbweaver/internal/infra/logger"
)

// Session is one server connection as seen by a download worker.
// *nntp.Conn satisfies it.
type Session interface {
	Connect(ctx context.Context) error
	Authenticate(ctx context.Context) error
	FetchArticle(ctx context.Context, articleID string) ([]byte, error)
	Broken() bool
	Close() error
}

// SessionFactory builds the session owned by worker id.
type SessionFactory func(id int) Session

// SegmentSource locates the decoded temporary of a segment on disk.
type SegmentSource interface {
	SegmentPath(f *domain.File, seg *domain.Segment) string
}

type Processor interface {
	// This allows the engine to trigger naming/assembly/repair/extract without importing processor
	PostProcess(ctx context.Context, rel *domain.Release, src SegmentSource) error
}

// Context hold the core environment and shared resources for nzbweaver.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	// High-level interfaces for services to use
	Sessions  SessionFactory
	Processor Processor

	// Quiet suppresses the progress line and stdout log mirroring
	Quiet bool
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
