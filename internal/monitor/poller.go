package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reex/reexd/internal/models"
)

// TaskFetcher retrieves the pending task list for a folder URL.
type TaskFetcher interface {
	FetchTasks(ctx context.Context, url string) []models.RemoteTask
}

// FolderSource supplies a fresh folder snapshot each tick, so settings
// edits (URL, commands, shell) apply without restarting the loop.
type FolderSource interface {
	Folders() ([]models.Folder, error)
}

// URLResolver maps a configured remote URL to a concrete endpoint.
type URLResolver interface {
	ResolveURL(raw string) (string, error)
}

// Poller drives one folder's poll schedule: an immediate tick on start,
// then one per interval. Only the first task in the fetched list is
// considered per tick; the remote side surfaces its latest pending task
// first and owns sequencing.
type Poller struct {
	folderID    uuid.UUID
	source      FolderSource
	fetcher     TaskFetcher
	resolver    URLResolver
	coordinator *Coordinator
	interval    time.Duration
	logger      *slog.Logger
}

func NewPoller(folderID uuid.UUID, source FolderSource, fetcher TaskFetcher, resolver URLResolver, coordinator *Coordinator, interval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		folderID:    folderID,
		source:      source,
		fetcher:     fetcher,
		resolver:    resolver,
		coordinator: coordinator,
		interval:    interval,
		logger:      logger.With("component", "poller", "folder", folderID.String()),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	folder, ok := p.snapshot()
	if !ok {
		return
	}
	if folder.RemoteTaskURL == "" {
		return
	}

	url := folder.RemoteTaskURL
	if p.resolver != nil {
		resolved, err := p.resolver.ResolveURL(url)
		if err != nil {
			p.logger.Warn("resolve remote url failed", "url", url, "error", err)
			return
		}
		url = resolved
	}

	tasks := p.fetcher.FetchTasks(ctx, url)
	if len(tasks) == 0 {
		return
	}

	p.coordinator.HandleTask(ctx, folder, tasks[0])
}

func (p *Poller) snapshot() (models.Folder, bool) {
	folders, err := p.source.Folders()
	if err != nil {
		p.logger.Warn("load folders failed", "error", err)
		return models.Folder{}, false
	}
	for _, f := range folders {
		if f.ID == p.folderID {
			return f, true
		}
	}
	return models.Folder{}, false
}
