package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/reex/reexd/internal/events"
	"github.com/reex/reexd/internal/models"
)

// StateStore is everything the supervisor and its coordinators need from
// the persistent store.
type StateStore interface {
	RecordStore
	FolderSource
	DeleteFolderState(folderID uuid.UUID) error
}

type folderLoop struct {
	cancel      context.CancelFunc
	coordinator *Coordinator
	done        chan struct{}
}

// Supervisor owns the set of active per-folder poll loops. Folders added
// to the collection get a loop; removed folders get their loop stopped and
// their persisted state deleted. A global stop cancels every loop and every
// in-flight execution silently.
type Supervisor struct {
	store      StateStore
	fetcher    TaskFetcher
	engine     Engine
	notifier   Notifier
	resolver   URLResolver
	bus        *events.Bus
	interval   time.Duration
	logger     *slog.Logger
	baseLogger *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	loops   map[uuid.UUID]*folderLoop
}

func NewSupervisor(store StateStore, fetcher TaskFetcher, engine Engine, notifier Notifier, resolver URLResolver, bus *events.Bus, interval time.Duration, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		store:      store,
		fetcher:    fetcher,
		engine:     engine,
		notifier:   notifier,
		resolver:   resolver,
		bus:        bus,
		interval:   interval,
		logger:     logger.With("component", "supervisor"),
		baseLogger: logger,
		loops:      make(map[uuid.UUID]*folderLoop),
	}
}

// Start enables polling and spawns loops for the folders currently in the
// store. Further folder set changes are applied via Reconcile.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.baseCtx != nil {
		s.mu.Unlock()
		return nil
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.group, _ = errgroup.WithContext(s.baseCtx)
	s.mu.Unlock()

	folders, err := s.store.Folders()
	if err != nil {
		return err
	}
	s.Reconcile(folders)
	return nil
}

// Reconcile aligns the running loop set with the given folder collection:
// unknown folders get a loop, vanished folders are stopped and their
// per-folder state deleted.
func (s *Supervisor) Reconcile(folders []models.Folder) {
	s.mu.Lock()
	if s.baseCtx == nil {
		s.mu.Unlock()
		return
	}

	known := make(map[uuid.UUID]bool, len(folders))
	var added []models.Folder
	for _, f := range folders {
		known[f.ID] = true
		if _, ok := s.loops[f.ID]; !ok {
			added = append(added, f)
		}
	}

	var removed []uuid.UUID
	for id := range s.loops {
		if !known[id] {
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()

	for _, f := range added {
		s.startLoop(f)
	}
	for _, id := range removed {
		s.StopFolder(id)
	}
}

func (s *Supervisor) startLoop(folder models.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.baseCtx == nil {
		return
	}
	if _, ok := s.loops[folder.ID]; ok {
		return
	}

	coordinator := NewCoordinator(folder.ID, s.store, s.engine, s.notifier, s.bus, s.baseLogger)
	poller := NewPoller(folder.ID, s.store, s.fetcher, s.resolver, coordinator, s.interval, s.baseLogger)

	loopCtx, cancel := context.WithCancel(s.baseCtx)
	loop := &folderLoop{
		cancel:      cancel,
		coordinator: coordinator,
		done:        make(chan struct{}),
	}
	s.loops[folder.ID] = loop

	s.logger.Info("starting poll loop", "folder", folder.ID.String(), "name", folder.Name)
	s.group.Go(func() error {
		defer close(loop.done)
		poller.Run(loopCtx)
		return nil
	})
}

// StopFolder stops a removed folder's loop, cancels its in-flight
// execution without a timeout record, and deletes its persisted state.
func (s *Supervisor) StopFolder(folderID uuid.UUID) {
	s.mu.Lock()
	loop, ok := s.loops[folderID]
	if ok {
		delete(s.loops, folderID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.logger.Info("stopping poll loop", "folder", folderID.String())
	loop.cancel()
	loop.coordinator.Shutdown()
	<-loop.done

	if err := s.store.DeleteFolderState(folderID); err != nil {
		s.logger.Error("delete folder state failed", "folder", folderID.String(), "error", err)
	}
	s.bus.Publish(events.PollingStopped, folderID)
}

// Stop disables polling globally: all loops and in-flight executions are
// cancelled, nothing is recorded, no folder state is deleted. It does not
// wait for subprocess exit confirmation beyond loop teardown.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.baseCtx == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	group := s.group
	loops := s.loops
	s.loops = make(map[uuid.UUID]*folderLoop)
	s.baseCtx = nil
	s.cancel = nil
	s.group = nil
	s.mu.Unlock()

	cancel()
	for id, loop := range loops {
		loop.coordinator.Shutdown()
		s.bus.Publish(events.PollingStopped, id)
	}
	group.Wait()
	s.logger.Info("polling stopped")
}

// Active returns the ids of folders with a running poll loop.
func (s *Supervisor) Active() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(s.loops))
	for id := range s.loops {
		ids = append(ids, id)
	}
	return ids
}
