// Package studio runs the host side of a designer session: it answers
// client handshakes from a page store, applies the edits the client
// requests and pushes the resulting tree back to the client.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pdsdk/pagedesigner/internal/design"
	"github.com/pdsdk/pagedesigner/internal/messenger"
	"github.com/pdsdk/pagedesigner/internal/pagestore"
	"github.com/pdsdk/pagedesigner/internal/protocol"
	"github.com/pdsdk/pagedesigner/internal/sanitize"
)

// Error codes carried by Error events sent to the client.
const (
	CodeNotFound    = "not_found"
	CodeInvalidMove = "invalid_move"
	CodeInternal    = "internal"
)

var (
	errNoHost  = errors.New("studio: host is required")
	errNoStore = errors.New("studio: page store is required")
	errNoPage  = errors.New("studio: page id is required")

	errNotRunning = errors.New("studio: service is not running")
)

// Options configures a Service.
type Options struct {
	Host   *design.Host
	Store  *pagestore.Store
	PageID string
	Logger *log.Logger

	// OnChange, when set, observes every page revision the service
	// applied and broadcast.
	OnChange func(pagestore.Page)
}

// Service binds one host to one stored page.
type Service struct {
	host     *design.Host
	store    *pagestore.Store
	pageID   string
	logger   *log.Logger
	onChange func(pagestore.Page)

	mu      sync.Mutex // serialises mutations
	ctx     context.Context
	cancel  context.CancelFunc
	subs    messenger.Group
	running bool
}

// New validates opts and returns a stopped service.
func New(opts Options) (*Service, error) {
	switch {
	case opts.Host == nil:
		return nil, errNoHost
	case opts.Store == nil:
		return nil, errNoStore
	case opts.PageID == "":
		return nil, errNoPage
	}
	return &Service{
		host:     opts.Host,
		store:    opts.Store,
		pageID:   opts.PageID,
		logger:   opts.Logger,
		onChange: opts.OnChange,
	}, nil
}

// Start makes the host listen for clients. The page must exist so a
// client never receives an empty tree by accident.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.store.Page(ctx, s.pageID); err != nil {
		return fmt.Errorf("studio: load page %s: %w", s.pageID, err)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.subs.Add(
		design.Subscribe(s.host, protocol.ComponentAddedToRegion, s.handleAdded),
		design.Subscribe(s.host, protocol.ComponentMovedToRegion, s.handleMoved),
		design.Subscribe(s.host, protocol.ComponentDeleted, s.handleDeleted),
		design.Subscribe(s.host, protocol.ClientReady, func(protocol.ClientReadyEvent) {
			s.logf("[Studio] client %s ready on page %s", s.host.RemoteID(), s.pageID)
		}),
		design.Subscribe(s.host, protocol.Error, func(ev protocol.ErrorEvent) {
			s.logf("[Studio] client %s reported error %q: %s", s.host.RemoteID(), sanitize.Message(ev.Code), sanitize.Message(ev.Message))
		}),
	)

	return s.host.Connect(ctx, design.HostConnectOptions{
		ConfigFactory: func(ctx context.Context) (protocol.ClientAcknowledgedEvent, error) {
			return s.store.Acknowledgement(ctx, s.pageID)
		},
		OnClientConnected: func(clientID string) {
			s.logf("[Studio] client %s connected to page %s", clientID, s.pageID)
		},
		OnClientDisconnected: func(clientID string) {
			s.logf("[Studio] client %s left page %s", clientID, s.pageID)
		},
		OnError: func(err error) {
			s.logf("[Studio] handshake error: %v", err)
		},
	})
}

// Stop unsubscribes the edit handlers and disconnects the host.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.subs.CloseAll()
	s.host.Disconnect()
}

func (s *Service) handleAdded(ev protocol.ComponentAddedToRegionEvent) {
	s.apply("add "+ev.ComponentID, func(ctx context.Context) (pagestore.Page, error) {
		return s.store.AddComponent(ctx, s.pageID, ev)
	})
}

func (s *Service) handleMoved(ev protocol.ComponentMovedToRegionEvent) {
	s.apply("move "+ev.ComponentID, func(ctx context.Context) (pagestore.Page, error) {
		return s.store.MoveComponent(ctx, s.pageID, ev)
	})
}

func (s *Service) handleDeleted(ev protocol.ComponentDeletedEvent) {
	s.apply("delete "+ev.ComponentID, func(ctx context.Context) (pagestore.Page, error) {
		return s.store.DeleteComponent(ctx, s.pageID, ev)
	})
}

// UpdateProperties stores a property edit made on the host side and
// forwards it to the client.
func (s *Service) UpdateProperties(ctx context.Context, componentID string, props map[string]any) error {
	ev := protocol.ComponentPropertiesChangedEvent{ComponentID: componentID, ComponentProperties: props}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errNotRunning
	}
	page, err := s.store.UpdateProperties(ctx, s.pageID, ev)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("studio: update %s: %w", componentID, err)
	}

	if err := s.host.ChangeComponentProperties(ctx, ev); err != nil {
		return fmt.Errorf("studio: forward properties of %s: %w", componentID, err)
	}
	if s.onChange != nil {
		s.onChange(page)
	}
	return nil
}

func (s *Service) apply(op string, fn func(context.Context) (pagestore.Page, error)) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	page, err := fn(ctx)
	s.mu.Unlock()

	if err != nil {
		s.logf("[Studio] %s on page %s failed: %v", op, s.pageID, err)
		if sendErr := s.host.ReportError(ctx, protocol.ErrorEvent{
			Message: sanitize.Message(err.Error()),
			Code:    errorCode(err),
		}); sendErr != nil {
			s.logf("[Studio] report error: %v", sendErr)
		}
		return
	}

	s.logf("[Studio] %s on page %s applied", op, s.pageID)
	if err := s.host.ChangeComponents(ctx, protocol.ComponentsChangedEvent{Components: page.Components}); err != nil {
		s.logf("[Studio] broadcast components: %v", err)
	}
	if s.onChange != nil {
		s.onChange(page)
	}
}

func errorCode(err error) string {
	switch {
	case pagestore.IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, pagestore.ErrInvalidMove), errors.Is(err, pagestore.ErrInvalidPage):
		return CodeInvalidMove
	default:
		return CodeInternal
	}
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
