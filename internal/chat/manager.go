package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/channel"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const defaultQueueSize = 64

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithEndpoint names the relay endpoint in logs and in ConnectError.
func WithEndpoint(endpoint string) ManagerOption {
	return func(m *Manager) { m.endpoint = endpoint }
}

// WithClock replaces time.Now for stamping received messages.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithQueueSize sets how many inbound messages may wait for the dispatcher before
// the transport reader blocks.
func WithQueueSize(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// Manager owns the connection lifecycle of the chat client. Each start cycle uses a
// fresh channel from the factory; inbound ReceiveMessage events are appended to the
// store in delivery order by a single dispatch goroutine.
type Manager struct {
	factory   channel.Factory
	store     *Store
	log       zerolog.Logger
	endpoint  string
	now       func() time.Time
	queueSize int

	mu        sync.Mutex
	status    Status
	sess      *session
	observers []statusObserver
	nextObsID uint64
}

type statusObserver struct {
	id uint64
	fn func(Status)
}

// session is one start cycle: a channel, its ReceiveMessage subscription and the dispatcher.
type session struct {
	ch        channel.Channel
	off       func()
	events    chan Message
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewManager builds a manager in StatusDisconnected.
func NewManager(factory channel.Factory, store *Store, logger *zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		factory:   factory,
		store:     store,
		log:       logger.With().Str("component", "chat_manager").Logger(),
		now:       time.Now,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status returns the current lifecycle phase.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connected reports whether Send is currently allowed.
func (m *Manager) Connected() bool {
	return m.Status() == StatusConnected
}

// OnStatus registers fn to be called after every status change. Observers run on the
// goroutine that caused the transition, outside the manager lock.
func (m *Manager) OnStatus(fn func(Status)) func() {
	m.mu.Lock()
	m.nextObsID++
	id := m.nextObsID
	m.observers = append(m.observers, statusObserver{id: id, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// Start establishes the connection. It blocks until the channel is connected or failed.
// A failure leaves the manager in StatusFailed and is returned as *ConnectError.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	switch m.status {
	case StatusConnecting, StatusConnected:
		m.mu.Unlock()
		return ErrAlreadyStarted
	}

	var changes []Status
	if m.status == StatusFailed {
		changes = append(changes, StatusDisconnected)
	}
	s := m.newSession()
	m.sess = s
	m.status = StatusConnecting
	changes = append(changes, StatusConnecting)
	m.mu.Unlock()

	m.notify(changes...)
	m.log.Info().Str("endpoint", m.endpoint).Msg("connecting")

	err := s.ch.Connect(ctx)

	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		s.release()
		m.log.Debug().Str("endpoint", m.endpoint).Msg("stopped while connecting")
		return ErrStopped
	}
	if err != nil {
		m.sess = nil
		m.status = StatusFailed
		m.mu.Unlock()

		s.release()
		m.log.Error().Err(err).Str("endpoint", m.endpoint).Msg("connection failed")
		m.notify(StatusFailed)
		return &ConnectError{Endpoint: m.endpoint, Err: err}
	}
	m.status = StatusConnected
	m.mu.Unlock()

	go m.watch(s)
	m.log.Info().Str("endpoint", m.endpoint).Msg("connected")
	m.notify(StatusConnected)
	return nil
}

// Stop tears down the current cycle. Messages delivered before Stop are in the store when
// it returns; nothing is appended afterwards.
// Calling Stop again, or before Start, is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.status == StatusDisconnected {
		m.mu.Unlock()
		return
	}
	s := m.sess
	m.sess = nil
	m.status = StatusDisconnected
	m.mu.Unlock()

	if s != nil {
		s.release()
	}
	m.log.Info().Str("endpoint", m.endpoint).Msg("disconnected")
	m.notify(StatusDisconnected)
}

// Send invokes SendMessage(author, body) on the live channel. Blank fields or a manager
// that is not connected are rejected with an error wrapping ErrSendRejected, without
// touching the channel. Send never appends to the store; the relay echo does.
func (m *Manager) Send(ctx context.Context, author, body string) error {
	author, body = strings.TrimSpace(author), strings.TrimSpace(body)
	if author == "" {
		return ErrEmptyAuthor
	}
	if body == "" {
		return ErrEmptyBody
	}

	m.mu.Lock()
	s := m.sess
	connected := m.status == StatusConnected && s != nil
	m.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	if err := s.ch.Invoke(ctx, proto.TargetSendMessage, author, body); err != nil {
		m.log.Warn().Err(err).Str("author", author).Msg("send failed")
		return &SendError{Err: err}
	}
	return nil
}

func (m *Manager) newSession() *session {
	s := &session{
		ch:     m.factory(),
		events: make(chan Message, m.queueSize),
		done:   make(chan struct{}),
	}
	s.off = s.ch.On(proto.TargetReceiveMessage, m.receive(s))

	s.wg.Add(1)
	go m.dispatch(s)
	return s
}

// receive runs on the channel's reader goroutine.
func (m *Manager) receive(s *session) channel.Handler {
	return func(args proto.Args) {
		author, err := args.String(0)
		if err != nil {
			m.log.Warn().Err(err).Msg("skipping ReceiveMessage with undecodable author")
			return
		}
		body, err := args.String(1)
		if err != nil {
			m.log.Warn().Err(err).Msg("skipping ReceiveMessage with undecodable body")
			return
		}
		msg, err := NewMessage(author, body, m.now())
		if err != nil {
			m.log.Warn().Err(err).Str("author", author).Msg("skipping invalid ReceiveMessage")
			return
		}

		select {
		case s.events <- msg:
		case <-s.done:
			m.log.Debug().Str("author", author).Msg("discarding event from released connection")
		}
	}
}

func (m *Manager) dispatch(s *session) {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.events:
			m.store.Append(msg)
		case <-s.done:
			// Events already handed over by the transport are kept.
			for {
				select {
				case msg := <-s.events:
					m.store.Append(msg)
				default:
					return
				}
			}
		}
	}
}

// watch moves a connected cycle to StatusDisconnected when the channel closes on its own.
func (m *Manager) watch(s *session) {
	select {
	case <-s.done:
		return
	case <-s.ch.Closed():
	}

	m.mu.Lock()
	if m.sess != s {
		m.mu.Unlock()
		return
	}
	m.sess = nil
	m.status = StatusDisconnected
	m.mu.Unlock()

	s.release()
	m.log.Warn().Err(s.ch.CloseErr()).Str("endpoint", m.endpoint).Msg("connection closed")
	m.notify(StatusDisconnected)
}

func (m *Manager) notify(changes ...Status) {
	if len(changes) == 0 {
		return
	}
	m.mu.Lock()
	observers := append([]statusObserver(nil), m.observers...)
	m.mu.Unlock()

	for _, st := range changes {
		for _, o := range observers {
			o.fn(st)
		}
	}
}

// release drops the subscription, lets the dispatcher flush what was already delivered,
// and disconnects the channel. It must not be called from a store subscriber.
func (s *session) release() {
	s.closeOnce.Do(func() {
		s.off()
		close(s.done)
		_ = s.ch.Disconnect()
	})
	s.wg.Wait()
}
