// Copyright 2024-2026 Aiku AI

// Package loopback provides in-memory reference modules: a master that
// records everything delivered to it, a slave that assigns uids and echoes
// text back, and a middleware that drops marked messages. They implement
// the full channel and middleware contracts without any external platform,
// which makes them the default profile content and the backbone of the
// end-to-end tests.
package loopback

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aiku/chatbridge/pkg/bridge"
	"github.com/aiku/chatbridge/pkg/ids"
	"github.com/aiku/chatbridge/pkg/registry"
)

// Module ids under which the loopback modules register themselves.
const (
	MasterID     ids.ModuleID = "chatbridge.modules.loopback.LoopbackMaster"
	SlaveID      ids.ModuleID = "chatbridge.modules.loopback.LoopbackSlave"
	MiddlewareID ids.ModuleID = "chatbridge.middlewares.loopback.FilterMiddleware"
)

// Version of the loopback module set.
const Version = "1.0.0"

// DropPrefix marks a message for consumption by the filter middleware.
const DropPrefix = "!drop"

func init() {
	registry.MustRegisterMaster(MasterID, registry.Info{Name: "Loopback Master", Emoji: "\U0001F501", Version: Version},
		func(ctx registry.BuildContext) (bridge.Channel, error) {
			return NewMaster(ctx), nil
		})
	registry.MustRegisterSlave(SlaveID, registry.Info{Name: "Loopback Slave", Emoji: "\U0001F501", Version: Version},
		func(ctx registry.BuildContext) (bridge.Channel, error) {
			return NewSlave(ctx), nil
		})
	registry.MustRegisterMiddleware(MiddlewareID, registry.Info{Name: "Filter Middleware", Version: Version},
		func(ctx registry.BuildContext) (bridge.Middleware, error) {
			return NewMiddleware(ctx), nil
		})
}

// Master is the loopback master channel. Everything dispatched to it is
// recorded and retrievable for inspection.
type Master struct {
	bridge.ModuleInfo
	coord *bridge.Coordinator
	log   zerolog.Logger

	mu       sync.Mutex
	received []*bridge.Message
	statuses []bridge.Status
	uidSeq   int

	stopOnce sync.Once
	stopChan chan struct{}
}

var _ bridge.Channel = (*Master)(nil)

// NewMaster constructs the loopback master.
func NewMaster(ctx registry.BuildContext) *Master {
	return &Master{
		ModuleInfo: bridge.NewModuleInfo(MasterID, "Loopback Master", "\U0001F501", Version, ctx.InstanceID),
		coord:      ctx.Coordinator,
		log:        ctx.Log,
		stopChan:   make(chan struct{}),
	}
}

func (m *Master) ChannelType() bridge.ChannelType { return bridge.ChannelTypeMaster }

func (m *Master) SupportedMessageTypes() bridge.MsgTypeSet {
	return bridge.NewMsgTypeSet(bridge.AllMsgTypes...)
}

// Poll blocks until StopPolling is called or the context is cancelled.
// The loopback master produces no spontaneous events.
func (m *Master) Poll(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-m.stopChan:
	}
	return nil
}

func (m *Master) StopPolling() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Master) SendMessage(_ context.Context, msg *bridge.Message) (*bridge.Message, error) {
	if msg.DeliverTo != m.ID() {
		return nil, fmt.Errorf("message for %q delivered to %q: %w", msg.DeliverTo, m.ID(), bridge.ErrChannelNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uidSeq++
	msg.UID = ids.MessageID(fmt.Sprintf("master-%d", m.uidSeq))
	m.received = append(m.received, msg)
	m.log.Debug().Str("uid", string(msg.UID)).Str("type", string(msg.Type)).Msg("Master received message")
	return msg, nil
}

func (m *Master) SendStatus(_ context.Context, status bridge.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *Master) GetChats(context.Context) ([]*bridge.Chat, error) {
	return []*bridge.Chat{bridge.SelfChat(m), bridge.SystemChat(m)}, nil
}

func (m *Master) GetChat(_ context.Context, chatUID, _ ids.ChatID) (*bridge.Chat, error) {
	switch chatUID {
	case ids.SelfChatID:
		return bridge.SelfChat(m), nil
	case ids.SystemChatID:
		return bridge.SystemChat(m), nil
	}
	return nil, fmt.Errorf("chat %q: %w", chatUID, bridge.ErrChatNotFound)
}

// Received returns a snapshot of every message delivered to the master.
func (m *Master) Received() []*bridge.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*bridge.Message(nil), m.received...)
}

// Statuses returns a snapshot of every status delivered to the master.
func (m *Master) Statuses() []bridge.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bridge.Status(nil), m.statuses...)
}

// Slave is the loopback slave channel. It simulates a remote platform with
// one user and one group chat, assigns uids on delivery, and echoes text
// messages back to the master through the coordinator.
type Slave struct {
	bridge.ModuleInfo
	coord *bridge.Coordinator
	log   zerolog.Logger

	contact *bridge.Chat
	lobby   *bridge.Chat
	extras  bridge.ExtraFuncs

	mu       sync.Mutex
	received []*bridge.Message
	statuses []bridge.Status
	byUID    map[ids.MessageID]*bridge.Message
	uidSeq   int

	events   chan *bridge.Message
	stopOnce sync.Once
	stopChan chan struct{}
}

var (
	_ bridge.Channel       = (*Slave)(nil)
	_ bridge.ExtraProvider = (*Slave)(nil)
	_ bridge.MessageLookup = (*Slave)(nil)
)

// NewSlave constructs the loopback slave with its built-in chats and extra
// functions.
func NewSlave(ctx registry.BuildContext) *Slave {
	s := &Slave{
		ModuleInfo: bridge.NewModuleInfo(SlaveID, "Loopback Slave", "\U0001F501", Version, ctx.InstanceID),
		coord:      ctx.Coordinator,
		log:        ctx.Log,
		byUID:      make(map[ids.MessageID]*bridge.Message),
		events:     make(chan *bridge.Message, 16),
		stopChan:   make(chan struct{}),
	}
	s.contact = &bridge.Chat{
		ModuleID:   s.ID(),
		ModuleName: s.Name(),
		UID:        "alice",
		Name:       "Alice",
		Type:       bridge.ChatTypeUser,
	}
	s.lobby = &bridge.Chat{
		ModuleID:   s.ID(),
		ModuleName: s.Name(),
		UID:        "lobby",
		Name:       "Lobby",
		Type:       bridge.ChatTypeGroup,
	}
	s.lobby.AddMember(&bridge.Chat{UID: "alice", Name: "Alice", Type: bridge.ChatTypeUser})
	s.lobby.AddMember(&bridge.Chat{UID: "bob", Name: "Bob", Type: bridge.ChatTypeUser})

	s.extras.MustAdd("list_chats", "List every chat on this slave. Usage: {function_name}", s.extraListChats)
	s.extras.MustAdd("echo_count", "Count messages echoed so far. Usage: {function_name}", s.extraEchoCount)
	return s
}

func (s *Slave) ChannelType() bridge.ChannelType { return bridge.ChannelTypeSlave }

func (s *Slave) SupportedMessageTypes() bridge.MsgTypeSet {
	return bridge.NewMsgTypeSet(bridge.MsgTypeText, bridge.MsgTypeImage, bridge.MsgTypeFile, bridge.MsgTypeLink, bridge.MsgTypeStatus)
}

// Poll consumes simulated platform events and hands each one to the
// coordinator, preserving arrival order.
func (s *Slave) Poll(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopChan:
			return nil
		case evt := <-s.events:
			if _, err := s.coord.SendMessage(ctx, evt); err != nil {
				s.log.Error().Err(err).
					Str("token", bridge.UserFacingError(err)).
					Msg("Failed to dispatch inbound message")
			}
		}
	}
}

func (s *Slave) StopPolling() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Inject queues a simulated inbound platform event for the poll loop. The
// message is addressed to the master unless DeliverTo is already set.
func (s *Slave) Inject(msg *bridge.Message) {
	if msg.DeliverTo == "" && s.coord != nil && s.coord.Master() != nil {
		msg.DeliverTo = s.coord.Master().ID()
	}
	if msg.Chat == nil {
		msg.Chat = s.contact
	}
	if msg.Author == nil {
		msg.Author = s.contact
	}
	if msg.UID == "" {
		msg.UID = ids.MessageID(uuid.NewString())
	}
	s.events <- msg
}

func (s *Slave) SendMessage(ctx context.Context, msg *bridge.Message) (*bridge.Message, error) {
	if msg.DeliverTo != s.ID() {
		return nil, fmt.Errorf("message for %q delivered to %q: %w", msg.DeliverTo, s.ID(), bridge.ErrChannelNotFound)
	}
	if !s.SupportedMessageTypes().Contains(msg.Type) {
		return nil, fmt.Errorf("%s does not support %s: %w", s.ID(), msg.Type, bridge.ErrMessageTypeNotSupported)
	}
	if msg.Chat == nil || s.lookupChat(msg.Chat.UID) == nil {
		return nil, fmt.Errorf("chat %v: %w", msg.Chat, bridge.ErrChatNotFound)
	}
	if msg.Edit {
		s.mu.Lock()
		_, known := s.byUID[msg.UID]
		s.mu.Unlock()
		if !known {
			return nil, fmt.Errorf("edit of %q: %w", msg.UID, bridge.ErrMessageNotFound)
		}
	}

	s.mu.Lock()
	if !msg.Edit {
		s.uidSeq++
		msg.UID = ids.MessageID(fmt.Sprintf("slave-%d", s.uidSeq))
	}
	s.received = append(s.received, msg)
	s.byUID[msg.UID] = msg
	s.mu.Unlock()

	// Transient indicators are shown, never stored or echoed.
	if msg.Type == bridge.MsgTypeStatus {
		s.mu.Lock()
		delete(s.byUID, msg.UID)
		s.mu.Unlock()
		return msg, nil
	}

	if msg.Type == bridge.MsgTypeText && !msg.IsSystem {
		s.echo(ctx, msg)
	}
	return msg, nil
}

// echo bounces a text message back to the master, posing as the contact.
func (s *Slave) echo(ctx context.Context, msg *bridge.Message) {
	if s.coord == nil || s.coord.Master() == nil {
		return
	}
	reply := &bridge.Message{
		DeliverTo: s.coord.Master().ID(),
		Author:    s.contact,
		Chat:      msg.Chat,
		Type:      bridge.MsgTypeText,
		UID:       ids.MessageID(uuid.NewString()),
		Text:      "echo: " + msg.Text,
		Target:    msg.TargetOf(),
	}
	if _, err := s.coord.SendMessage(ctx, reply); err != nil {
		s.log.Warn().Err(err).Str("token", bridge.UserFacingError(err)).Msg("Echo dispatch failed")
	}
}

func (s *Slave) SendStatus(_ context.Context, status bridge.Status) error {
	if err := status.Verify(); err != nil {
		return &bridge.MessageError{Reason: "invalid status", Cause: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *Slave) GetChats(context.Context) ([]*bridge.Chat, error) {
	return []*bridge.Chat{bridge.SelfChat(s), bridge.SystemChat(s), s.contact, s.lobby}, nil
}

func (s *Slave) GetChat(_ context.Context, chatUID, memberUID ids.ChatID) (*bridge.Chat, error) {
	chat := s.lookupChat(chatUID)
	if chat == nil {
		return nil, fmt.Errorf("chat %q: %w", chatUID, bridge.ErrChatNotFound)
	}
	if memberUID == "" {
		return chat, nil
	}
	member := chat.Member(memberUID)
	if member == nil {
		return nil, fmt.Errorf("member %q of %q: %w", memberUID, chatUID, bridge.ErrChatNotFound)
	}
	return member, nil
}

func (s *Slave) lookupChat(uid ids.ChatID) *bridge.Chat {
	switch uid {
	case ids.SelfChatID:
		return bridge.SelfChat(s)
	case ids.SystemChatID:
		return bridge.SystemChat(s)
	case s.contact.UID:
		return s.contact
	case s.lobby.UID:
		return s.lobby
	}
	return nil
}

func (s *Slave) GetMessageByID(_ context.Context, _ *bridge.Chat, msgID ids.MessageID) (*bridge.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byUID[msgID]
	if !ok {
		return nil, fmt.Errorf("message %q: %w", msgID, bridge.ErrMessageNotFound)
	}
	return msg, nil
}

func (s *Slave) ExtraFunctions() map[string]bridge.ExtraFunc {
	return s.extras.Functions()
}

func (s *Slave) extraListChats(ctx context.Context, _ []string) (string, error) {
	chats, err := s.GetChats(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, len(chats))
	for i, chat := range chats {
		names[i] = chat.String()
	}
	return strings.Join(names, "\n"), nil
}

func (s *Slave) extraEchoCount(context.Context, []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d messages received", len(s.received)), nil
}

// Received returns a snapshot of every message delivered to the slave.
func (s *Slave) Received() []*bridge.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*bridge.Message(nil), s.received...)
}

// Statuses reports every status delivered to this slave so far.
func (s *Slave) Statuses() []bridge.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bridge.Status(nil), s.statuses...)
}

// Middleware drops any message whose text carries the DropPrefix marker
// and passes everything else through untouched. Statuses always pass.
type Middleware struct {
	bridge.ModuleInfo
	log zerolog.Logger

	mu      sync.Mutex
	dropped int
}

var _ bridge.Middleware = (*Middleware)(nil)

// NewMiddleware constructs the filter middleware.
func NewMiddleware(ctx registry.BuildContext) *Middleware {
	return &Middleware{
		ModuleInfo: bridge.NewModuleInfo(MiddlewareID, "Filter Middleware", "", Version, ctx.InstanceID),
		log:        ctx.Log,
	}
}

func (f *Middleware) ProcessMessage(_ context.Context, msg *bridge.Message) (*bridge.Message, error) {
	if strings.HasPrefix(msg.Text, DropPrefix) {
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
		f.log.Debug().Str("uid", string(msg.UID)).Msg("Dropped marked message")
		return nil, nil
	}
	return msg, nil
}

func (f *Middleware) ProcessStatus(_ context.Context, status bridge.Status) (bridge.Status, error) {
	return status, nil
}

// Dropped reports how many messages the filter has consumed.
func (f *Middleware) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}
