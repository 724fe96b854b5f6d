// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aiku/chatbridge/pkg/ids"
)

// mockChannel is a configurable in-memory channel for coordinator tests.
// It records every delivered message and status and assigns sequential
// message UIDs.
type mockChannel struct {
	ModuleInfo
	chanType  ChannelType
	supported MsgTypeSet

	mu           sync.Mutex
	sentMessages []*Message
	sentStatuses []Status
	uidSeq       int
	sendErr      error

	stopOnce sync.Once
	stopChan chan struct{}
}

func newMockMaster(id ids.ModuleID) *mockChannel {
	return &mockChannel{
		ModuleInfo: NewModuleInfo(id, "Mock Master", "\U0001F3E0", "1.0.0", ""),
		chanType:   ChannelTypeMaster,
		supported:  NewMsgTypeSet(AllMsgTypes...),
		stopChan:   make(chan struct{}),
	}
}

func newMockSlave(id ids.ModuleID, instance string) *mockChannel {
	return &mockChannel{
		ModuleInfo: NewModuleInfo(id, "Mock Slave", "\U0001F916", "1.0.0", instance),
		chanType:   ChannelTypeSlave,
		supported:  NewMsgTypeSet(MsgTypeText, MsgTypeLink),
		stopChan:   make(chan struct{}),
	}
}

func (m *mockChannel) ChannelType() ChannelType          { return m.chanType }
func (m *mockChannel) SupportedMessageTypes() MsgTypeSet { return m.supported }

func (m *mockChannel) Poll(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-m.stopChan:
	}
	return nil
}

func (m *mockChannel) StopPolling() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *mockChannel) SendMessage(_ context.Context, msg *Message) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if !m.supported.Contains(msg.Type) {
		return nil, fmt.Errorf("%s: %w", m.ID(), ErrMessageTypeNotSupported)
	}
	m.uidSeq++
	msg.UID = ids.MessageID(fmt.Sprintf("%s-uid-%d", m.ID(), m.uidSeq))
	m.sentMessages = append(m.sentMessages, msg)
	return msg, nil
}

func (m *mockChannel) SendStatus(_ context.Context, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sentStatuses = append(m.sentStatuses, status)
	return nil
}

func (m *mockChannel) GetChats(context.Context) ([]*Chat, error) {
	return []*Chat{SelfChat(m), SystemChat(m)}, nil
}

func (m *mockChannel) GetChat(_ context.Context, chatUID, memberUID ids.ChatID) (*Chat, error) {
	switch chatUID {
	case ids.SelfChatID:
		return SelfChat(m), nil
	case ids.SystemChatID:
		return SystemChat(m), nil
	}
	return nil, fmt.Errorf("%s: chat %q: %w", m.ID(), chatUID, ErrChatNotFound)
}

func (m *mockChannel) messages() []*Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Message(nil), m.sentMessages...)
}

func (m *mockChannel) statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Status(nil), m.sentStatuses...)
}

// Middleware modes used across the coordinator tests.
const (
	modePassthrough      = "passthrough"
	modeAppendText       = "append_text"
	modeInterrupt        = "interrupt"
	modeInterruptNonText = "interrupt_non_text"
	modeFail             = "fail"
)

// textMiddleware mutates or drops traffic according to its mode.
type textMiddleware struct {
	ModuleInfo
	mode   string
	suffix string

	mu        sync.Mutex
	seenUIDs  []ids.MessageID
	seenCount int
}

func newTextMiddleware(mode string) *textMiddleware {
	return &textMiddleware{
		ModuleInfo: NewModuleInfo("tests.mw.TextMiddleware", "Text Middleware", "", "1.0.0", ""),
		mode:       mode,
		suffix:     " (Processed by mw)",
	}
}

func (t *textMiddleware) ProcessMessage(_ context.Context, msg *Message) (*Message, error) {
	t.mu.Lock()
	t.seenUIDs = append(t.seenUIDs, msg.UID)
	t.seenCount++
	t.mu.Unlock()
	switch t.mode {
	case modeAppendText:
		msg.Text += t.suffix
		return msg, nil
	case modeInterrupt:
		return nil, nil
	case modeInterruptNonText:
		if msg.Type != MsgTypeText {
			return nil, nil
		}
		return msg, nil
	case modeFail:
		return nil, fmt.Errorf("middleware exploded")
	default:
		return msg, nil
	}
}

func (t *textMiddleware) ProcessStatus(_ context.Context, status Status) (Status, error) {
	t.mu.Lock()
	t.seenCount++
	t.mu.Unlock()
	switch t.mode {
	case modeInterrupt:
		return nil, nil
	case modeFail:
		return nil, fmt.Errorf("middleware exploded")
	default:
		return status, nil
	}
}

func (t *textMiddleware) seen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seenCount
}

// newTestCoordinator wires a master, one slave and the given middlewares
// into a fresh coordinator.
func newTestCoordinator(mws ...Middleware) (*Coordinator, *mockChannel, *mockChannel) {
	coord := NewCoordinator("test", zerolog.Nop())
	master := newMockMaster("tests.master.MockMaster")
	slave := newMockSlave("tests.slave.MockSlave", "")
	if err := coord.AddChannel(master); err != nil {
		panic(err)
	}
	if err := coord.AddChannel(slave); err != nil {
		panic(err)
	}
	for _, mw := range mws {
		coord.AddMiddleware(mw)
	}
	return coord, master, slave
}

// textMessage builds a valid text message from master to the given slave.
func textMessage(master, slave Channel, text string) *Message {
	author := SelfChat(master)
	return &Message{
		DeliverTo: slave.ID(),
		Author:    author,
		Chat:      author,
		Type:      MsgTypeText,
		UID:       ids.MessageID("src-" + strings.ReplaceAll(text, " ", "-")),
		Text:      text,
	}
}
