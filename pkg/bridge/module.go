// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"

	"github.com/aiku/chatbridge/pkg/ids"
)

// ChannelType distinguishes the user's own surface from bridged platforms.
type ChannelType string

const (
	ChannelTypeMaster ChannelType = "Master"
	ChannelTypeSlave  ChannelType = "Slave"
)

// Module is the identity surface every channel and middleware exposes.
type Module interface {
	// ID returns the composite module id, including any instance suffix.
	ID() ids.ModuleID
	Name() string
	Emoji() string
	Version() string
	InstanceID() string
}

// Channel is a master or slave conversation surface.
//
// Poll runs until StopPolling is called, producing messages and statuses by
// calling into the coordinator's dispatch methods. StopPolling is
// idempotent and causes Poll to return as soon as in-flight work settles;
// the context passed to Poll is cancelled by the runner as a second
// cooperative stop signal.
type Channel interface {
	Module

	ChannelType() ChannelType
	SupportedMessageTypes() MsgTypeSet

	Poll(ctx context.Context) error
	StopPolling()

	// SendMessage delivers a message whose DeliverTo equals this module
	// and returns it with the UID assigned by the module. Failures use
	// the typed errors in this package: ErrChatNotFound,
	// ErrMessageTypeNotSupported, ErrMessageNotFound,
	// ErrOperationNotSupported, or a generic MessageError.
	SendMessage(ctx context.Context, msg *Message) (*Message, error)
	// SendStatus mirrors SendMessage for status variants.
	SendStatus(ctx context.Context, status Status) error

	GetChats(ctx context.Context) ([]*Chat, error)
	// GetChat resolves a chat by UID. A non-empty memberUID resolves a
	// member within the group identified by chatUID.
	GetChat(ctx context.Context, chatUID, memberUID ids.ChatID) (*Chat, error)
}

// ChatPictureProvider is implemented by channels that can fetch chat
// avatars.
type ChatPictureProvider interface {
	GetChatPicture(ctx context.Context, chat *Chat) ([]byte, error)
}

// MessageLookup is implemented by channels that can resolve prior messages
// by id.
type MessageLookup interface {
	GetMessageByID(ctx context.Context, chat *Chat, msgID ids.MessageID) (*Message, error)
}

// ExtraProvider is implemented by slaves that publish side-channel
// commands. The returned map is an immutable copy built at construction.
type ExtraProvider interface {
	ExtraFunctions() map[string]ExtraFunc
}

// Middleware interposes on message and status dispatch.
//
// ProcessMessage may return the same message, a new or modified one, or
// (nil, nil) to consume it. A non-nil error aborts dispatch of this one
// item; the coordinator logs it and surfaces it to the source channel.
// Middlewares must be safe for concurrent invocation or serialize
// internally.
type Middleware interface {
	Module

	ProcessMessage(ctx context.Context, msg *Message) (*Message, error)
	ProcessStatus(ctx context.Context, status Status) (Status, error)
}

// ModuleInfo is the embeddable identity block shared by channel and
// middleware implementations.
type ModuleInfo struct {
	ModuleID      ids.ModuleID
	ModuleName    string
	ModuleEmoji   string
	ModuleVersion string
	Instance      string
}

// NewModuleInfo stamps an identity block, folding the instance id into the
// composite module id.
func NewModuleInfo(base ids.ModuleID, name, emoji, version, instance string) ModuleInfo {
	return ModuleInfo{
		ModuleID:      base.WithInstance(instance),
		ModuleName:    name,
		ModuleEmoji:   emoji,
		ModuleVersion: version,
		Instance:      instance,
	}
}

func (i ModuleInfo) ID() ids.ModuleID   { return i.ModuleID }
func (i ModuleInfo) Name() string       { return i.ModuleName }
func (i ModuleInfo) Emoji() string      { return i.ModuleEmoji }
func (i ModuleInfo) Version() string    { return i.ModuleVersion }
func (i ModuleInfo) InstanceID() string { return i.Instance }
