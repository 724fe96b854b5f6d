// Copyright 2024-2026 Aiku AI

package bridge

import (
	"fmt"

	"github.com/aiku/chatbridge/pkg/ids"
)

// Status is the sibling of Message for non-message events. Concrete
// variants are ChatUpdates, MemberUpdates, MessageRemoval, ReactToMessage
// and MessageReactionsUpdate.
type Status interface {
	statusKind() string
	Verify() error
}

// ChatUpdates notifies the master that the chat list of a channel changed.
type ChatUpdates struct {
	Channel       ids.ModuleID `json:"channel"`
	NewChats      []ids.ChatID `json:"new_chats,omitempty"`
	RemovedChats  []ids.ChatID `json:"removed_chats,omitempty"`
	ModifiedChats []ids.ChatID `json:"modified_chats,omitempty"`
}

func (*ChatUpdates) statusKind() string { return "chat_updates" }

func (s *ChatUpdates) Verify() error {
	if s.Channel == "" {
		return fmt.Errorf("chat updates: channel is empty")
	}
	return nil
}

// MemberUpdates notifies the master that the member list of one group chat
// changed.
type MemberUpdates struct {
	Channel         ids.ModuleID `json:"channel"`
	ChatID          ids.ChatID   `json:"chat_id"`
	NewMembers      []ids.ChatID `json:"new_members,omitempty"`
	RemovedMembers  []ids.ChatID `json:"removed_members,omitempty"`
	ModifiedMembers []ids.ChatID `json:"modified_members,omitempty"`
}

func (*MemberUpdates) statusKind() string { return "member_updates" }

func (s *MemberUpdates) Verify() error {
	if s.Channel == "" {
		return fmt.Errorf("member updates: channel is empty")
	}
	if s.ChatID == "" {
		return fmt.Errorf("member updates: chat id is empty")
	}
	return nil
}

// MessageRemoval asks the destination channel to recall a message from
// everyone.
type MessageRemoval struct {
	SourceChannel      ids.ModuleID `json:"source_channel"`
	DestinationChannel ids.ModuleID `json:"destination_channel"`
	Message            *Message     `json:"message"`
}

func (*MessageRemoval) statusKind() string { return "message_removal" }

func (s *MessageRemoval) Verify() error {
	if s.DestinationChannel == "" {
		return fmt.Errorf("message removal: destination channel is empty")
	}
	if s.Message == nil {
		return fmt.Errorf("message removal: message is nil")
	}
	return nil
}

// ReactToMessage asks the channel owning Chat to apply a reaction to a
// message. A nil reaction clears the caller's reactions.
type ReactToMessage struct {
	Chat      *Chat             `json:"chat"`
	MessageID ids.MessageID     `json:"msg_id"`
	Reaction  *ids.ReactionName `json:"reaction"`
}

func (*ReactToMessage) statusKind() string { return "react_to_message" }

func (s *ReactToMessage) Verify() error {
	if s.Chat == nil {
		return fmt.Errorf("react to message: chat is nil")
	}
	if s.MessageID == "" {
		return fmt.Errorf("react to message: message id is empty")
	}
	return nil
}

// MessageReactionsUpdate reports the full reaction state of one message.
type MessageReactionsUpdate struct {
	Chat      *Chat                        `json:"chat"`
	MessageID ids.MessageID                `json:"msg_id"`
	Reactions map[ids.ReactionName][]*Chat `json:"reactions"`
}

func (*MessageReactionsUpdate) statusKind() string { return "message_reactions_update" }

func (s *MessageReactionsUpdate) Verify() error {
	if s.Chat == nil {
		return fmt.Errorf("reactions update: chat is nil")
	}
	if s.MessageID == "" {
		return fmt.Errorf("reactions update: message id is empty")
	}
	for name, reactors := range s.Reactions {
		for _, reactor := range reactors {
			if reactor == nil {
				return fmt.Errorf("reactions update: nil reactor under %q", name)
			}
			if reactor.Type == ChatTypeGroup {
				return fmt.Errorf("reactions update: reactor %q under %q is a group", reactor.UID, name)
			}
		}
	}
	return nil
}
