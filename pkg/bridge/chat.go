// Copyright 2024-2026 Aiku AI

package bridge

import (
	"fmt"

	"github.com/aiku/chatbridge/pkg/ids"
)

// ChatType classifies a conversational endpoint.
type ChatType string

const (
	ChatTypeUser   ChatType = "User"
	ChatTypeGroup  ChatType = "Group"
	ChatTypeSystem ChatType = "System"
)

// Valid reports whether t is one of the three enumerated chat types.
func (t ChatType) Valid() bool {
	switch t {
	case ChatTypeUser, ChatTypeGroup, ChatTypeSystem:
		return true
	}
	return false
}

// Chat represents a conversational endpoint on one module. A chat belongs to
// exactly one module, recorded by id, display name and glyph.
//
// Group membership is a relation, not ownership: a group lists its members
// in order, and each member records the UID of its group. Resolving a member
// back to the full group object goes through the owning module.
type Chat struct {
	ModuleID    ids.ModuleID `json:"module_id"`
	ModuleName  string       `json:"module_name,omitempty"`
	ModuleEmoji string       `json:"module_emoji,omitempty"`

	UID   ids.ChatID `json:"chat_uid"`
	Name  string     `json:"chat_name,omitempty"`
	Alias string     `json:"chat_alias,omitempty"`
	Type  ChatType   `json:"chat_type"`

	// Members is the ordered member list of a group chat. Empty for
	// non-group chats.
	Members []*Chat `json:"members,omitempty"`
	// GroupUID is the back-reference from a member to its enclosing group.
	GroupUID ids.ChatID `json:"group_uid,omitempty"`
}

// SelfChat returns the sentinel chat representing the user behind the
// master, scoped to the given module.
func SelfChat(m Module) *Chat {
	return &Chat{
		ModuleID:    m.ID(),
		ModuleName:  m.Name(),
		ModuleEmoji: m.Emoji(),
		UID:         ids.SelfChatID,
		Name:        "You",
		Type:        ChatTypeUser,
	}
}

// SystemChat returns the sentinel chat for channel-level notices, scoped to
// the given module.
func SystemChat(m Module) *Chat {
	return &Chat{
		ModuleID:    m.ID(),
		ModuleName:  m.Name(),
		ModuleEmoji: m.Emoji(),
		UID:         ids.SystemChatID,
		Name:        "System",
		Type:        ChatTypeSystem,
	}
}

// IsSelf reports whether the chat is the self sentinel.
func (c *Chat) IsSelf() bool {
	return c != nil && c.UID == ids.SelfChatID
}

// IsSystem reports whether the chat is the system sentinel.
func (c *Chat) IsSystem() bool {
	return c != nil && c.UID == ids.SystemChatID
}

// Verify checks the chat's structural invariants: a non-empty UID, a valid
// type, and consistent group relations. Members of a group are verified
// recursively.
func (c *Chat) Verify() error {
	if c == nil {
		return fmt.Errorf("chat is nil")
	}
	if c.UID == "" {
		return fmt.Errorf("chat uid is empty")
	}
	if !c.Type.Valid() {
		return fmt.Errorf("chat %q: invalid chat type %q", c.UID, c.Type)
	}
	if len(c.Members) > 0 && c.Type != ChatTypeGroup {
		return fmt.Errorf("chat %q: only groups may have members", c.UID)
	}
	for i, member := range c.Members {
		if member == nil {
			return fmt.Errorf("group %q: member %d is nil", c.UID, i)
		}
		if member.Type == ChatTypeGroup {
			return fmt.Errorf("group %q: member %q is itself a group", c.UID, member.UID)
		}
		if member.GroupUID != "" && member.GroupUID != c.UID {
			return fmt.Errorf("group %q: member %q references group %q", c.UID, member.UID, member.GroupUID)
		}
		if err := member.Verify(); err != nil {
			return fmt.Errorf("group %q: %w", c.UID, err)
		}
	}
	return nil
}

// Member looks up a direct member of a group chat by UID. Returns nil when
// the chat is not a group or has no such member.
func (c *Chat) Member(uid ids.ChatID) *Chat {
	for _, member := range c.Members {
		if member.UID == uid {
			return member
		}
	}
	return nil
}

// AddMember appends a member chat to a group, stamping the back-reference
// and the module binding of the group.
func (c *Chat) AddMember(member *Chat) *Chat {
	member.GroupUID = c.UID
	if member.ModuleID == "" {
		member.ModuleID = c.ModuleID
		member.ModuleName = c.ModuleName
		member.ModuleEmoji = c.ModuleEmoji
	}
	c.Members = append(c.Members, member)
	return c
}

// DisplayName returns the alias when set, otherwise the chat name.
func (c *Chat) DisplayName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

func (c *Chat) String() string {
	if c == nil {
		return "<nil chat>"
	}
	return fmt.Sprintf("%s (%s) @ %s", c.DisplayName(), c.UID, c.ModuleID)
}
