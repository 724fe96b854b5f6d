// Copyright 2024-2026 Aiku AI

package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/aiku/chatbridge/pkg/ids"
)

// MsgType enumerates the kinds of messages a channel can carry.
type MsgType string

const (
	MsgTypeText        MsgType = "Text"
	MsgTypeImage       MsgType = "Image"
	MsgTypeAudio       MsgType = "Audio"
	MsgTypeFile        MsgType = "File"
	MsgTypeLocation    MsgType = "Location"
	MsgTypeVideo       MsgType = "Video"
	MsgTypeLink        MsgType = "Link"
	MsgTypeSticker     MsgType = "Sticker"
	MsgTypeStatus      MsgType = "Status"
	MsgTypeUnsupported MsgType = "Unsupported"
)

// AllMsgTypes lists every message type in declaration order.
var AllMsgTypes = []MsgType{
	MsgTypeText, MsgTypeImage, MsgTypeAudio, MsgTypeFile, MsgTypeLocation,
	MsgTypeVideo, MsgTypeLink, MsgTypeSticker, MsgTypeStatus, MsgTypeUnsupported,
}

// Valid reports whether t is an enumerated message type.
func (t MsgType) Valid() bool {
	for _, known := range AllMsgTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MsgTypeSet is the set of message types a channel supports.
type MsgTypeSet map[MsgType]struct{}

// NewMsgTypeSet builds a set from the given types.
func NewMsgTypeSet(types ...MsgType) MsgTypeSet {
	set := make(MsgTypeSet, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// Contains reports whether t is in the set.
func (s MsgTypeSet) Contains(t MsgType) bool {
	_, ok := s[t]
	return ok
}

// Slice returns the set's members in stable sorted order.
func (s MsgTypeSet) Slice() []MsgType {
	out := make([]MsgType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Attribute is the tagged payload variant of a message. The active case is
// determined by the message type.
type Attribute interface {
	attributeKind() string
	Verify() error
}

// LinkAttribute describes a shared link.
type LinkAttribute struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	URL         string `json:"url"`
}

func (*LinkAttribute) attributeKind() string { return "link" }

func (a *LinkAttribute) Verify() error {
	if a.Title == "" {
		return fmt.Errorf("link attribute: title is empty")
	}
	if a.URL == "" {
		return fmt.Errorf("link attribute: url is empty")
	}
	return nil
}

// LocationAttribute carries geographic coordinates.
type LocationAttribute struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (*LocationAttribute) attributeKind() string { return "location" }

func (a *LocationAttribute) Verify() error {
	if a.Latitude < -90 || a.Latitude > 90 {
		return fmt.Errorf("location attribute: latitude %v out of range", a.Latitude)
	}
	if a.Longitude < -180 || a.Longitude > 180 {
		return fmt.Errorf("location attribute: longitude %v out of range", a.Longitude)
	}
	return nil
}

// StatusKind enumerates the transient indicator kinds a Status message may
// carry.
type StatusKind string

const (
	StatusTyping         StatusKind = "TYPING"
	StatusUploadingFile  StatusKind = "UPLOADING_FILE"
	StatusUploadingImage StatusKind = "UPLOADING_IMAGE"
	StatusUploadingAudio StatusKind = "UPLOADING_AUDIO"
	StatusUploadingVideo StatusKind = "UPLOADING_VIDEO"
)

// DefaultStatusTimeoutMS is how long a transient indicator stays visible
// when the sender does not specify a timeout.
const DefaultStatusTimeoutMS = 5000

// StatusAttribute marks a message as a transient indicator. Adapters show
// it for TimeoutMS milliseconds and never persist it.
type StatusAttribute struct {
	Kind      StatusKind `json:"status_type"`
	TimeoutMS int        `json:"timeout,omitempty"`
}

func (*StatusAttribute) attributeKind() string { return "status" }

func (a *StatusAttribute) Verify() error {
	switch a.Kind {
	case StatusTyping, StatusUploadingFile, StatusUploadingImage, StatusUploadingAudio, StatusUploadingVideo:
	default:
		return fmt.Errorf("status attribute: unknown kind %q", a.Kind)
	}
	if a.TimeoutMS < 0 {
		return fmt.Errorf("status attribute: negative timeout %d", a.TimeoutMS)
	}
	return nil
}

// Timeout returns the effective indicator timeout in milliseconds.
func (a *StatusAttribute) Timeout() int {
	if a.TimeoutMS == 0 {
		return DefaultStatusTimeoutMS
	}
	return a.TimeoutMS
}

// Substitution maps the half-open byte range [Start, End) of the message
// text to a referenced chat, e.g. for @-mentions.
type Substitution struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Chat  *Chat `json:"chat"`
}

// Command is one action button attached to a message. Name refers to a
// callable on the destination module; Args and KWArgs are passed through.
type Command struct {
	Name   string         `json:"name"`
	Args   []any          `json:"args,omitempty"`
	KWArgs map[string]any `json:"kwargs,omitempty"`
}

// TargetRef is the minimum subset of a message needed to reference it as a
// reply target.
type TargetRef struct {
	Chat   *Chat         `json:"chat,omitempty"`
	Author *Chat         `json:"author,omitempty"`
	Text   string        `json:"text,omitempty"`
	Type   MsgType       `json:"type,omitempty"`
	UID    ids.MessageID `json:"uid,omitempty"`
}

// Message is the unit of communication between channels.
//
// A message is constructed inside a channel's poll loop or a master command
// handler, handed to the coordinator, and discarded after final delivery.
// It is immutable in spirit once dispatched: a middleware may return a new
// or modified instance but must not retain references after returning.
type Message struct {
	DeliverTo ids.ModuleID  `json:"deliver_to"`
	Author    *Chat         `json:"author"`
	Chat      *Chat         `json:"chat"`
	Type      MsgType       `json:"type"`
	UID       ids.MessageID `json:"uid"`

	Text string `json:"text,omitempty"`

	// File is the open handle for media payloads. It never survives
	// serialization; Path is the durable pointer.
	File     io.Reader `json:"-"`
	Filename string    `json:"filename,omitempty"`
	Mime     string    `json:"mime,omitempty"`
	Path     string    `json:"path,omitempty"`
	URL      string    `json:"url,omitempty"`

	Attribute     Attribute      `json:"-"`
	Substitutions []Substitution `json:"substitutions,omitempty"`
	Commands      []Command      `json:"commands,omitempty"`
	Target        *TargetRef     `json:"target,omitempty"`

	// VendorSpecific is adapter-to-adapter passthrough with no semantic
	// guarantees from the core.
	VendorSpecific map[string]any `json:"vendor_specific,omitempty"`

	IsSystem bool `json:"is_system,omitempty"`
	Edit     bool `json:"edit,omitempty"`
}

// Verify checks the message's structural invariants: required fields,
// attribute/type agreement, substitution ranges and command shape.
func (m *Message) Verify() error {
	if m == nil {
		return fmt.Errorf("message is nil")
	}
	if m.DeliverTo == "" {
		return fmt.Errorf("message %q: deliver_to is empty", m.UID)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("message %q: invalid type %q", m.UID, m.Type)
	}
	if err := m.Author.Verify(); err != nil {
		return fmt.Errorf("message %q: author: %w", m.UID, err)
	}
	if err := m.Chat.Verify(); err != nil {
		return fmt.Errorf("message %q: chat: %w", m.UID, err)
	}
	if m.Attribute != nil {
		if err := m.Attribute.Verify(); err != nil {
			return fmt.Errorf("message %q: %w", m.UID, err)
		}
		if err := m.verifyAttributeKind(); err != nil {
			return fmt.Errorf("message %q: %w", m.UID, err)
		}
	}
	if err := m.verifySubstitutions(); err != nil {
		return fmt.Errorf("message %q: %w", m.UID, err)
	}
	if m.Commands != nil && len(m.Commands) == 0 {
		return fmt.Errorf("message %q: commands present but empty", m.UID)
	}
	for i, cmd := range m.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("message %q: command %d has no name", m.UID, i)
		}
	}
	return nil
}

func (m *Message) verifyAttributeKind() error {
	var want string
	switch m.Type {
	case MsgTypeLink:
		want = "link"
	case MsgTypeLocation:
		want = "location"
	case MsgTypeStatus:
		want = "status"
	default:
		return fmt.Errorf("type %q does not take an attribute", m.Type)
	}
	if got := m.Attribute.attributeKind(); got != want {
		return fmt.Errorf("attribute kind %q does not match type %q", got, m.Type)
	}
	return nil
}

func (m *Message) verifySubstitutions() error {
	for i, sub := range m.Substitutions {
		if sub.Start < 0 || sub.Start >= sub.End || sub.End > len(m.Text) {
			return fmt.Errorf("substitution %d: range [%d, %d) out of bounds for text of length %d",
				i, sub.Start, sub.End, len(m.Text))
		}
		if sub.Chat == nil {
			return fmt.Errorf("substitution %d: chat is nil", i)
		}
		if sub.Chat.Type == ChatTypeGroup {
			return fmt.Errorf("substitution %d: chat %q is a group", i, sub.Chat.UID)
		}
		for j := range i {
			prev := m.Substitutions[j]
			if sub.Start < prev.End && prev.Start < sub.End {
				return fmt.Errorf("substitution %d: range [%d, %d) overlaps [%d, %d)",
					i, sub.Start, sub.End, prev.Start, prev.End)
			}
		}
	}
	return nil
}

// TargetOf returns a reply-target reference to m.
func (m *Message) TargetOf() *TargetRef {
	return &TargetRef{
		Chat:   m.Chat,
		Author: m.Author,
		Text:   m.Text,
		Type:   m.Type,
		UID:    m.UID,
	}
}

func (m *Message) String() string {
	return fmt.Sprintf("message %s (%s) -> %s", m.UID, m.Type, m.DeliverTo)
}

// attributeEnvelope is the wire form of the tagged attribute union.
type attributeEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// messageJSON mirrors Message for serialization, adding the attribute
// envelope in place of the interface field.
type messageJSON struct {
	*messageAlias
	AttributeEnvelope *attributeEnvelope `json:"attribute,omitempty"`
}

type messageAlias Message

// MarshalJSON serializes the message including its tagged attribute. The
// file handle is excluded; Path carries the durable media pointer.
func (m *Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{messageAlias: (*messageAlias)(m)}
	if m.Attribute != nil {
		data, err := json.Marshal(m.Attribute)
		if err != nil {
			return nil, fmt.Errorf("marshal attribute: %w", err)
		}
		out.AttributeEnvelope = &attributeEnvelope{
			Kind: m.Attribute.attributeKind(),
			Data: data,
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a message, decoding the attribute envelope back
// into its concrete variant.
func (m *Message) UnmarshalJSON(data []byte) error {
	in := messageJSON{messageAlias: (*messageAlias)(m)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.AttributeEnvelope == nil {
		return nil
	}
	var attr Attribute
	switch in.AttributeEnvelope.Kind {
	case "link":
		attr = &LinkAttribute{}
	case "location":
		attr = &LocationAttribute{}
	case "status":
		attr = &StatusAttribute{}
	default:
		return fmt.Errorf("unknown attribute kind %q", in.AttributeEnvelope.Kind)
	}
	if err := json.Unmarshal(in.AttributeEnvelope.Data, attr); err != nil {
		return fmt.Errorf("unmarshal %s attribute: %w", in.AttributeEnvelope.Kind, err)
	}
	m.Attribute = attr
	return nil
}
