// Copyright 2024-2026 Aiku AI

package bridge

import (
	"encoding/json"
	"reflect"
	"testing"
)

func validTextMessage() *Message {
	author := validUserChat("u1")
	return &Message{
		DeliverTo: "tests.slave.MockSlave",
		Author:    author,
		Chat:      author,
		Type:      MsgTypeText,
		UID:       "m1",
		Text:      "hello there",
	}
}

func TestMessageVerify(t *testing.T) {
	t.Parallel()
	if err := validTextMessage().Verify(); err != nil {
		t.Fatalf("Verify on valid message: %v", err)
	}

	missingDest := validTextMessage()
	missingDest.DeliverTo = ""
	if err := missingDest.Verify(); err == nil {
		t.Error("Verify accepted empty deliver_to")
	}

	badType := validTextMessage()
	badType.Type = "Telegram"
	if err := badType.Verify(); err == nil {
		t.Error("Verify accepted unknown message type")
	}

	badAuthor := validTextMessage()
	badAuthor.Author = &Chat{}
	if err := badAuthor.Verify(); err == nil {
		t.Error("Verify accepted invalid author chat")
	}

	emptyCommands := validTextMessage()
	emptyCommands.Commands = []Command{}
	if err := emptyCommands.Verify(); err == nil {
		t.Error("Verify accepted present-but-empty commands")
	}

	namelessCommand := validTextMessage()
	namelessCommand.Commands = []Command{{Args: []any{"x"}}}
	if err := namelessCommand.Verify(); err == nil {
		t.Error("Verify accepted a command without a name")
	}
}

func TestLinkAttributeVerify(t *testing.T) {
	t.Parallel()
	msg := validTextMessage()
	msg.Type = MsgTypeLink
	msg.Attribute = &LinkAttribute{Title: "Example", URL: "https://example.com"}
	if err := msg.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	msg.Attribute = &LinkAttribute{URL: "https://example.com"}
	if err := msg.Verify(); err == nil {
		t.Error("Verify accepted link without title")
	}
	msg.Attribute = &LinkAttribute{Title: "Example"}
	if err := msg.Verify(); err == nil {
		t.Error("Verify accepted link without url")
	}
}

func TestAttributeKindMustMatchType(t *testing.T) {
	t.Parallel()
	msg := validTextMessage()
	msg.Type = MsgTypeLocation
	msg.Attribute = &LinkAttribute{Title: "t", URL: "u"}
	if err := msg.Verify(); err == nil {
		t.Error("Verify accepted link attribute on location message")
	}

	msg.Type = MsgTypeText
	msg.Attribute = &LocationAttribute{Latitude: 1, Longitude: 2}
	if err := msg.Verify(); err == nil {
		t.Error("Verify accepted attribute on text message")
	}
}

func TestLocationAttributeVerify(t *testing.T) {
	t.Parallel()
	if err := (&LocationAttribute{Latitude: 48.85, Longitude: 2.35}).Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if err := (&LocationAttribute{Latitude: 91}).Verify(); err == nil {
		t.Error("Verify accepted latitude out of range")
	}
	if err := (&LocationAttribute{Longitude: -200}).Verify(); err == nil {
		t.Error("Verify accepted longitude out of range")
	}
}

func TestStatusAttribute(t *testing.T) {
	t.Parallel()
	attr := &StatusAttribute{Kind: StatusTyping}
	if err := attr.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if attr.Timeout() != DefaultStatusTimeoutMS {
		t.Errorf("default timeout: got %d, want %d", attr.Timeout(), DefaultStatusTimeoutMS)
	}
	attr.TimeoutMS = 1200
	if attr.Timeout() != 1200 {
		t.Errorf("explicit timeout: got %d", attr.Timeout())
	}
	if err := (&StatusAttribute{Kind: "SLEEPING"}).Verify(); err == nil {
		t.Error("Verify accepted unknown status kind")
	}
}

func TestSubstitutionVerify(t *testing.T) {
	t.Parallel()
	base := validTextMessage() // text "hello there", len 11
	tests := []struct {
		name    string
		subs    []Substitution
		wantErr bool
	}{
		{name: "valid", subs: []Substitution{{Start: 0, End: 5, Chat: validUserChat("u2")}}},
		{name: "adjacent ranges", subs: []Substitution{
			{Start: 0, End: 5, Chat: validUserChat("u2")},
			{Start: 5, End: 11, Chat: validUserChat("u3")},
		}},
		{name: "start equals end", subs: []Substitution{{Start: 3, End: 3, Chat: validUserChat("u2")}}, wantErr: true},
		{name: "negative start", subs: []Substitution{{Start: -1, End: 2, Chat: validUserChat("u2")}}, wantErr: true},
		{name: "end past text", subs: []Substitution{{Start: 0, End: 12, Chat: validUserChat("u2")}}, wantErr: true},
		{name: "nil chat", subs: []Substitution{{Start: 0, End: 2}}, wantErr: true},
		{
			name:    "group chat",
			subs:    []Substitution{{Start: 0, End: 2, Chat: &Chat{ModuleID: "m", UID: "g", Type: ChatTypeGroup}}},
			wantErr: true,
		},
		{name: "overlap", subs: []Substitution{
			{Start: 0, End: 6, Chat: validUserChat("u2")},
			{Start: 5, End: 9, Chat: validUserChat("u3")},
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg := *base
			msg.Substitutions = tt.subs
			err := msg.Verify()
			if (err != nil) != tt.wantErr {
				t.Errorf("Verify() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTargetOf(t *testing.T) {
	t.Parallel()
	msg := validTextMessage()
	target := msg.TargetOf()
	if target.UID != msg.UID || target.Text != msg.Text || target.Type != msg.Type {
		t.Errorf("TargetOf lost fields: %+v", target)
	}
	if target.Chat != msg.Chat || target.Author != msg.Author {
		t.Error("TargetOf should reference the same chat and author")
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	t.Parallel()
	reply := validTextMessage()
	msg := &Message{
		DeliverTo: "tests.slave.MockSlave#i1",
		Author:    validUserChat("u1"),
		Chat:      validUserChat("u1"),
		Type:      MsgTypeLink,
		UID:       "m42",
		Text:      "look at this",
		URL:       "https://example.com/article",
		Attribute: &LinkAttribute{
			Title:       "Example Article",
			Description: "An article about examples",
			URL:         "https://example.com/article",
		},
		Substitutions: []Substitution{{Start: 0, End: 4, Chat: validUserChat("u2")}},
		Commands: []Command{{
			Name:   "open_link",
			Args:   []any{"https://example.com/article"},
			KWArgs: map[string]any{"preview": true},
		}},
		Target:         reply.TargetOf(),
		VendorSpecific: map[string]any{"origin": "unit-test"},
		IsSystem:       false,
		Edit:           true,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.DeliverTo != msg.DeliverTo || decoded.UID != msg.UID || decoded.Type != msg.Type {
		t.Errorf("identity fields lost: %+v", decoded)
	}
	attr, ok := decoded.Attribute.(*LinkAttribute)
	if !ok {
		t.Fatalf("attribute decoded as %T, want *LinkAttribute", decoded.Attribute)
	}
	if !reflect.DeepEqual(attr, msg.Attribute) {
		t.Errorf("attribute round trip: got %+v, want %+v", attr, msg.Attribute)
	}
	if len(decoded.Substitutions) != 1 || decoded.Substitutions[0].Chat.UID != "u2" {
		t.Errorf("substitutions round trip: %+v", decoded.Substitutions)
	}
	if decoded.Target == nil || decoded.Target.UID != reply.UID {
		t.Errorf("target round trip: %+v", decoded.Target)
	}
	if !decoded.Edit {
		t.Error("edit flag lost")
	}
	if err := decoded.Verify(); err != nil {
		t.Errorf("decoded message fails Verify: %v", err)
	}
}

func TestMessageJSONUnknownAttributeKind(t *testing.T) {
	t.Parallel()
	var msg Message
	err := json.Unmarshal([]byte(`{"deliver_to":"a.B","type":"Text","attribute":{"kind":"hologram","data":{}}}`), &msg)
	if err == nil {
		t.Error("Unmarshal accepted unknown attribute kind")
	}
}

func TestMsgTypeSet(t *testing.T) {
	t.Parallel()
	set := NewMsgTypeSet(MsgTypeText, MsgTypeImage)
	if !set.Contains(MsgTypeText) || set.Contains(MsgTypeVideo) {
		t.Error("set membership wrong")
	}
	slice := set.Slice()
	if len(slice) != 2 || slice[0] != MsgTypeImage || slice[1] != MsgTypeText {
		t.Errorf("Slice not sorted: %v", slice)
	}
}

func TestMsgTypeValid(t *testing.T) {
	t.Parallel()
	for _, mt := range AllMsgTypes {
		if !mt.Valid() {
			t.Errorf("%s should be valid", mt)
		}
	}
	if MsgType("Hologram").Valid() {
		t.Error("unknown type reported valid")
	}
}
