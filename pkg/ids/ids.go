// Copyright 2024-2026 Aiku AI

// Package ids defines the opaque identifier types shared by every part of
// the bridge, plus the module id grammar.
//
// A module id is a dotted path naming a module class, optionally suffixed
// with an instance id so the same class can be loaded twice:
//
//	chatbridge.modules.loopback.LoopbackSlave
//	chatbridge.modules.loopback.LoopbackSlave#work
//
// Chat, message and reaction ids are opaque strings whose meaning is defined
// entirely by the module that issued them.
package ids

import (
	"fmt"
	"regexp"
	"strings"
)

// ModuleID is the textual identity of a loaded module. It may carry an
// instance suffix ("base#instance").
type ModuleID string

// ChatID identifies a chat within the issuing module.
type ChatID string

// MessageID identifies a message within the issuing module.
type MessageID string

// ReactionName identifies a reaction (emoji or shortcode) within the
// issuing module.
type ReactionName string

// Reserved chat UIDs for the two sentinel chats every channel exposes.
const (
	SelfChatID   ChatID = "__self__"
	SystemChatID ChatID = "__system__"
)

var (
	instanceIDRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	classPathRegex  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)
)

// ParseModuleID splits a module id spec into its base class path and
// optional instance id, validating both against the id grammar.
func ParseModuleID(spec string) (base ModuleID, instance string, err error) {
	path := spec
	if idx := strings.IndexByte(spec, '#'); idx >= 0 {
		path = spec[:idx]
		instance = spec[idx+1:]
		if !instanceIDRegex.MatchString(instance) {
			return "", "", fmt.Errorf("invalid instance id %q in module id %q", instance, spec)
		}
	}
	if !classPathRegex.MatchString(path) {
		return "", "", fmt.Errorf("invalid module class path %q", path)
	}
	return ModuleID(path), instance, nil
}

// WithInstance returns the composite id "base#instance", or the base id
// unchanged when instance is empty.
func (m ModuleID) WithInstance(instance string) ModuleID {
	if instance == "" {
		return m
	}
	return ModuleID(string(m) + "#" + instance)
}

// Base strips any instance suffix from the id.
func (m ModuleID) Base() ModuleID {
	if idx := strings.IndexByte(string(m), '#'); idx >= 0 {
		return m[:idx]
	}
	return m
}

// Instance returns the instance suffix of the id, or "" when there is none.
func (m ModuleID) Instance() string {
	if idx := strings.IndexByte(string(m), '#'); idx >= 0 {
		return string(m[idx+1:])
	}
	return ""
}
