// Copyright 2024-2026 Aiku AI

// Package bridge is the core routing substrate of chatbridge: the typed
// message and status model, the uniform module contract, and the
// coordinator that threads every item through the middleware pipeline and
// delivers it to its destination channel.
//
// # Core Types
//
// [Message] and [Status] are the two item kinds flowing through the
// pipeline. [Chat] is a conversational endpoint scoped to one module.
//
// [Channel] is the contract every master and slave surface implements;
// [Middleware] is the contract for pipeline interposers. [ModuleInfo] is
// the embeddable identity block shared by both.
//
// [Coordinator] holds the loaded master, the map of slaves and the ordered
// middleware list. Its maps are frozen before the first poll task starts,
// so dispatch requires no locking; many messages may traverse the pipeline
// concurrently.
//
// # Failure Semantics
//
// A middleware error aborts that one item only; the coordinator logs it
// with a fresh correlation id and returns a [DispatchError] to the source
// channel. Typed destination failures (ErrChatNotFound and friends)
// surface to the source channel unchanged under the same wrapper, and
// [UserFacingError] renders the short token a channel shows its user.
package bridge
