// Copyright 2024-2026 Aiku AI

package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aiku/chatbridge/pkg/ids"
)

// DispatchMetrics receives counters from the coordinator. Implemented by
// the metrics package; a nil collector disables instrumentation.
type DispatchMetrics interface {
	MessageDispatched(destination ids.ModuleID)
	MessageDropped(middleware ids.ModuleID)
	StatusDispatched(destination ids.ModuleID)
	StatusDropped(middleware ids.ModuleID)
	DispatchFailed(kind string)
}

// Coordinator is the process-wide hub binding the master, the slaves and
// the middleware pipeline. It is constructed once and passed to channels
// and middlewares at construction time.
//
// The channel maps and the middleware list are fixed before any poll task
// starts and never mutated afterwards, so dispatch reads them without
// locking. Multiple messages may traverse the pipeline concurrently.
type Coordinator struct {
	profile string
	log     zerolog.Logger
	metrics DispatchMetrics

	master      Channel
	slaves      map[ids.ModuleID]Channel
	slaveOrder  []ids.ModuleID
	middlewares []Middleware

	// interactionMu serializes channels that need exclusive access to a
	// shared resource, e.g. a terminal during authentication.
	interactionMu sync.Mutex
}

// NewCoordinator creates the hub for one profile.
func NewCoordinator(profile string, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		profile: profile,
		log:     log.With().Str("component", "coordinator").Logger(),
		slaves:  make(map[ids.ModuleID]Channel),
	}
}

// Profile returns the name of the active profile.
func (c *Coordinator) Profile() string { return c.profile }

// SetMetrics installs a dispatch metrics collector. Must be called before
// any poll task starts.
func (c *Coordinator) SetMetrics(m DispatchMetrics) { c.metrics = m }

// AddChannel registers a channel as master or slave according to its
// declared channel type. It is invoked by the runner before any poll task
// starts; the coordinator's maps are not mutated after startup.
func (c *Coordinator) AddChannel(ch Channel) error {
	switch ch.ChannelType() {
	case ChannelTypeMaster:
		if c.master != nil {
			return fmt.Errorf("master channel already registered (%s)", c.master.ID())
		}
		c.master = ch
	case ChannelTypeSlave:
		if _, dup := c.slaves[ch.ID()]; dup {
			return fmt.Errorf("slave channel %s already registered", ch.ID())
		}
		c.slaves[ch.ID()] = ch
		c.slaveOrder = append(c.slaveOrder, ch.ID())
	default:
		return fmt.Errorf("channel %s has unknown channel type %q", ch.ID(), ch.ChannelType())
	}
	c.log.Debug().Str("channel", string(ch.ID())).Str("type", string(ch.ChannelType())).Msg("Registered channel")
	return nil
}

// AddMiddleware appends a middleware to the pipeline. Dispatch threads
// items through middlewares in registration order.
func (c *Coordinator) AddMiddleware(mw Middleware) {
	c.middlewares = append(c.middlewares, mw)
	c.log.Debug().Str("middleware", string(mw.ID())).Msg("Registered middleware")
}

// Master returns the registered master channel, or nil before registration.
func (c *Coordinator) Master() Channel { return c.master }

// Slave resolves a slave channel by composite id.
func (c *Coordinator) Slave(id ids.ModuleID) (Channel, bool) {
	ch, ok := c.slaves[id]
	return ch, ok
}

// Slaves returns the slave channels in registration order.
func (c *Coordinator) Slaves() []Channel {
	out := make([]Channel, 0, len(c.slaveOrder))
	for _, id := range c.slaveOrder {
		out = append(out, c.slaves[id])
	}
	return out
}

// Middlewares returns the middleware pipeline in order.
func (c *Coordinator) Middlewares() []Middleware {
	return append([]Middleware(nil), c.middlewares...)
}

// Channel resolves any registered channel (master or slave) by id.
func (c *Coordinator) Channel(id ids.ModuleID) (Channel, bool) {
	if c.master != nil && c.master.ID() == id {
		return c.master, true
	}
	ch, ok := c.slaves[id]
	return ch, ok
}

// LockInteraction acquires the global interaction mutex. Channels that need
// exclusive access to a shared resource take it for the duration of the
// interaction and must release it with UnlockInteraction on every path.
func (c *Coordinator) LockInteraction() { c.interactionMu.Lock() }

// UnlockInteraction releases the global interaction mutex.
func (c *Coordinator) UnlockInteraction() { c.interactionMu.Unlock() }

// SendMessage threads msg through every middleware in order and delivers it
// to the channel named by DeliverTo. It returns the message as returned by
// the destination, with the assigned UID, or nil when a middleware consumed
// the message.
//
// Dispatch is synchronous from the caller's viewpoint and reentrant;
// callers must not hold exclusive locks across it.
func (c *Coordinator) SendMessage(ctx context.Context, msg *Message) (*Message, error) {
	if msg == nil {
		return nil, newDispatchError("delivery", "", ErrMissingDestination)
	}
	if msg.DeliverTo == "" {
		return nil, newDispatchError("delivery", "", ErrMissingDestination)
	}

	for _, mw := range c.middlewares {
		next, err := mw.ProcessMessage(ctx, msg)
		if err != nil {
			derr := newDispatchError("middleware", mw.ID(), err)
			c.log.Error().Err(err).
				Str("middleware", string(mw.ID())).
				Str("message_uid", string(msg.UID)).
				Str("correlation_id", derr.CorrelationID).
				Msg("Middleware failed, aborting message")
			c.countFailure(err)
			return nil, derr
		}
		if next == nil {
			c.log.Debug().
				Str("middleware", string(mw.ID())).
				Str("message_uid", string(msg.UID)).
				Msg("Middleware consumed message")
			if c.metrics != nil {
				c.metrics.MessageDropped(mw.ID())
			}
			return nil, nil
		}
		msg = next
	}

	dest, ok := c.Channel(msg.DeliverTo)
	if !ok {
		derr := newDispatchError("delivery", msg.DeliverTo, ErrChannelNotFound)
		c.log.Error().
			Str("destination", string(msg.DeliverTo)).
			Str("message_uid", string(msg.UID)).
			Str("correlation_id", derr.CorrelationID).
			Msg("Destination channel not registered")
		c.countFailure(ErrChannelNotFound)
		return nil, derr
	}

	sent, err := dest.SendMessage(ctx, msg)
	if err != nil {
		c.countFailure(err)
		return nil, newDispatchError("delivery", dest.ID(), err)
	}
	if c.metrics != nil {
		c.metrics.MessageDispatched(dest.ID())
	}
	return sent, nil
}

// SendStatus threads a status through every middleware and delivers it to
// the destination channel implied by its variant: chat and member updates
// always go to the master, removals to their destination channel, reaction
// statuses to the channel owning the status chat.
func (c *Coordinator) SendStatus(ctx context.Context, status Status) error {
	if status == nil {
		return newDispatchError("delivery", "", ErrMissingDestination)
	}

	for _, mw := range c.middlewares {
		next, err := mw.ProcessStatus(ctx, status)
		if err != nil {
			derr := newDispatchError("middleware", mw.ID(), err)
			c.log.Error().Err(err).
				Str("middleware", string(mw.ID())).
				Str("status", statusName(status)).
				Str("correlation_id", derr.CorrelationID).
				Msg("Middleware failed, aborting status")
			c.countFailure(err)
			return derr
		}
		if next == nil {
			c.log.Debug().
				Str("middleware", string(mw.ID())).
				Str("status", statusName(status)).
				Msg("Middleware consumed status")
			if c.metrics != nil {
				c.metrics.StatusDropped(mw.ID())
			}
			return nil
		}
		status = next
	}

	destID, err := c.statusDestination(status)
	if err != nil {
		c.countFailure(err)
		return newDispatchError("delivery", destID, err)
	}
	dest, ok := c.Channel(destID)
	if !ok {
		c.countFailure(ErrChannelNotFound)
		return newDispatchError("delivery", destID, ErrChannelNotFound)
	}
	if err := dest.SendStatus(ctx, status); err != nil {
		c.countFailure(err)
		return newDispatchError("delivery", dest.ID(), err)
	}
	if c.metrics != nil {
		c.metrics.StatusDispatched(dest.ID())
	}
	return nil
}

// statusDestination resolves the channel id a status variant is delivered
// to.
func (c *Coordinator) statusDestination(status Status) (ids.ModuleID, error) {
	switch s := status.(type) {
	case *ChatUpdates, *MemberUpdates:
		if c.master == nil {
			return "", fmt.Errorf("no master registered: %w", ErrChannelNotFound)
		}
		return c.master.ID(), nil
	case *MessageRemoval:
		if s.DestinationChannel == "" {
			return "", ErrMissingDestination
		}
		return s.DestinationChannel, nil
	case *ReactToMessage:
		if s.Chat == nil {
			return "", ErrMissingDestination
		}
		return s.Chat.ModuleID, nil
	case *MessageReactionsUpdate:
		if s.Chat == nil {
			return "", ErrMissingDestination
		}
		return s.Chat.ModuleID, nil
	default:
		return "", fmt.Errorf("unknown status variant %T", status)
	}
}

func (c *Coordinator) countFailure(err error) {
	if c.metrics != nil {
		c.metrics.DispatchFailed(ErrorKind(err))
	}
}

func statusName(status Status) string {
	if status == nil {
		return "<nil>"
	}
	return status.statusKind()
}
