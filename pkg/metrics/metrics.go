package metrics

import "time"

// ConnectionMetrics observes the TCP transport.
type ConnectionMetrics interface {
	// RecordConnectionAccepted counts a connection that was given a session.
	RecordConnectionAccepted()

	// RecordConnectionRejected counts a connection turned away before a
	// session was created (for example because the server was at capacity).
	RecordConnectionRejected(reason string)

	// RecordConnectionClosed counts a finished connection.
	RecordConnectionClosed()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordPacket counts one packet. direction is "in" or "out".
	RecordPacket(direction, name string)

	// RecordBytes adds to the transferred byte counter.
	RecordBytes(direction string, n int)

	// RecordKick counts a server-initiated disconnect by reason.
	RecordKick(reason string)
}

// WorldMetrics observes the chunk manager.
type WorldMetrics interface {
	// SetCachedChunks updates the number of chunks held in memory.
	SetCachedChunks(count int)

	// RecordChunkLoad counts a chunk entering the cache. source is
	// "generated" or "store".
	RecordChunkLoad(source string)

	// RecordChunkGeneration records one generator run and its outcome.
	RecordChunkGeneration(duration time.Duration, err error)

	// RecordChunksEvicted counts chunks dropped from the cache.
	RecordChunksEvicted(count int)
}

// GameMetrics observes the dispatcher.
type GameMetrics interface {
	// SetOnlinePlayers updates the number of players in Play.
	SetOnlinePlayers(count int)

	// SetEntities updates the number of live entities.
	SetEntities(count int)

	// RecordLogin counts a login attempt by result ("success" or the
	// rejection reason).
	RecordLogin(result string)

	// RecordChat counts a chat line or command.
	RecordChat(command bool)

	// RecordTick records how long one game tick took.
	RecordTick(duration time.Duration)
}

// NewNoopConnectionMetrics returns a ConnectionMetrics that discards everything.
func NewNoopConnectionMetrics() ConnectionMetrics { return noopConnectionMetrics{} }

// NewNoopWorldMetrics returns a WorldMetrics that discards everything.
func NewNoopWorldMetrics() WorldMetrics { return noopWorldMetrics{} }

// NewNoopGameMetrics returns a GameMetrics that discards everything.
func NewNoopGameMetrics() GameMetrics { return noopGameMetrics{} }

type noopConnectionMetrics struct{}

func (noopConnectionMetrics) RecordConnectionAccepted()              {}
func (noopConnectionMetrics) RecordConnectionRejected(reason string) {}
func (noopConnectionMetrics) RecordConnectionClosed()                {}
func (noopConnectionMetrics) SetActiveConnections(count int32)       {}
func (noopConnectionMetrics) RecordPacket(direction, name string)    {}
func (noopConnectionMetrics) RecordBytes(direction string, n int)    {}
func (noopConnectionMetrics) RecordKick(reason string)               {}

type noopWorldMetrics struct{}

func (noopWorldMetrics) SetCachedChunks(count int)                               {}
func (noopWorldMetrics) RecordChunkLoad(source string)                           {}
func (noopWorldMetrics) RecordChunkGeneration(duration time.Duration, err error) {}
func (noopWorldMetrics) RecordChunksEvicted(count int)                           {}

type noopGameMetrics struct{}

func (noopGameMetrics) SetOnlinePlayers(count int)        {}
func (noopGameMetrics) SetEntities(count int)             {}
func (noopGameMetrics) RecordLogin(result string)         {}
func (noopGameMetrics) RecordChat(command bool)           {}
func (noopGameMetrics) RecordTick(duration time.Duration) {}
