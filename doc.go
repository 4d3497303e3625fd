// Package scribeq provides the job scheduling and real-time notification
// core of a multi-tenant transcription platform: per-tenant priority work
// queues with one worker per tenant, a pluggable handler registry for job
// types, and WebSocket fan-out of job lifecycle transitions to subscribed
// clients.
//
// scribeq is a library, not a service. Construct one Scheduler and one
// realtime Registry at process startup, pass them explicitly to every
// consumer, and tie their lifecycle to Start/Stop at process boundaries:
//
//	store := memory.New()
//	reg := realtime.NewRegistry(logger)
//	sched := scheduler.New(store, store, scheduler.WithNotifier(reg))
//	sched.RegisterHandler("transcription", transcribe)
//	sched.Start(ctx)
//	defer sched.Stop(ctx)
//
// # Tenant isolation
//
// Every queue, worker, and connection is partitioned by tenant id. A slow
// or stuck job in one tenant never delays another tenant's queue: each
// tenant owns exactly one worker goroutine that consumes its queue in
// priority order. Job snapshots are always loaded scoped to the claimed
// tenant, so a bug in a caller cannot leak work across tenants.
//
// # Delivery semantics
//
// Notification delivery is best effort. A job lifecycle transition is
// delivered at most once per connection per event; there is no exactly-once
// guarantee and no cross-process coordination.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package scribeq
