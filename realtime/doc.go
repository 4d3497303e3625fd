// Package realtime delivers job status updates to WebSocket clients.
//
// The Registry tracks connections per tenant and user and fans each
// update out to the job's owner plus any tenant connections explicitly
// subscribed to the job. The Server speaks a small JSON protocol:
// clients send subscribe, unsubscribe, and ping messages and receive
// subscribed, unsubscribed, pong, job_update, and error messages.
//
// The Registry implements the scheduler's lifecycle hook interfaces, so
// wiring it in is one option:
//
//	reg := realtime.NewRegistry(logger)
//	sched := scheduler.New(store, store, scheduler.WithNotifier(reg))
//	http.Handle("/ws/jobs", realtime.NewServer(reg, store,
//	    realtime.WithAuthenticator(auth),
//	))
//
// Delivery is best-effort. A slow or dead client is dropped; job
// processing never waits on a socket.
package realtime
