// Package service hosts the subscription scheduler for a data server.
//
// # DataServer
//
// DataServer owns the host lock, the scheduler and the periodic dispatcher.
// Every scheduler call is made under the lock. Native callbacks that need to
// inspect scheduler state take the same lock through Locker.
//
// Clients work through sessions. A session remembers the subscriptions it
// created so that CloseSession can release them and so that one client cannot
// unsubscribe another client's record:
//
//	srv := service.NewDataServer(catalog, cache, service.DefaultConfig())
//	srv.Start(ctx)
//	defer srv.Stop()
//
//	id := srv.OpenSession()
//	rates, ok, _ := srv.Subscribe(id, handles, requested)
//	_ = srv.SubscribeReady(id, handles)
//	defer srv.CloseSession(id)
//
// # Pending reaper
//
// A subscription that never sees SubscribeReady would stay pending forever.
// While running, the server discards pending requests older than
// PendingTimeout.
package service
