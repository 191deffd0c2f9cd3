// Package ydb is a hierarchical YAML data block kept in sync between
// processes.
//
// A [DB] holds one tree of scalars, mappings and sequences addressed by
// slash separated paths. YAML fragments are merged into it with
// [DB.Write] and [DB.PathWrite], and deleted with [DB.Remove] and
// [DB.PathRemove]. Each such call is applied completely, fires the hooks
// registered with [DB.RegisterHook] at most once each, and sends the
// resulting deltas to the connected peers.
//
// Peers are connected with [DB.Connect]. A publisher listens; subscribers
// dial it, receive its data and, when writable, send it theirs. Incoming
// deltas are only applied inside [DB.Serve], on the caller's goroutine: a
// DB is not safe for concurrent use.
//
//	db, _ := ydb.New()
//	db.Connect(ctx, "us:///tmp/ydb.sock", "pub")
//	db.Write("{a: {b: 1}}")
//	for {
//		db.Serve(ctx, -1)
//	}
package ydb
