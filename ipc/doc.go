// Package ipc carries ydb deltas between processes.
//
// A [Hub] owns a set of [Conn]s. Publishers listen on an address and accept
// subscribers; subscribers dial a publisher. Each connection has a reader
// goroutine that only splits the byte stream into [Message]s and queues
// them; the queued messages are handed to the [Handler] by [Hub.Serve] on
// the caller's goroutine, so the handler never runs concurrently with the
// rest of the program.
//
// Supported addresses:
//
//	us://path          unix domain socket
//	uss://name         abstract unix socket (linux)
//	tcp://host:port    tcp
//	ws://host:port/p   websocket
//	file://path        append-only sink, written and never read
//
// Messages are YAML documents whose header lines are YAML comments, so a
// captured stream is itself a valid multi-document YAML file:
//
//	---
//	#seq: 3
//	#type: publish
//	#op: merge
//	#origin: 01HZY3M1Q5S8F0V6W1J7R9K2TX
//	#_-_-_-_
//	{a: {b: 1}}
//	...
package ipc
