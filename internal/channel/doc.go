/*
Package channel keeps a table subscribed to live dataset pushes.

# Overview

A Channel is one websocket connection per mounted table. The client sends
its current query and the server answers, now and whenever the data
changes, with the full dataset for that query:

	client -> server  {"action":"subscribe","searchQuery":"","currentPage":1,"itemsPerPage":10}
	server -> client  {"updated_data":[{"id":1,"name":"..."}, ...]}

Every inbound message replaces the table rows. There is no acknowledgement,
correlation id or timeout on the subscribe message.

# Lifecycle

Open returns immediately and dials in the background. Send before the
connection is ready keeps only the newest params and flushes them when the
connection opens. Close tears the connection down; no callback runs after
Close returns.

With WithReconnect the channel redials with exponential backoff and re-sends
the last params, reporting StateReconnecting through State and WithOnState.
Without it, a dropped connection ends the channel and WithOnClose is called.

# Malformed Pushes

Messages that are not JSON, lack updated_data or carry duplicate ids are
logged at warn level and dropped. The connection stays open.

# Binding

Binding keeps one Conn per endpoint and only redials when the endpoint
changes. Dialer is the seam used by the table controller and its tests.
*/
package channel
