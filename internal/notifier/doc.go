// Package notifier pushes queue updates to connected websocket clients.
//
// The hub keeps three overlapping indexes over live connections: by user, by
// role, and by named room. Queue events arrive over an events.Bus
// subscription and fan out to the validation-queue room plus the requester
// and assignee directly, so clients never poll for state changes. Delivery is
// fire and forget; a slow client is dropped, never waited on.
package notifier
