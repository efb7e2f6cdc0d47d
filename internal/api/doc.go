// Package api exposes the validation queue operations consumed by the HTTP
// transport and the CLI, together with the transport DTO shapes. It owns the
// mutate-then-record-then-publish ordering for every queue operation.
package api
