// Package storage provides the optional audit log: every state-mutating
// operator action (publish, pin, channel/admin change) is appended here so
// there is a durable trail of who did what to the managed channel.
package storage
