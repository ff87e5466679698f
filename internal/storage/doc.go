// Package storage provides the optional delivery journal.
//
// Every notification attempt (successful or not) is appended as one entry.
// The journal is write-only: it is never read back to decide what to notify.
package storage
