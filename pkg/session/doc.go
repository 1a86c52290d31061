/*
Package session serializes edits of stored pipelines.

A Manager loads a pipeline document, applies one edit operation to its resolved
form and saves the new config stack, all while holding a per-pipeline lock.
The lock is an in-process mutex, optionally backed by a distributed lock so
several editor replicas can share one store. Each applied edit is remembered
in a bounded, in-memory undo history.
*/
package session
