/*
Package session owns the live dashboards of covidash, one per session.

A Manager serializes every operation on a session behind a reference
counted local lock and, when configured, a distributed lock. Selections
are persisted through a ports.SelectionStore after each change, so a
closed session (or one owned by another replica) is restored on the next
Open.
*/
package session
