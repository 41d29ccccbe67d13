/*
Package scheduler closes sessions after a delay without blocking the caller.

Every scheduled close owns its own timer and runs on its own goroutine, so
outstanding closes never interfere with each other or with new queries.
Errors raised while closing (usually a double close racing another owner) are
logged and reported through the OnCloseError hook, never escalated.

Handles returned by ScheduleClose can cancel a pending close. Nothing in the
session service cancels on its own: without an explicit Cancel the session
closes exactly once when the delay expires.
*/
package scheduler
