/*
Package session implements the session service: it runs a query on a session
and decides who closes that session afterwards.

Ownership moves from the caller to the service only when the query has run
successfully. From then on exactly one disposal policy applies:

  - Immediate: results are buffered and the session is closed before returning.
  - Close on exhaust: the session closes when the returned cursor is exhausted.
  - Deferred: the scheduler closes the session after a delay, read or not.
  - Manual: the session stays in the registry until ReleaseManual is called.

A close-on-exhaust cursor that is abandoned before exhaustion keeps its
session open until process teardown. Drain the cursor or pick another policy.
*/
package session
