/*
Package result wraps a driver's raw result stream in an instrumented cursor.

A Cursor is lazy and one-pass: records are pulled from the engine on demand
and cannot be replayed. Handlers registered with OnBeforeNext run before
every pull, handlers registered with OnExhaust run once when the stream ends.
The session service hangs session disposal on these hooks.

A transport failure mid-stream is returned to the reader and is not treated
as exhaustion: OnExhaust handlers do not run on that path.

A Cursor is not safe for concurrent pulls.
*/
package result
