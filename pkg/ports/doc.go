/*
Package ports defines the driven ports (interfaces) of Lattice.

These interfaces decouple the session lifecycle core from the engine driver,
so the same service runs against the Redis graph adapter, the in-memory
adapter used in tests, or any other driver.

# Key Interfaces

  - Driver: Opens authenticated sessions against the engine.
  - Session: A live connection that runs queries and must be closed exactly once.
  - RawCursor: The driver's destructive, pull-based result stream.
  - Registry: Keeps sessions open until they are released by result ID.
*/
package ports
