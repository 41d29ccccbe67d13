/*
Package domain contains the core data model of the Lattice session facade.

It defines what flows between the driver adapters, the result cursor and the
session service: records and parameter values, credentials, disposal policies,
lifecycle events and the sentinel errors callers match with errors.Is. This
package is kept pure and free of I/O, following Hexagonal Architecture
principles.

# Key Entities

  - Record: One row of a query result (ordered keys and values).
  - Value: A closed variant of the parameter/result types the engine accepts.
  - ResultID: The globally unique identifier minted for every result stream.
  - Policy: How a session is released once its query has run.
  - LifecycleHooks: Callbacks fired on session open/close and result exhaustion.
*/
package domain
