/*
Package redis implements the engine driver for RedisGraph and FalkorDB, the
graph modules that speak Cypher over the Redis protocol.

Queries are sent with GRAPH.QUERY. Parameters travel as a "CYPHER k=v" header
rendered from domain.Value literals. Each Session holds one dedicated
connection, so closing the session closes the connection.
*/
package redis
