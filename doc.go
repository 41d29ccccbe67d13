/*
Package lattice runs queries against a remote graph engine and takes care of
closing the session each query ran on.

Every query opens its own session. What happens to that session once the
query has run is decided by a disposal policy:

  - Immediate: records are buffered and the session closes before the call returns.
  - CloseOnExhaust: the session closes when the cursor is read to the end.
  - Deferred: the session closes after a delay, whether or not it was read.
  - Manual: the session stays open until Release is called with the result ID.

# Usage

	client := lattice.New(redis.NewDriver(), lattice.WithConfig(cfg))
	defer client.Close(ctx)

	cur, err := client.Run(ctx, "MATCH (p:Person) RETURN p.name", nil)
	if err != nil {
		return err
	}
	for rec, err := range cur.All(ctx) {
		if err != nil {
			return err
		}
		fmt.Println(rec.AsMap())
	}

A close-on-exhaust cursor that is abandoned before the end keeps its session
open. Use RunImmediate or RunDeferred when the reader may stop early.
*/
package lattice
