/*
Package workers sizes and runs small worker pools.

[Count] derives a worker count from runtime.GOMAXPROCS(0), which Go sets
from the container CPU limit, rather than runtime.NumCPU(), which reports
the host's CPUs. A pod limited to 2 cores on a 64-core node gets 2 CPU-bound
workers, not 64.

	n := workers.ForIO(16) // 2 per CPU, at most 16
	errs := workers.Each(ctx, n, files, embedFile)

Fetching and decoding previews is dominated by network waits, so the
embedctl file pool uses [ForIO].

# Environment Variable Override

EMBED_WORKERS replaces the computed count:

	EMBED_WORKERS=4 embedctl embed *.html

The limit passed by the caller still applies.
*/
package workers
