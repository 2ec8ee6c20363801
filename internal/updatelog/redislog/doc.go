// Package redislog stores the update log in Redis for low-latency
// deployments that already run one.
//
// Each document is a sorted set scored by sequence. Appends run a Lua
// script that derives max+1 and inserts in one atomic step; compaction uses
// an optimistic WATCH/EXEC transaction that retries when a concurrent
// append invalidates the read set. Members carry a fixed-width hex sequence
// prefix, which keeps duplicate payloads distinct within the set.
package redislog
