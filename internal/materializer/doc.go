// Package materializer projects the Authoritative Store's five blacklist
// rule families into the Fast Lookup Store, partitioned by scope, so the
// Decision Engine's hot path never queries Postgres directly.
package materializer
