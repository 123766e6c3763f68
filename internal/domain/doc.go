// Package domain defines the entities of the cloaking platform's
// Authoritative Store: users, offers, pages, blacklist rule families,
// blacklist sources, cloak logs, daily stats, and prompts. These are plain
// structs with no behavior beyond small invariant helpers; persistence lives
// in internal/store/postgres, derived caching in internal/cache/redis.
package domain
