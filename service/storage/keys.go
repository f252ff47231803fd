package storage

import (
	"fmt"
	"sort"
)

// DMKey is the conversation key of a direct chat; it is the same for (a,b) and (b,a).
// Ids are length-prefixed so that no two distinct pairs share a key.
func DMKey(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return fmt.Sprintf("im:dm:%d:%s|%d:%s", len(p[0]), p[0], len(p[1]), p[1])
}

// presence key: im:presence:<user>, value is the gateway node id
func presenceKey(user string) string { return "im:presence:" + user }

// last seen key: im:lastseen:<user>, value is unix millis of the last offline transition
func lastSeenKey(user string) string { return "im:lastseen:" + user }
