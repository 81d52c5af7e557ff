// Package dedup interns strings, so values repeated across thousands of
// directory objects share one allocation for the lifetime of the snapshot.
package dedup

import "unique"

var D Unique

type Unique struct{}

func (u *Unique) S(s string) string {
	if s == "" {
		return ""
	}
	return unique.Make(s).Value()
}
