package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key layout. These strings are shared with existing dashboards and must not change.
const (
	GlobalKey         = "index:global"
	EventPrefix       = "event:"
	LocIndexPrefix    = "index:loc:"
	SummaryPrefix     = "loc:"
	LocationsPrefix   = "locations:"
	eventSuffixLength = 8
)

// EventKey returns event:<unixMillis>:<randomSuffix> for an event written at t.
func EventKey(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:eventSuffixLength]
	return fmt.Sprintf("%s%d:%s", EventPrefix, t.UnixMilli(), suffix)
}

// LocationIndexKey is index:loc:<account>:<location>.
func LocationIndexKey(account, location string) string {
	return LocIndexPrefix + account + ":" + location
}

// SummaryKey is loc:<account>:<location>.
func SummaryKey(account, location string) string {
	return SummaryPrefix + account + ":" + location
}

// LocationsKey is locations:<account>.
func LocationsKey(account string) string {
	return LocationsPrefix + account
}

// SummaryPrefixFor lists every summary key of an account.
func SummaryPrefixFor(account string) string {
	return SummaryPrefix + account + ":"
}

// LocationID is the dedupe identity of a location within the list: account:location.
func LocationID(account, location string) string {
	return account + ":" + location
}
