package querycache

import (
	"net/url"
	"strings"

	"roomdesk/internal/domain"
)

// TagRooms covers every room list query, whatever its criteria.
const TagRooms = "rooms"

// Key derives the cache key of a list query. It depends only on the field
// values of criteria; "all" and "" are the same (inactive) filter and map to
// the same key, just as they produce the same request.
func Key(criteria domain.FilterCriteria) string {
	var b strings.Builder
	b.WriteString(TagRooms)
	b.WriteString("|search=")
	b.WriteString(url.QueryEscape(criteria.Search))
	b.WriteString("|type=")
	b.WriteString(url.QueryEscape(criteria.TypeFilter()))
	b.WriteString("|status=")
	b.WriteString(url.QueryEscape(criteria.StatusFilter()))
	return b.String()
}

// tagOf returns the tag a key belongs to.
func tagOf(key string) string {
	if i := strings.IndexByte(key, '|'); i >= 0 {
		return key[:i]
	}
	return key
}
