package util

import "strconv"

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParsePage reads page/limit query values with bounds. Page is 1-based;
// limit is clamped to maxLimit to keep a single request from scanning the
// whole table.
func ParsePage(pageStr, limitStr string, defaultLimit, maxLimit int) (page, limit, offset int) {
	page = ParseInt(pageStr, 1)
	if page < 1 {
		page = 1
	}
	limit = ParseInt(limitStr, defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = (page - 1) * limit
	return page, limit, offset
}
