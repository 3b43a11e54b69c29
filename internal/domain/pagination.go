package domain

import (
	"encoding/base64"
	"strconv"
)

// PageRequest holds pagination parameters for list operations. A
// non-positive MaxResults disables paging.
type PageRequest struct {
	MaxResults int
	PageToken  string // opaque: base64 of the offset into the sorted result
}

// Offset decodes the page token into an offset. An empty token is offset 0.
func (p PageRequest) Offset() (int, error) {
	if p.PageToken == "" {
		return 0, nil
	}
	raw, err := base64.StdEncoding.DecodeString(p.PageToken)
	if err != nil {
		return 0, ErrValidation("invalid continuation token")
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, ErrValidation("invalid continuation token")
	}
	return offset, nil
}

// EncodePageToken renders an offset as a page token; offset 0 is the empty
// token.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

// Page cuts one page out of items and returns it with the token of the next
// page, empty on the last one. Callers pass items in a stable order.
func Page[T any](items []T, page PageRequest) ([]T, string, error) {
	offset, err := page.Offset()
	if err != nil {
		return nil, "", err
	}
	if offset >= len(items) {
		return []T{}, "", nil
	}
	if page.MaxResults <= 0 {
		return items[offset:], "", nil
	}
	end := min(offset+page.MaxResults, len(items))
	if end == len(items) {
		return items[offset:end], "", nil
	}
	return items[offset:end], EncodePageToken(end), nil
}
