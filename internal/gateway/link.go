package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// LastPage returns the page number of the rel="last" entry of a Link header such as
//
//	<https://api.github.com/repositories/1/pulls?per_page=1&page=2>; rel="next",
//	<https://api.github.com/repositories/1/pulls?per_page=1&page=90>; rel="last"
//
// With a page size of 1 that number is the total item count.
func LastPage(header string) (int, error) {
	for _, entry := range strings.Split(header, ",") {
		target, params, found := strings.Cut(strings.TrimSpace(entry), ";")
		if !found || !hasRel(params, "last") {
			continue
		}
		target = strings.TrimSpace(target)
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			return 0, fmt.Errorf("%w: last target %q is not enclosed in <>", ErrMalformedLink, target)
		}
		u, err := url.Parse(target[1 : len(target)-1])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedLink, err)
		}
		page, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil || page < 0 {
			return 0, fmt.Errorf("%w: last page %q is not a count", ErrMalformedLink, u.Query().Get("page"))
		}
		return page, nil
	}
	return 0, fmt.Errorf("%w: no rel=\"last\" entry", ErrMalformedLink)
}

func hasRel(params, rel string) bool {
	for _, param := range strings.Split(params, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.TrimSpace(key) != "rel" {
			continue
		}
		// rel may hold several space separated relation types.
		for _, r := range strings.Fields(strings.Trim(strings.TrimSpace(value), `"`)) {
			if r == rel {
				return true
			}
		}
	}
	return false
}
