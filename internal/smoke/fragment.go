package smoke

import (
	"net/url"
	"strings"

	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
)

// TargetID derives the element id a same-document link points at, without
// percent-decoding it.
//
// In strict mode href must be "#<id>" with a non-empty id; anything else is a
// VALIDATION error. In lenient mode the first '#' is dropped wherever it
// occurs and the rest is used as-is.
func TargetID(href string, strict bool) (string, error) {
	var id string
	if strict {
		if !strings.HasPrefix(href, "#") {
			return "", cdpcontrol.NewError(cdpcontrol.CodeValidation, "toc href "+quote(href)+" is not a same-document fragment", nil)
		}
		id = href[1:]
	} else {
		id = strings.Replace(href, "#", "", 1)
	}
	if id == "" {
		return "", cdpcontrol.NewError(cdpcontrol.CodeValidation, "toc href "+quote(href)+" names no element", nil)
	}
	return id, nil
}

// FragmentCandidates lists the ids a browser tries for fragment id, in order:
// the raw fragment, then its percent-decoded form when that differs.
func FragmentCandidates(id string) []string {
	decoded, err := url.PathUnescape(id)
	if err != nil || decoded == id || decoded == "" {
		return []string{id}
	}
	return []string{id, decoded}
}

func quote(s string) string {
	return `"` + s + `"`
}
