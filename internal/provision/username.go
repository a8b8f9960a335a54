// Package provision turns provider credentials into validated proxy endpoints.
package provision

import (
	"strconv"
	"strings"

	"github.com/user/proxydeck/internal/model"
)

// BuildUsername returns the composite username the provider reads its
// targeting parameters from:
//
//	user-<base>[-sessionduration-<mins>]-country-us[-zip-<zip>]
//
// The segment order is fixed by the provider. Empty zip and non-positive
// sessionMinutes are left out entirely.
func BuildUsername(base, zip string, sessionMinutes int) string {
	var b strings.Builder
	b.WriteString("user-")
	b.WriteString(base)
	if sessionMinutes > 0 {
		b.WriteString("-sessionduration-")
		b.WriteString(strconv.Itoa(sessionMinutes))
	}
	b.WriteString("-country-")
	b.WriteString(model.DefaultCountryCode)
	if zip != "" {
		b.WriteString("-zip-")
		b.WriteString(zip)
	}
	return b.String()
}

// UsernameFor templates the username for a request.
func UsernameFor(req model.AcquisitionRequest) string {
	return BuildUsername(req.BaseUsername, req.ZipCode, req.SessionDurationMinutes)
}
