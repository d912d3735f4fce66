// Package locale maps marketplace locales to API endpoint hosts.
package locale

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Default is used when no locale is given.
const Default = "US"

// ErrUnknownLocale is returned for a locale with no known endpoint.
var ErrUnknownLocale = errors.New("unknown locale")

var endpoints = map[string]string{
	"BR": "webservices.amazon.com.br",
	"CA": "webservices.amazon.ca",
	"CN": "webservices.amazon.cn",
	"DE": "webservices.amazon.de",
	"ES": "webservices.amazon.es",
	"FR": "webservices.amazon.fr",
	"IN": "webservices.amazon.in",
	"IT": "webservices.amazon.it",
	"JP": "webservices.amazon.co.jp",
	"MX": "webservices.amazon.com.mx",
	"UK": "webservices.amazon.co.uk",
	"US": "webservices.amazon.com",
}

// Endpoint returns the endpoint host for loc. Lookup is case-insensitive
// and an empty loc resolves to Default.
func Endpoint(loc string) (string, error) {
	if loc == "" {
		loc = Default
	}

	host, ok := endpoints[strings.ToUpper(loc)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLocale, loc)
	}

	return host, nil
}

// Locales lists the supported locales in sorted order.
func Locales() []string {
	return slices.Sorted(maps.Keys(endpoints))
}
