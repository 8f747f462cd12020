package discovery

import (
	"strings"

	"github.com/sells-group/leadgen/pkg/google"
)

// addressParts extracts city, state, and postal code from typed address
// components. Short names are preferred ("TX" over "Texas").
func addressParts(components []google.AddressComponent) (city, state, zip string) {
	for _, c := range components {
		text := c.ShortText
		if text == "" {
			text = c.LongText
		}
		for _, t := range c.Types {
			switch t {
			case "locality":
				city = text
			case "administrative_area_level_1":
				state = text
			case "postal_code":
				zip = text
			}
		}
	}
	return city, state, zip
}

// parseAddress performs a best-effort extraction of city, state, zip from a
// formatted address string like "123 Main St, Springfield, IL 62701, USA".
func parseAddress(addr string) (city, state, zip string) {
	var parts []string
	for _, p := range strings.Split(addr, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return "", "", ""
	}

	// Typically: street, city, state+zip, country.
	for i := len(parts) - 1; i >= 0; i-- {
		if s, z := parseStateZip(parts[i]); s != "" {
			if i > 0 {
				city = parts[i-1]
			}
			return city, s, z
		}
	}

	return parts[len(parts)-2], "", ""
}

// parseStateZip tries to parse "IL 62701" or "IL".
func parseStateZip(s string) (state, zip string) {
	fields := strings.Fields(s)
	if len(fields) == 0 || !isStateCode(fields[0]) {
		return "", ""
	}
	if len(fields) >= 2 && isZipCode(fields[1]) {
		zip = fields[1]
	}
	return fields[0], zip
}

func isStateCode(s string) bool {
	return len(s) == 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}

func isZipCode(s string) bool {
	if len(s) < 5 || len(s) > 10 {
		return false
	}
	return strings.Trim(s, "0123456789-") == ""
}

// splitLocation splits "Austin, TX" into city and state.
func splitLocation(location string) (city, state string) {
	city, state, _ = strings.Cut(location, ",")
	return strings.TrimSpace(city), strings.TrimSpace(state)
}
