package models

import (
	"errors"
	"fmt"
	"strings"
)

// AllowedIndustries is the fixed set of industry tags the platform serves.
// Tags are stored and filtered in their lowercase canonical form.
var AllowedIndustries = []string{"healthcare", "real-estate", "hvac", "legal", "finance"}

// ErrInvalidIndustry is returned when an industry tag is not in the allow-list.
var ErrInvalidIndustry = errors.New("invalid industry")

// NormalizeIndustry canonicalizes a caller-supplied industry tag.
// Matching is case-insensitive; the canonical form is lowercase.
func NormalizeIndustry(industry string) (string, error) {
	tag := strings.ToLower(strings.TrimSpace(industry))
	for _, allowed := range AllowedIndustries {
		if tag == allowed {
			return tag, nil
		}
	}
	return "", fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidIndustry, industry, strings.Join(AllowedIndustries, ", "))
}
