package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var relativeExpiryRe = regexp.MustCompile(`^(\d+)([dwh])$`)

var relativeUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"h": time.Hour,
}

// ParseExpirationDuration turns a token-expiry string into an absolute time.
// Supported forms:
//   - "never" or "" returns nil (no expiration)
//   - any Go duration ("24h", "30m", "2h30m")
//   - day/week shorthand ("30d", "2w")
//   - an absolute date "2006-01-02" or RFC 3339 timestamp, which must lie
//     in the future
func ParseExpirationDuration(expiresIn string) (*time.Time, error) {
	if expiresIn == "" || expiresIn == "never" {
		return nil, nil
	}

	if dur, err := time.ParseDuration(expiresIn); err == nil {
		t := time.Now().Add(dur)
		return &t, nil
	}

	for _, format := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(format, expiresIn); err == nil {
			if t.Before(time.Now()) {
				return nil, fmt.Errorf("expiration date must be in the future: %s", expiresIn)
			}
			return &t, nil
		}
	}

	matches := relativeExpiryRe.FindStringSubmatch(expiresIn)
	if len(matches) != 3 {
		return nil, fmt.Errorf("invalid expiration format: %s (use 'never', '30d', '2w', '24h', '2026-12-25', or any Go duration)", expiresIn)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid number in expiration: %s", expiresIn)
	}

	t := time.Now().Add(time.Duration(num) * relativeUnits[matches[2]])
	return &t, nil
}
