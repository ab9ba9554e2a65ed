package utils

import "regexp"

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

// MaskDSN hides the password portion of a connection string for log output.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskToken keeps the first four characters of a credential and hides the rest.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "***"
}
