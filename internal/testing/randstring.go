// Package testing holds helpers shared by the package-level test suites.
package testing

import (
	"math/rand"
	"strings"
)

const charSet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandString generates a random 12-symbol string, handy for unique sources,
// uids and emails in store tests.
func RandString() string {
	var out strings.Builder
	for i := 0; i < 12; i++ {
		out.WriteByte(charSet[rand.Intn(len(charSet))])
	}
	return out.String()
}
