// Package idgen generates identifiers for marketintel records.
//
// Every record type carries a short prefix ("cmp_", "prd_", "obs_", "rpt_",
// "alr_", "job_") on top of a UUIDv7, so IDs sort by creation time and read well in logs.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 version 7 UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every ID produced by gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Record-scoped generators.
var (
	Company     = Prefixed("cmp_", UUIDv7())
	Product     = Prefixed("prd_", UUIDv7())
	Observation = Prefixed("obs_", UUIDv7())
	Report      = Prefixed("rpt_", UUIDv7())
	Alert       = Prefixed("alr_", UUIDv7())
	Job         = Prefixed("job_", UUIDv7())
)
