package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Fatalf("UUIDv7: bad format %q", id)
	}
	// Version nibble is the first char of the third group.
	if id[14] != '7' {
		t.Errorf("UUIDv7: version nibble got %q, want '7'", id[14])
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	// WHAT: successive IDs sort in generation order.
	// WHY: observations and reports are listed newest first by ID as a tie-break.
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 50; i++ {
		next := gen()
		if next <= prev {
			t.Fatalf("UUIDv7: %q not after %q", next, prev)
		}
		prev = next
	}
}

func TestRecordGenerators(t *testing.T) {
	cases := map[string]Generator{
		"cmp_": Company,
		"prd_": Product,
		"obs_": Observation,
		"rpt_": Report,
		"alr_": Alert,
		"job_": Job,
	}
	for prefix, gen := range cases {
		id := gen()
		if !strings.HasPrefix(id, prefix) {
			t.Errorf("%s generator: got %q", prefix, id)
		}
		if _, err := uuid.Parse(strings.TrimPrefix(id, prefix)); err != nil {
			t.Errorf("%s generator: %q is not a prefixed UUID", prefix, id)
		}
	}
}
