package rop_test

import (
	"testing"

	"github.com/RohanKheraCR/OpenRace/analysis/rop"
)

func TestKindStringUnknown(t *testing.T) {
	if got := rop.Kind(9999).String(); got != "Unknown" {
		t.Errorf("Kind(9999).String() = %q, want %q", got, "Unknown")
	}
	if got := rop.Read.String(); got != "Read" {
		t.Errorf("Read.String() = %q, want %q", got, "Read")
	}
}
