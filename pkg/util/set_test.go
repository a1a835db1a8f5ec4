package util

import "testing"

func TestSetMembership(t *testing.T) {
	s := Set[string]{}
	if !s.IsEmpty() {
		t.Error("new set should be empty")
	}

	s.Add("deploy")
	s.Add("verify")
	s.Add("deploy")

	if s.IsEmpty() {
		t.Error("set with members should not be empty")
	}
	if len(s) != 2 {
		t.Errorf("expected 2 members, got %d", len(s))
	}
	if !s.Contains("deploy") || !s.Contains("verify") {
		t.Error("set should contain added members")
	}
	if s.Contains("rollback") {
		t.Error("set should not contain members never added")
	}
}

func TestSetZeroValue(t *testing.T) {
	var s Set[int]
	if !s.IsEmpty() {
		t.Error("nil set should report empty")
	}
	if s.Contains(1) {
		t.Error("nil set should contain nothing")
	}
}
