package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrWorldBusy,
		ErrBadRequest,
		ErrInvalidTarget,
		ErrNoPermission,
		ErrConflict,
		ErrBlocked,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsKnownOp(t *testing.T) {
	for _, op := range []string{OpPlace, OpDelete, OpSpawn, OpDamage} {
		if !IsKnownOp(op) {
			t.Fatalf("expected known op %q", op)
		}
	}
	if IsKnownOp("place") {
		t.Fatalf("ops are case-sensitive")
	}
}
