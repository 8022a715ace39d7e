package syntax

import "testing"

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{TokenIdent, "IDENT"},
		{TokenGreaterEq, ">="},
		{NodeRoot, "ROOT"},
		{NodeIdent, "IDENT_NODE"},
		{Kind(60000), "Kind(60000)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", uint16(tt.kind), got, tt.want)
		}
	}
}

func TestKindIsToken(t *testing.T) {
	if !TokenGreaterEq.IsToken() {
		t.Error("last token kind should be a token")
	}
	if NodeRoot.IsToken() {
		t.Error("NodeRoot should not be a token")
	}
	if NodeRoot != firstNodeKind {
		t.Errorf("NodeRoot = %d, want firstNodeKind %d", NodeRoot, firstNodeKind)
	}
}
