package phase

import (
	"reflect"
	"testing"
)

func TestNextSingleSuccessor(t *testing.T) {
	cases := map[string][]string{
		Concept:  {ThreeD},
		ThreeD:   {ClientApproval},
		Drawings: {FFE},
	}
	for kind, want := range cases {
		got := Next(kind)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Next(%s) = %v, want %v", kind, got, want)
		}
	}
}

func TestNextClientApprovalFansOut(t *testing.T) {
	got := Next(ClientApproval)
	if len(got) != 2 {
		t.Fatalf("Next(client_approval) = %v, want two successors", got)
	}
	seen := map[string]bool{}
	for _, k := range got {
		seen[k] = true
	}
	if !seen[Drawings] || !seen[FFE] {
		t.Fatalf("Next(client_approval) = %v, want {drawings, ffe}", got)
	}
}

func TestNextTerminal(t *testing.T) {
	if got := Next(FFE); len(got) != 0 {
		t.Fatalf("Next(ffe) = %v, want empty", got)
	}
}

func TestNextUnknownKind(t *testing.T) {
	if got := Next("painting"); got != nil {
		t.Fatalf("Next(painting) = %v, want nil", got)
	}
}

func TestLegacyRenderingAlias(t *testing.T) {
	if Canonical("rendering") != ThreeD {
		t.Fatalf("rendering should normalize to three_d")
	}
	if Index("rendering") != Index(ThreeD) {
		t.Fatalf("alias and canonical kind should share a position")
	}
	if !reflect.DeepEqual(Next("rendering"), Next(ThreeD)) {
		t.Fatalf("alias and canonical kind should share successors")
	}
	if !Known("rendering") {
		t.Fatalf("alias should be a known kind")
	}
}

func TestLabels(t *testing.T) {
	if Label(ThreeD) != "3D Rendering" {
		t.Fatalf("unexpected label %q", Label(ThreeD))
	}
	if Label("rendering") != "3D Rendering" {
		t.Fatalf("alias label should match canonical")
	}
}
