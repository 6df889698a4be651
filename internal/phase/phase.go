// Package phase defines the fixed room production sequence and the
// successor lookup used when a phase completes.
package phase

// Phase kinds, in canonical order.
const (
	Concept        = "concept"
	ThreeD         = "three_d"
	ClientApproval = "client_approval"
	Drawings       = "drawings"
	FFE            = "ffe"
)

// legacyRendering is the identifier older rooms used for the 3D phase.
// It is accepted on input and normalized everywhere else.
const legacyRendering = "rendering"

// Sequence is the canonical phase order. client_approval is the one branch
// point: it fans out to both drawings and ffe instead of a single successor.
var Sequence = []string{Concept, ThreeD, ClientApproval, Drawings, FFE}

var labels = map[string]string{
	Concept:        "Design Concept",
	ThreeD:         "3D Rendering",
	ClientApproval: "Client Approval",
	Drawings:       "Drawings",
	FFE:            "FFE",
}

// Canonical maps any accepted identifier to its canonical kind.
// Unknown identifiers come back unchanged; callers gate on Known.
func Canonical(kind string) string {
	if kind == legacyRendering {
		return ThreeD
	}
	return kind
}

// Known reports whether kind (after normalization) is a registry phase.
func Known(kind string) bool {
	return Index(kind) >= 0
}

// Index returns the position of kind in the canonical sequence, or -1.
func Index(kind string) int {
	kind = Canonical(kind)
	for i, p := range Sequence {
		if p == kind {
			return i
		}
	}
	return -1
}

// Label returns the display name for a phase kind.
func Label(kind string) string {
	if l, ok := labels[Canonical(kind)]; ok {
		return l
	}
	return kind
}

// Next returns the downstream phase kinds of kind: the single next element
// for ordinary phases, both drawings and ffe for client_approval, and
// nothing for the terminal phase.
func Next(kind string) []string {
	i := Index(kind)
	if i < 0 {
		return nil
	}
	if Sequence[i] == ClientApproval {
		return []string{Drawings, FFE}
	}
	if i+1 >= len(Sequence) {
		return nil
	}
	return []string{Sequence[i+1]}
}
