package app

import (
	"strings"
	"testing"
)

func TestTerminalConfirm(t *testing.T) {
	cases := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"\n", false},
		{"sure\n", false},
	}
	for _, tc := range cases {
		var out strings.Builder
		confirm := TerminalConfirm(strings.NewReader(tc.answer), &out)
		if got := confirm("Send it?"); got != tc.want {
			t.Errorf("answer %q: got %v, want %v", strings.TrimSpace(tc.answer), got, tc.want)
		}
		if !strings.Contains(out.String(), "Send it? [y/N]") {
			t.Errorf("prompt not written: %q", out.String())
		}
	}
}

func TestTerminalConfirmEOFDeclines(t *testing.T) {
	confirm := TerminalConfirm(strings.NewReader(""), &strings.Builder{})
	if confirm("Send it?") {
		t.Fatal("EOF should decline")
	}
}

func TestOpenSeedsWorkspace(t *testing.T) {
	s, err := Open(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if s.Config.Studio.Name == "" {
		t.Fatal("expected default config")
	}
	if s.Engine.Mailer != nil {
		t.Fatal("no gateway configured, mailer should be nil")
	}
	if err := s.Engine.DB.Ping(); err != nil {
		t.Fatalf("db not usable: %v", err)
	}
}
