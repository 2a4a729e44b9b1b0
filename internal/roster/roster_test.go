package roster

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		members []Member
		want    string
	}{
		{"empty", nil, EmptyPlaceholder},
		{"single", []Member{{Name: "Ana", Role: "Designer"}}, "Ana (Designer)"},
		{
			"several",
			[]Member{{Name: "Ana", Role: "Designer"}, {Name: "João", Role: "Engineer"}},
			"Ana (Designer), João (Engineer)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.members); got != tt.want {
				t.Errorf("Expected '%s', got '%s'", tt.want, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	members, err := Parse(" Ana:Designer ; João : Engineer;;Pedro")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("Expected 3 members, got %d", len(members))
	}
	if members[1].Name != "João" || members[1].Role != "Engineer" {
		t.Errorf("Unexpected member: %+v", members[1])
	}
	if members[2].Role != "" {
		t.Errorf("Expected empty role, got '%s'", members[2].Role)
	}

	if _, err := Parse(":Engineer"); err == nil {
		t.Error("Expected error for entry without a name")
	}

	empty, err := Parse("")
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty roster, got %v (%v)", empty, err)
	}
}

func TestStore(t *testing.T) {
	s := NewStore([]Member{{Name: "Ana", Role: "Designer"}, {Name: "  ", Role: "Ghost"}})

	members := s.Members()
	if len(members) != 1 {
		t.Fatalf("Expected nameless member to be skipped, got %d members", len(members))
	}

	// callers get a copy
	members[0].Name = "Changed"
	if s.Members()[0].Name != "Ana" {
		t.Error("Expected store to be unaffected by caller mutation")
	}

	s.Replace(nil)
	if len(s.Members()) != 0 {
		t.Errorf("Expected empty roster after replace, got %d", len(s.Members()))
	}
}

func TestSystemInstruction(t *testing.T) {
	withTeam := SystemInstruction([]Member{{Name: "Ana", Role: "Designer"}})
	if !strings.Contains(withTeam, "REGISTERED TEAM: Ana (Designer)") {
		t.Error("Expected roster substituted into the instruction")
	}
	if strings.Contains(withTeam, teamPlaceholder) {
		t.Error("Expected placeholder to be replaced")
	}

	empty := SystemInstruction(nil)
	if !strings.Contains(empty, EmptyPlaceholder) {
		t.Error("Expected empty roster placeholder in the instruction")
	}
}
