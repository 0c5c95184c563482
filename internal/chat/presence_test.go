package chat

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"plain", "alice", "alice", nil},
		{"trimmed", "  bob \t", "bob", nil},
		{"empty", "", "", ErrEmptyUsername},
		{"whitespace only", "   ", "", ErrEmptyUsername},
		{"truncated", strings.Repeat("x", 30), strings.Repeat("x", 20), nil},
		{"multibyte truncated", strings.Repeat("名", 25), strings.Repeat("名", 20), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeName(tt.in)
			if !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Fatalf("NormalizeName(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

var suffixed = regexp.MustCompile(`^alice_\d{1,3}$`)

func TestPresence_CollisionGetsSuffix(t *testing.T) {
	p := NewPresence()
	now := time.Unix(1700000000, 0)

	a, err := p.Register("c1", "10.0.0.1", "alice", now)
	if err != nil {
		t.Fatalf("Register(c1) error = %v", err)
	}
	b, err := p.Register("c2", "10.0.0.2", "alice", now)
	if err != nil {
		t.Fatalf("Register(c2) error = %v", err)
	}
	if a.Username != "alice" {
		t.Errorf("first name = %q, want alice", a.Username)
	}
	if !suffixed.MatchString(b.Username) {
		t.Errorf("second name = %q, want alice_<digits>", b.Username)
	}
	if p.Count() != 2 {
		t.Errorf("Count() = %d, want 2", p.Count())
	}
}

func TestPresence_SuffixRedraw(t *testing.T) {
	p := NewPresence()
	draws := []int{7, 7, 42}
	p.suffix = func() int {
		n := draws[0]
		draws = draws[1:]
		return n
	}
	now := time.Unix(1700000000, 0)
	p.Register("c1", "", "alice", now)
	p.Register("c2", "", "alice", now)
	u, _ := p.Register("c3", "", "alice", now)

	if u.Username != "alice_42" {
		t.Errorf("third name = %q, want alice_42", u.Username)
	}
}

func TestPresence_AlreadyJoined(t *testing.T) {
	p := NewPresence()
	now := time.Unix(1700000000, 0)
	p.Register("c1", "", "alice", now)
	if _, err := p.Register("c1", "", "bob", now); err != ErrAlreadyJoined {
		t.Errorf("Register() twice error = %v, want ErrAlreadyJoined", err)
	}
}

func TestPresence_ListKeepsJoinOrder(t *testing.T) {
	p := NewPresence()
	now := time.Unix(1700000000, 0)
	for i, name := range []string{"carol", "alice", "bob"} {
		p.Register(name+"-conn", "", name, now.Add(time.Duration(i)*time.Second))
	}
	p.Remove("alice-conn")

	got := p.List()
	if len(got) != 2 || got[0].Username != "carol" || got[1].Username != "bob" {
		t.Errorf("List() = %+v, want [carol bob]", got)
	}
	admin := p.AdminUsers()
	if admin[1].SocketID != "bob-conn" {
		t.Errorf("AdminUsers()[1].SocketID = %q, want bob-conn", admin[1].SocketID)
	}
}

func TestPresence_RemoveMissing(t *testing.T) {
	p := NewPresence()
	if _, ok := p.Remove("nope"); ok {
		t.Error("Remove() of unknown connection returned ok")
	}
}

func TestPresence_FindByName(t *testing.T) {
	p := NewPresence()
	p.Register("c1", "", "alice", time.Now())

	if id, ok := p.FindByName("alice"); !ok || id != "c1" {
		t.Errorf("FindByName(alice) = (%q, %v), want (c1, true)", id, ok)
	}
	if _, ok := p.FindByName("bob"); ok {
		t.Error("FindByName(bob) found a user")
	}
}
