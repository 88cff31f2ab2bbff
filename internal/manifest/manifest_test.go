package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathForID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{
			name: "plain numeric id",
			id:   "mdp.39015012345678",
			want: filepath.Join("mdp", "31147", "mdp.39015012345678.json.bz2"),
		},
		{
			name: "id with colon and slashes",
			id:   "loc.ark:/13960/t0qr4z36w",
			want: filepath.Join("loc", "a+30046", "loc.ark+=13960=t0qr4z36w.json.bz2"),
		},
		{
			name: "id with dot in local part",
			id:   "uc1.b4134231.x",
			want: filepath.Join("uc1", "b33x", "uc1.b4134231,x.json.bz2"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PathForID(tt.id)
			if err != nil {
				t.Fatalf("PathForID(%q): %v", tt.id, err)
			}
			if got != tt.want {
				t.Errorf("PathForID(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPathForIDMalformed(t *testing.T) {
	for _, id := range []string{"", "noprefix", ".local", "lib."} {
		if _, err := PathForID(id); err == nil {
			t.Errorf("PathForID(%q): expected error", id)
		}
	}
}

func TestIDRoundTrip(t *testing.T) {
	ids := []string{
		"mdp.39015012345678",
		"loc.ark:/13960/t0qr4z36w",
		"uc1.b4134231.x",
		"uc2.ark:/13960/fk9876",
	}
	for _, id := range ids {
		path, err := PathForID(id)
		if err != nil {
			t.Fatalf("PathForID(%q): %v", id, err)
		}
		back, err := IDFromPath(path)
		if err != nil {
			t.Fatalf("IDFromPath(%q): %v", path, err)
		}
		if back != id {
			t.Errorf("round trip %q -> %q -> %q", id, path, back)
		}
	}
}

func TestValidID(t *testing.T) {
	valid := []string{"mdp.39015012345678", "loc.ark:/13960/t0qr4z36w", "uc1.b4134231.x"}
	invalid := []string{"", "noprefix", "MDP.123", "mdp.", "m.x", "mdp.with space", "\x00\x01\x02"}

	for _, id := range valid {
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true, want false", id)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	content := "mdp/31147/mdp.39015012345678.json.bz2\n" +
		"\n" + // blank lines are skipped
		"uc1/b33x/uc1.b4134231,x.json.bz2\n"
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatal(err)
	}

	ids, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"mdp.39015012345678", "uc1.b4134231.x"}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
