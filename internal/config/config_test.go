package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hoard-go/internal/checksum"
	"hoard-go/internal/config"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `
checksum = "md5"
ignore = ["*.bak"]

[hoards.vimrc]
path = "/home/me/.vimrc"

[hoards.shell]
checksum = "sha256"
ignore = ["*.swp"]

[hoards.shell.piles.bash]
path = "/home/me/.bashrc"

[hoards.shell.piles.zsh]
path = "/home/me/.zshrc"
checksum = "md5"
ignore = ["secrets/*"]
`)

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := cfg.Names(), []string{"shell", "vimrc"}; !equalStrings(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	h, err := cfg.Resolve("shell")
	if err != nil {
		t.Fatalf("Resolve(shell): %v", err)
	}
	if h.Anonymous() {
		t.Error("shell resolved as anonymous")
	}
	if len(h.Piles) != 2 {
		t.Fatalf("got %d piles, want 2", len(h.Piles))
	}
	bash, zsh := h.Piles[0], h.Piles[1]
	if bash.Name != "bash" || zsh.Name != "zsh" {
		t.Fatalf("piles not sorted by name: %q, %q", bash.Name, zsh.Name)
	}
	if bash.Checksum != checksum.SHA256 {
		t.Errorf("bash checksum = %s, want hoard-level sha256", bash.Checksum)
	}
	if zsh.Checksum != checksum.MD5 {
		t.Errorf("zsh checksum = %s, want pile-level md5", zsh.Checksum)
	}

	// Patterns merge global + hoard + pile.
	for _, path := range []string{"old.bak", "x.swp", "secrets/key"} {
		if !zsh.Ignore.Match(path) {
			t.Errorf("zsh ignore should match %q", path)
		}
	}
	if bash.Ignore.Match("secrets/key") {
		t.Error("bash ignore matched a pile-level pattern of another pile")
	}

	v, err := cfg.Resolve("vimrc")
	if err != nil {
		t.Fatalf("Resolve(vimrc): %v", err)
	}
	if !v.Anonymous() {
		t.Error("vimrc should resolve as anonymous")
	}
	if v.Piles[0].Checksum != checksum.MD5 {
		t.Errorf("vimrc checksum = %s, want global md5", v.Piles[0].Checksum)
	}
}

func TestLoadYAMLFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
hoards:
  vimrc:
    path: /home/me/.vimrc
`)

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h, err := cfg.Resolve("vimrc")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if h.Piles[0].Checksum != checksum.DefaultAlgorithm {
		t.Errorf("checksum = %s, want default", h.Piles[0].Checksum)
	}
}

func TestLoadPrefersTOML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", "[hoards.fromtoml]\npath = \"/a\"\n")
	writeConfig(t, dir, "config.yaml", "hoards:\n  fromyaml:\n    path: /b\n")

	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := cfg.Hoards["fromtoml"]; !ok {
		t.Error("expected the TOML file to win")
	}
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(t.TempDir())
	if err == nil {
		t.Fatal("expected an error for an empty config dir")
	}
}

func TestResolveEnvExpansion(t *testing.T) {
	t.Setenv("HOARD_TEST_HOME", "/home/me")

	cfg := &config.Config{Hoards: map[string]config.HoardConfig{
		"vimrc": {Path: "${HOARD_TEST_HOME}/.vimrc"},
	}}
	h, err := cfg.Resolve("vimrc")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got, want := h.Piles[0].SystemPath, "/home/me/.vimrc"; got != want {
		t.Errorf("SystemPath = %q, want %q", got, want)
	}
}

func TestResolveUnsetEnvVar(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Hoards: map[string]config.HoardConfig{
		"vimrc": {Path: "${HOARD_DEFINITELY_UNSET_VAR}/.vimrc"},
	}}
	_, err := cfg.Resolve("vimrc")
	if err == nil || !strings.Contains(err.Error(), "HOARD_DEFINITELY_UNSET_VAR") {
		t.Errorf("err = %v, want unset variable error", err)
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.HoardConfig
		want string
	}{
		{
			name: "path and piles",
			cfg: config.HoardConfig{
				Path:  "/a",
				Piles: map[string]config.PileConfig{"x": {Path: "/b"}},
			},
			want: "both path and piles",
		},
		{
			name: "relative path",
			cfg:  config.HoardConfig{Path: "relative/path"},
			want: "not absolute",
		},
		{
			name: "bad checksum",
			cfg:  config.HoardConfig{Path: "/a", Checksum: "crc32"},
			want: "unknown checksum algorithm",
		},
		{
			name: "no piles",
			cfg:  config.HoardConfig{},
			want: "no piles",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{Hoards: map[string]config.HoardConfig{"h": tt.cfg}}
			_, err := cfg.Resolve("h")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestResolveUnknownHoard(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Hoards: map[string]config.HoardConfig{}}
	if _, err := cfg.Resolve("nope"); err == nil {
		t.Fatal("expected an error for an unknown hoard")
	}
}

func TestResolveAll(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Hoards: map[string]config.HoardConfig{
		"b": {Path: "/b"},
		"a": {Path: "/a"},
	}}
	hoards, err := cfg.ResolveAll()
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	var names []string
	for _, h := range hoards {
		names = append(names, h.Name)
	}
	if want := []string{"a", "b"}; !equalStrings(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestResolveAllStopsOnError(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Hoards: map[string]config.HoardConfig{
		"bad":  {Path: "relative"},
		"good": {Path: "/ok"},
	}}
	if _, err := cfg.ResolveAll(); err == nil {
		t.Fatal("expected an error from the invalid hoard")
	}
}
