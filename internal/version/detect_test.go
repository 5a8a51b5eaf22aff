package version

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestChannelsInScript(t *testing.T) {
	cases := []struct {
		script string
		want   []string
	}{
		{"cargo build --verbose", nil},
		{"cargo +nightly fmt -- --check", []string{"nightly"}},
		{"rustup run stable cargo test", []string{"stable"}},
		{"cargo +nightly build && cargo +1.74.0 test && cargo +nightly clippy", []string{"1.74.0", "nightly"}},
	}
	for _, tc := range cases {
		got := ChannelsInScript(tc.script)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ChannelsInScript(%q) = %v, want %v", tc.script, got, tc.want)
		}
	}
}

func TestPinnedChannelPlainFile(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "rust-toolchain"), []byte("nightly-2024-01-15\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := PinnedChannel(root); got != "nightly-2024-01-15" {
		t.Errorf("got %q", got)
	}
}

func TestPinnedChannelToml(t *testing.T) {
	root := t.TempDir()
	content := "[toolchain]\nchannel = \"1.75.0\"\ncomponents = [\"clippy\"]\n"
	if err := os.WriteFile(filepath.Join(root, "rust-toolchain.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := PinnedChannel(root); got != "1.75.0" {
		t.Errorf("got %q", got)
	}
}

func TestPinnedChannelAbsent(t *testing.T) {
	if got := PinnedChannel(t.TempDir()); got != "" {
		t.Errorf("expected empty pin, got %q", got)
	}
}

func TestPinnedChannelTomlSyntaxInPlainFile(t *testing.T) {
	// A rust-toolchain file holding TOML falls through to the .toml parser.
	root := t.TempDir()
	content := "[toolchain]\nchannel = \"beta\"\n"
	if err := os.WriteFile(filepath.Join(root, "rust-toolchain"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := PinnedChannel(root); got != "" {
		t.Errorf("plain file with TOML body is not a pin, got %q", got)
	}
}

func TestDetectToolchainMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := DetectToolchain("stable")
	if err == nil {
		t.Fatalf("expected error when rustup is absent")
	}
	if !Missing(err) {
		t.Errorf("error should classify as missing executable: %v", err)
	}
}

func TestRustcVersionParsing(t *testing.T) {
	match := rustcRegex.FindStringSubmatch("rustc 1.76.0 (07dca489a 2024-02-04)")
	if len(match) < 2 || match[1] != "1.76.0" {
		t.Fatalf("got %v", match)
	}
	match = rustcRegex.FindStringSubmatch("rustc 1.78.0-nightly (abcdef 2024-03-01)")
	if len(match) < 2 || match[1] != "1.78.0-nightly" {
		t.Fatalf("got %v", match)
	}
}
