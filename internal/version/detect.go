// Package version probes locally installed toolchain channels so workflows
// that pin a channel (cargo +nightly, rustup run stable ...) can be checked
// before execution.
package version

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Info captures an installed toolchain channel.
type Info struct {
	Channel string
	Version string
}

var (
	rustcRegex   = regexp.MustCompile(`(?i)rustc\s+(\d+\.\d+(?:\.\d+)?(?:-\w+)?)`)
	channelRegex = regexp.MustCompile(`(?:cargo\s+\+|rustup\s+run\s+)([A-Za-z0-9._-]+)`)
	pinRegex     = regexp.MustCompile(`(?m)^\s*channel\s*=\s*"([^"]+)"`)
)

// DetectToolchain probes the given channel via rustup and returns its
// compiler version.
func DetectToolchain(channel string) (Info, error) {
	out, err := runCommand("rustup", "run", channel, "rustc", "--version")
	if err != nil {
		return Info{}, err
	}
	match := rustcRegex.FindStringSubmatch(out)
	if len(match) < 2 {
		return Info{}, fmt.Errorf("unable to parse toolchain version from %q", out)
	}
	return Info{Channel: channel, Version: match[1]}, nil
}

// PinnedChannel reads the repository's toolchain pin from rust-toolchain or
// rust-toolchain.toml. An empty string means no pin exists.
func PinnedChannel(root string) string {
	plain := filepath.Join(root, "rust-toolchain")
	if data, err := os.ReadFile(plain); err == nil {
		if pin := strings.TrimSpace(string(data)); pin != "" && !strings.Contains(pin, "[") {
			return pin
		}
	}
	toml := filepath.Join(root, "rust-toolchain.toml")
	data, err := os.ReadFile(toml)
	if err != nil {
		return ""
	}
	match := pinRegex.FindStringSubmatch(string(data))
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// ChannelsInScript extracts the toolchain channels a run script references.
func ChannelsInScript(script string) []string {
	matches := channelRegex.FindAllStringSubmatch(script, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Missing reports whether an error indicates the probing executable is not
// installed at all.
func Missing(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

func runCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
