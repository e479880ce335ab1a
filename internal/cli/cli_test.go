package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/domainstack/pkg/cache"
)

const testDataset = `
name = "box"
time = 0.0
length_unit = "kpc"
code_length = 1.0

[domain]
left_edge = { value = [0.0, 0.0, 0.0], unit = "kpc" }
right_edge = { value = [2.0, 2.0, 2.0], unit = "kpc" }

[[fields]]
field_type = "gas"
field_name = "density"
amplitude = 10.0
`

const testDescription = `{
  "datasets": [{
    "filename": "box.toml",
    "selections": {
      "regions": [
        {"fields": [{"field_type": "gas", "field_name": "density"}], "resolution": [4, 4, 4]},
        {
          "fields": [{"field_type": "gas", "field_name": "density"}],
          "left_edge": {"value": [1, 1, 1], "unit": "kpc"},
          "right_edge": {"value": [2, 2, 2], "unit": "kpc"},
          "resolution": [4, 4, 4]
        }
      ]
    }
  }]
}`

// writeTestData writes a dataset and a description into a temp dir and
// returns the dir.
func writeTestData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{"box.toml": testDataset, "description.json": testDescription} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(&syncBuffer{}, LogInfo).RootCommand()
	for _, name := range []string{"compose", "pick", "scene", "serve", "cache", "completion"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestComposeCommand(t *testing.T) {
	dir := writeTestData(t)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(envRedisAddr, "")

	out := filepath.Join(dir, "out.json")
	root := New(&syncBuffer{}, LogInfo).RootCommand()
	root.SetArgs([]string{"compose", filepath.Join(dir, "description.json"), "-o", out, "--mode", "bounds"})
	if err := root.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("compose error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("compose wrote an empty export")
	}
}

func TestComposeCommandRejectsBadMode(t *testing.T) {
	dir := writeTestData(t)
	root := New(&syncBuffer{}, LogInfo).RootCommand()
	root.SetArgs([]string{"compose", filepath.Join(dir, "description.json"), "--mode", "sideways", "--no-cache"})
	root.SetErr(&syncBuffer{})
	if err := root.ExecuteContext(t.Context()); err == nil {
		t.Error("compose with an unknown mode should fail")
	}
}

func TestCacheCommands(t *testing.T) {
	dir := writeTestData(t)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(envRedisAddr, "")

	run := func(args ...string) {
		t.Helper()
		root := New(&syncBuffer{}, LogInfo).RootCommand()
		root.SetArgs(args)
		if err := root.ExecuteContext(t.Context()); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}
	run("cache", "clear")
	run("compose", filepath.Join(dir, "description.json"), "-o", filepath.Join(dir, "out.json"))

	cd, err := cacheDir()
	if err != nil {
		t.Fatal(err)
	}
	fc, err := cache.NewFileCache(cd)
	if err != nil {
		t.Fatal(err)
	}
	st, err := fc.Stats(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries == 0 {
		t.Fatal("compose left no cache entries")
	}

	run("cache", "info")
	run("cache", "clear", "--expired")
	if st, _ := fc.Stats(t.Context()); st.Entries == 0 {
		t.Error("clear --expired removed live entries")
	}
	run("cache", "clear")
	if st, _ := fc.Stats(t.Context()); st.Entries != 0 {
		t.Errorf("%d entries left after clear", st.Entries)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
