package plugins

import (
	"bytes"
	"context"
	"slices"
	"testing"

	"github.com/wippyai/wasm-launcher/bootstrap"
	"github.com/wippyai/wasm-launcher/config"
	"github.com/wippyai/wasm-launcher/engine"
	"github.com/wippyai/wasm-launcher/errors"
	"github.com/wippyai/wasm-launcher/host"
	"github.com/wippyai/wasm-launcher/internal/wasmtest"
	"github.com/wippyai/wasm-launcher/loader"
	"github.com/wippyai/wasm-launcher/source"
	"github.com/wippyai/wasm-launcher/wasm"
)

func setup(t *testing.T, cfg *config.Config, mem *source.MemorySource) (*host.Registry, *loader.Loader) {
	t.Helper()
	ctx := context.Background()
	reg := host.NewRegistry()
	if err := Register(reg, cfg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	l := loader.New(ctx, loader.Options{
		Parent:       reg,
		Sources:      []source.Source{mem},
		Delegate:     cfg.DelegatePrefixes(),
		EngineConfig: &engine.Config{Interpreter: true},
	})
	t.Cleanup(func() { l.Close(ctx) })
	return reg, l
}

func TestRegisterIsComplete(t *testing.T) {
	reg := host.NewRegistry()
	if err := Register(reg, config.Default()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	want := []string{DefaultName, RemapName, StampName, SynthName}
	if got := reg.Names(); !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if err := Register(reg, config.Default()); !errors.IsKind(err, errors.KindIdentityConflict) {
		t.Errorf("second Register should conflict, got %v", err)
	}
}

func TestStamp(t *testing.T) {
	ctx := context.Background()
	mem := source.Memory("mem", nil)
	mem.PutModule("game.Main", wasmtest.Start())
	_, l := setup(t, config.Default(), mem)

	if err := l.RegisterTransformer(ctx, StampName); err != nil {
		t.Fatalf("RegisterTransformer: %v", err)
	}
	m, err := l.Resolve(ctx, "game.Main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	customs, err := wasm.CustomSections(m.Code)
	if err != nil {
		t.Fatalf("CustomSections: %v", err)
	}
	if len(customs) != 1 || customs[0].Name != StampSection || string(customs[0].Data) != "game.Main" {
		t.Errorf("custom sections = %+v", customs)
	}

	stage := NewStamp().Stage()
	if got := stage.Transform("a", "a", nil); got != nil {
		t.Error("absent input should stay absent")
	}
	junk := []byte("junk")
	if got := stage.Transform("a", "a", junk); !bytes.Equal(got, junk) {
		t.Error("non-module input should pass through")
	}
}

func TestRemap(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Launch.Remap = map[string]string{"game.Main": "obf.a"}
	mem := source.Memory("mem", nil)
	mem.PutModule("obf.a", wasmtest.Start())
	_, l := setup(t, cfg, mem)

	if err := l.RegisterTransformer(ctx, RemapName); err != nil {
		t.Fatalf("RegisterTransformer: %v", err)
	}
	m, err := l.Resolve(ctx, "game.Main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.Name != "game.Main" || m.Provenance.Path != "obf/a.wasm" {
		t.Errorf("module %q from %q", m.Name, m.Provenance.Path)
	}
	viaInternal, err := l.Resolve(ctx, "obf.a")
	if err != nil {
		t.Fatalf("Resolve internal: %v", err)
	}
	if viaInternal != m {
		t.Error("internal name should map to the same identity")
	}

	v := NewRemap(cfg.Launch.Remap).Virtualizer()
	if v.Unmap("other.X") != "other.X" || v.Remap("other.X") != "other.X" {
		t.Error("unmapped names should be unchanged")
	}
}

func TestSynth(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Launch.Synthesize = []string{"gen."}
	_, l := setup(t, cfg, source.Memory("mem", nil))

	if err := l.RegisterTransformer(ctx, SynthName); err != nil {
		t.Fatalf("RegisterTransformer: %v", err)
	}
	m, err := l.Resolve(ctx, "gen.Stub")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !bytes.Equal(m.Code, wasm.EmptyModule()) {
		t.Errorf("synthesized code = %x", m.Code)
	}
	if _, err := l.Resolve(ctx, "real.Missing"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestDefaultLaunchArguments(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		cfg      config.LaunchConfig
		want     []string
	}{
		{
			name: "adds options",
			want: []string{"pos", "--gameDir", "/g", "--assetsDir", "/a", "--version", "1.0"},
		},
		{
			name:     "skips options already present",
			existing: []string{"--gameDir", "/other"},
			cfg:      config.LaunchConfig{Arguments: []string{"--demo"}},
			want:     []string{"pos", "--demo", "--assetsDir", "/a", "--version", "1.0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			_, l := setup(t, config.Default(), source.Memory("mem", nil))
			bb := bootstrap.NewBlackboard()
			bb.AppendArguments(tt.existing...)

			d := NewDefault(tt.cfg)
			d.AcceptOptions([]string{"pos"}, "/g", "/a", "1.0")
			if err := d.InjectInto(ctx, l, bb); err != nil {
				t.Fatalf("InjectInto: %v", err)
			}
			if got := d.LaunchArguments(); !slices.Equal(got, tt.want) {
				t.Errorf("LaunchArguments = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Launch.Target = "game.Main"
	cfg.Launch.Transformers = []string{StampName, "launcher.transform.Missing"}
	cfg.Launch.Plugins = []string{DefaultName}
	mem := source.Memory("mem", nil)
	mem.PutModule("game.Main", wasmtest.Exit(0))
	_, l := setup(t, cfg, mem)

	ng := bootstrap.New(l, bootstrap.Options{Plugins: []string{DefaultName}})
	if err := ng.Launch(ctx); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got := l.Transformers(); !slices.Equal(got, []string{StampName}) {
		t.Errorf("Transformers = %v", got)
	}
	if len(ng.Processed()) != 1 {
		t.Errorf("re-enqueued default plugin should be skipped, processed %d", len(ng.Processed()))
	}
}

func TestBuiltinsResolveWithCustomDelegates(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Delegate = []string{"sys."}
	cfg.Launch.Target = "game.Main"
	cfg.Launch.Transformers = []string{StampName}
	mem := source.Memory("mem", nil)
	mem.PutModule("game.Main", wasmtest.Exit(0))
	_, l := setup(t, cfg, mem)

	if err := bootstrap.New(l, bootstrap.Options{Plugins: []string{DefaultName}}).Launch(ctx); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if got := l.Transformers(); !slices.Equal(got, []string{StampName}) {
		t.Errorf("Transformers = %v, want [%s]", got, StampName)
	}
}
