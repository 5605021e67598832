package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-launcher/engine"
	"github.com/wippyai/wasm-launcher/errors"
	"github.com/wippyai/wasm-launcher/internal/wasmtest"
	"github.com/wippyai/wasm-launcher/source"
	"github.com/wippyai/wasm-launcher/transform"
	"github.com/wippyai/wasm-launcher/wasm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLoader(t *testing.T, opts Options) *Loader {
	t.Helper()
	ctx := context.Background()
	l := New(ctx, opts)
	t.Cleanup(func() {
		if err := l.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return l
}

func memSource(names ...string) *source.MemorySource {
	src := source.Memory("mem", nil)
	for _, n := range names {
		src.PutModule(n, wasmtest.Empty())
	}
	return src
}

type fakeParent struct {
	modules map[string]*Module
	calls   atomic.Int32
}

func (p *fakeParent) Resolve(_ context.Context, name string) (*Module, error) {
	p.calls.Add(1)
	if m, ok := p.modules[name]; ok {
		return m, nil
	}
	return nil, errors.NotFound(errors.PhaseResolve, "host module", name)
}

func TestResolveIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t, Options{Sources: []source.Source{memSource("app.Main")}})

	first, err := l.Resolve(ctx, "app.Main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := l.Resolve(ctx, "app.Main")
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if first != second {
		t.Error("repeated resolution should return the same identity")
	}
	if first.Name != "app.Main" {
		t.Errorf("Name = %q", first.Name)
	}
	if first.Provenance.Origin != "mem" || first.Provenance.Path != "app/Main.wasm" {
		t.Errorf("Provenance = %+v", first.Provenance)
	}
	if first.Provenance.Namespace != "app" {
		t.Errorf("Namespace = %q", first.Provenance.Namespace)
	}
}

func TestResolveNotFoundIsStable(t *testing.T) {
	ctx := context.Background()
	src := memSource()
	l := newTestLoader(t, Options{Sources: []source.Source{src}})

	var calls atomic.Int32
	l.RegisterPlugin(transform.Transformer("count", transform.StageFunc(
		func(_, _ string, code []byte) []byte {
			calls.Add(1)
			return code
		})))

	for i := 0; i < 3; i++ {
		_, err := l.Resolve(ctx, "app.Missing")
		if !errors.IsKind(err, errors.KindNotFound) {
			t.Fatalf("attempt %d: expected not found, got %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("pipeline ran %d times, want 1", calls.Load())
	}

	src.PutModule("app.Missing", wasmtest.Empty())
	if _, err := l.Resolve(ctx, "app.Missing"); err == nil {
		t.Fatal("negative result should persist until cleared")
	}

	l.ClearNegative("app.Missing")
	if _, err := l.Resolve(ctx, "app.Missing"); err != nil {
		t.Fatalf("after ClearNegative: %v", err)
	}
}

func TestDelegateTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	host := NewHostModule("sys.Clock", func() (any, error) { return 1, nil })
	parent := &fakeParent{modules: map[string]*Module{"sys.Clock": host}}
	l := newTestLoader(t, Options{
		Parent:  parent,
		Sources: []source.Source{memSource("sys.Clock", "app.Main")},
	})

	own, err := l.Resolve(ctx, "sys.Clock")
	if err != nil {
		t.Fatalf("Resolve before exclusion: %v", err)
	}
	if own.IsHost() {
		t.Fatal("expected the loader's own identity before the exclusion")
	}

	l.AddDelegateExclusion("sys.")
	got, err := l.Resolve(ctx, "sys.Clock")
	if err != nil {
		t.Fatalf("Resolve delegated: %v", err)
	}
	if got != host {
		t.Error("delegated name should return the parent's module even when cached")
	}

	if _, err := l.Resolve(ctx, "sys.Other"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("expected parent not found, got %v", err)
	}
	if parent.calls.Load() != 2 {
		t.Errorf("parent calls = %d, want 2", parent.calls.Load())
	}
}

func TestDefaultParentFindsNothing(t *testing.T) {
	l := newTestLoader(t, Options{Delegate: []string{"sys."}})
	_, err := l.Resolve(context.Background(), "sys.Clock")
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBypassSkipsPipeline(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t, Options{
		Sources: []source.Source{memSource("lib.Util", "app.Main")},
		Bypass:  []string{"lib."},
	})

	var seen []string
	l.RegisterPlugin(transform.Transformer("record", transform.StageFunc(
		func(name, _ string, code []byte) []byte {
			seen = append(seen, name)
			return code
		})))

	if _, err := l.Resolve(ctx, "lib.Util"); err != nil {
		t.Fatalf("Resolve bypassed: %v", err)
	}
	if _, err := l.Resolve(ctx, "app.Main"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(seen) != 1 || seen[0] != "app.Main" {
		t.Errorf("pipeline saw %v, want [app.Main]", seen)
	}
	if _, err := l.Resolve(ctx, "lib.Missing"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("expected not found for missing bypassed name, got %v", err)
	}
}

// prefixVirtualizer exposes internal "impl." names as "api.".
type prefixVirtualizer struct {
	seen []string
}

func (v *prefixVirtualizer) Unmap(name string) string {
	if rest, ok := strings.CutPrefix(name, "api."); ok {
		return "impl." + rest
	}
	return name
}

func (v *prefixVirtualizer) Remap(name string) string {
	if rest, ok := strings.CutPrefix(name, "impl."); ok {
		return "api." + rest
	}
	return name
}

func (v *prefixVirtualizer) Transform(name, transformedName string, code []byte) []byte {
	v.seen = append(v.seen, name+"->"+transformedName)
	return code
}

func TestVirtualizedNames(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t, Options{Sources: []source.Source{memSource("impl.Service")}})
	v := &prefixVirtualizer{}
	if err := l.RegisterPlugin(transform.VirtualizingTransformer("prefix", v)); err != nil {
		t.Fatalf("RegisterPlugin: %v", err)
	}

	m, err := l.Resolve(ctx, "api.Service")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(v.seen) != 1 || v.seen[0] != "impl.Service->api.Service" {
		t.Errorf("stage saw %v", v.seen)
	}
	if m.Name != "api.Service" {
		t.Errorf("Name = %q", m.Name)
	}
	if m.Provenance.Path != "impl/Service.wasm" {
		t.Errorf("Path = %q", m.Provenance.Path)
	}

	again, err := l.Resolve(ctx, "impl.Service")
	if err != nil {
		t.Fatalf("Resolve internal name: %v", err)
	}
	if again != m {
		t.Error("internal and public names should share one identity")
	}
}

func TestSynthesizedModule(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t, Options{})
	l.RegisterPlugin(transform.Transformer("synth", transform.StageFunc(
		func(name, _ string, code []byte) []byte {
			if code == nil && strings.HasPrefix(name, "gen.") {
				return wasmtest.Empty()
			}
			return code
		})))

	m, err := l.Resolve(ctx, "gen.Thing")
	if err != nil {
		t.Fatalf("Resolve synthesized: %v", err)
	}
	if m.Provenance.Origin != "" {
		t.Errorf("synthesized module has origin %q", m.Provenance.Origin)
	}
	if _, err := l.Resolve(ctx, "other.Thing"); !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestInvalidCodeIsRemembered(t *testing.T) {
	ctx := context.Background()
	src := source.Memory("mem", nil)
	src.PutModule("app.Broken", []byte("not a module"))
	l := newTestLoader(t, Options{Sources: []source.Source{src}})

	_, err := l.Resolve(ctx, "app.Broken")
	if !errors.IsKind(err, errors.KindInvalidData) {
		t.Fatalf("expected invalid data, got %v", err)
	}
	_, err = l.Resolve(ctx, "app.Broken")
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("second attempt should fail fast as not found, got %v", err)
	}
}

func TestConcurrentResolve(t *testing.T) {
	ctx := context.Background()
	names := []string{"a.One", "a.Two", "b.Three"}
	l := newTestLoader(t, Options{Sources: []source.Source{memSource(names...)}})

	const workers = 16
	results := make([][]*Module, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i // per-iteration copy; go directive is pre-1.22
		g.Go(func() error {
			for _, n := range names {
				m, err := l.Resolve(ctx, n)
				// Losing the definition race marks the name failed for
				// callers that arrive before the winner is cached.
				if err != nil && !errors.IsKind(err, errors.KindIdentityConflict) &&
					!errors.IsKind(err, errors.KindNotFound) {
					return err
				}
				results[i] = append(results[i], m)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	for j, n := range names {
		want, err := l.Resolve(ctx, n)
		if err != nil {
			t.Fatalf("Resolve %s after race: %v", n, err)
		}
		for i := range results {
			if got := results[i][j]; got != nil && got != want {
				t.Errorf("worker %d got a second identity for %s", i, n)
			}
		}
	}
}

func TestSealing(t *testing.T) {
	sealed := &source.Manifest{Sealed: true, Signers: []string{"release"}}
	tests := []struct {
		name    string
		sources []source.Source
		want    string
	}{
		{
			name: "sealed then unsealed directory",
			sources: []source.Source{
				source.Memory("core.bundle", nil).WithManifest(sealed),
				source.Memory("plain", nil),
			},
			want: "defining elements for sealed path",
		},
		{
			name: "sealed by two bundles",
			sources: []source.Source{
				source.Memory("core.bundle", nil).WithManifest(sealed),
				source.Memory("other.bundle", nil).WithManifest(sealed),
			},
			want: "trying to seal already secured path",
		},
		{
			name: "seal claimed after unsealed definition",
			sources: []source.Source{
				source.Memory("plain", nil),
				source.Memory("core.bundle", nil).WithManifest(sealed),
			},
			want: "has a security seal but path defined and not secure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			prev := Logger()
			SetLogger(zap.New(core))
			defer SetLogger(prev)

			tt.sources[0].(*source.MemorySource).PutModule("pkg.First", wasmtest.Empty())
			tt.sources[1].(*source.MemorySource).PutModule("pkg.Second", wasmtest.Start())

			ctx := context.Background()
			l := newTestLoader(t, Options{Sources: tt.sources})
			first, err := l.Resolve(ctx, "pkg.First")
			if err != nil {
				t.Fatalf("Resolve first: %v", err)
			}
			if _, err := l.Resolve(ctx, "pkg.Second"); err != nil {
				t.Fatalf("seal violations must not fail resolution: %v", err)
			}
			if got := logs.FilterMessage(tt.want).Len(); got != 1 {
				t.Errorf("expected one %q log, got %d (all: %v)", tt.want, got, logs.All())
			}
			if tt.sources[0].(*source.MemorySource).String() == "mem:core.bundle" {
				if !first.Provenance.Sealed || len(first.Provenance.Signers) != 1 {
					t.Errorf("Provenance = %+v", first.Provenance)
				}
			}
		})
	}
}

func TestDump(t *testing.T) {
	ctx := context.Background()
	home := t.TempDir()
	dir, err := PrepareDumpDir(home)
	if err != nil {
		t.Fatalf("PrepareDumpDir: %v", err)
	}
	if filepath.Base(dir) != DumpDirName {
		t.Fatalf("dir = %q", dir)
	}

	l := newTestLoader(t, Options{Sources: []source.Source{memSource("app.Main")}, DumpDir: dir})
	l.RegisterPlugin(transform.Transformer("tag", transform.StageFunc(
		func(_, _ string, code []byte) []byte {
			return wasm.AppendCustomSection(code, "tag", []byte("x"))
		})))
	m, err := l.Resolve(ctx, "app.Main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	saved, err := os.ReadFile(filepath.Join(dir, "app", "Main.wasm"))
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if !bytes.Equal(saved, m.Code) {
		t.Error("dumped bytes differ from the defined module")
	}

	next, err := PrepareDumpDir(home)
	if err != nil {
		t.Fatalf("PrepareDumpDir: %v", err)
	}
	if filepath.Base(next) != DumpDirName+"1" {
		t.Errorf("second dir = %q", next)
	}
}

func TestPrepareDumpDirExhausted(t *testing.T) {
	home := t.TempDir()
	for i := 0; i <= maxDumpDirs; i++ {
		name := DumpDirName
		if i > 0 {
			name = fmt.Sprintf("%s%d", DumpDirName, i)
		}
		if err := os.Mkdir(filepath.Join(home, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	dir, err := PrepareDumpDir(home)
	if err != nil || dir != "" {
		t.Errorf("PrepareDumpDir = %q, %v; want dumping disabled", dir, err)
	}
}

func TestRegisterTransformer(t *testing.T) {
	ctx := context.Background()
	stage := transform.StageFunc(func(_, _ string, code []byte) []byte { return code })
	parent := &fakeParent{modules: map[string]*Module{
		"host.Good": NewHostModule("host.Good", func() (any, error) {
			return transform.Transformer("host.Good", stage), nil
		}),
		"host.Failing": NewHostModule("host.Failing", func() (any, error) {
			return nil, fmt.Errorf("boom")
		}),
		"host.Panics": NewHostModule("host.Panics", func() (any, error) {
			panic("bad plugin")
		}),
		"host.WrongType": NewHostModule("host.WrongType", func() (any, error) {
			return "not a transformer", nil
		}),
	}}
	l := newTestLoader(t, Options{
		Parent:   parent,
		Delegate: []string{"host."},
		Sources:  []source.Source{memSource("app.Compiled")},
	})

	if err := l.RegisterTransformer(ctx, "host.Good"); err != nil {
		t.Fatalf("RegisterTransformer: %v", err)
	}

	for _, name := range []string{"host.Failing", "host.Panics", "host.WrongType", "host.Missing", "app.Compiled"} {
		t.Run(name, func(t *testing.T) {
			err := l.RegisterTransformer(ctx, name)
			if !errors.IsKind(err, errors.KindPluginConstruction) {
				t.Errorf("expected plugin construction error, got %v", err)
			}
		})
	}

	if got := l.Transformers(); len(got) != 1 || got[0] != "host.Good" {
		t.Errorf("Transformers = %v", got)
	}
}

func TestExclusionsAreDeduplicated(t *testing.T) {
	l := newTestLoader(t, Options{Delegate: []string{"sys."}})
	l.AddDelegateExclusion("sys.")
	l.AddDelegateExclusion("host.")
	l.AddBypassExclusion("lib.")

	if got := l.DelegateExclusions(); len(got) != 2 {
		t.Errorf("DelegateExclusions = %v", got)
	}
	if got := l.BypassExclusions(); len(got) != 1 || got[0] != "lib." {
		t.Errorf("BypassExclusions = %v", got)
	}
}

func TestWatchClearsNegative(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	l := newTestLoader(t, Options{Sources: []source.Source{source.Dir(root)}})
	if err := l.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if _, err := l.Resolve(ctx, "Late"); !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "Late.wasm"), wasmtest.Empty(), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := l.Resolve(ctx, "Late"); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("module never became resolvable")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDefineConflictIsRemembered(t *testing.T) {
	ctx := context.Background()
	shared := engine.New(ctx, &engine.Config{Interpreter: true})
	defer shared.Close(ctx)
	if _, err := shared.Define(ctx, "app.Main", wasmtest.Start()); err != nil {
		t.Fatalf("Define: %v", err)
	}

	l := newTestLoader(t, Options{Engine: shared, Sources: []source.Source{memSource("app.Main")}})
	var runs atomic.Int32
	l.RegisterPlugin(transform.Transformer("count", transform.StageFunc(
		func(_, _ string, code []byte) []byte {
			runs.Add(1)
			return code
		})))

	_, err := l.Resolve(ctx, "app.Main")
	if !errors.IsKind(err, errors.KindIdentityConflict) {
		t.Fatalf("expected identity conflict, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := l.Resolve(ctx, "app.Main"); !errors.IsKind(err, errors.KindNotFound) {
			t.Errorf("attempt %d: expected not found, got %v", i, err)
		}
	}
	if runs.Load() != 1 {
		t.Errorf("pipeline ran %d times, want 1", runs.Load())
	}
}

func TestFailedDefineDoesNotClaimNamespace(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	broken := source.Memory("core.bundle", nil).WithManifest(&source.Manifest{Sealed: true})
	broken.PutModule("pkg.Broken", []byte("not a module"))
	plain := memSource("pkg.Good")

	ctx := context.Background()
	l := newTestLoader(t, Options{Sources: []source.Source{broken, plain}})
	if _, err := l.Resolve(ctx, "pkg.Broken"); !errors.IsKind(err, errors.KindInvalidData) {
		t.Fatalf("expected invalid data, got %v", err)
	}
	if _, err := l.Resolve(ctx, "pkg.Good"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected seal errors: %v", logs.All())
	}
}
