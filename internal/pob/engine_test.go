package pob

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/mephi42/gopob/internal/fit"
	apperrors "github.com/mephi42/gopob/internal/platform/errors"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func openEngine(t *testing.T, transport *siteTransport) *Engine {
	t.Helper()
	if transport == nil {
		transport = newSiteTransport()
	}
	e, err := Open(context.Background(), Config{
		EngineDir: filepath.Join("testdata", "engine"),
		Transport: transport,
	})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func fixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "build.xml"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func TestOpenRequiresWrapper(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty engine dir")
	}
	if _, err := Open(context.Background(), Config{EngineDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for missing wrapper")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func workingDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	dir, err = filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return dir
}

func TestOpenWithChdirResolvesRelativePaths(t *testing.T) {
	wrapper, err := os.ReadFile(filepath.Join("testdata", "engine", "src", "HeadlessWrapper.lua"))
	if err != nil {
		t.Fatalf("read wrapper: %v", err)
	}
	build := fixture(t)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "engine", "src", "HeadlessWrapper.lua"),
		string(wrapper)+"\ntreeModule = require(\"treemod\")\nextraModule = require(\"extramod\")\n")
	writeFile(t, filepath.Join(root, "engine", "runtime", "lua", "treemod.lua"), "return \"tree\"\n")
	writeFile(t, filepath.Join(root, "mods", "extramod.lua"), "return \"extra\"\n")
	writeFile(t, filepath.Join(root, "build.xml"), string(build))
	t.Chdir(root)
	root = workingDir(t)

	e, err := Open(context.Background(), Config{
		EngineDir: "engine",
		LuaDir:    "mods",
		Chdir:     true,
		Transport: newSiteTransport(),
	})
	if err != nil {
		t.Fatalf("open engine: %v", err)
	}
	t.Cleanup(e.Close)

	if got, want := workingDir(t), filepath.Join(root, "engine", "src"); got != want {
		t.Fatalf("working dir = %q, want %q", got, want)
	}
	got, err := e.Eval("treeModule, extraModule")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if diff := cmp.Diff([]any{"tree", "extra"}, got); diff != "" {
		t.Fatalf("modules mismatch (-want +got):\n%s", diff)
	}

	if err := e.LoadFile("build.xml"); err != nil {
		t.Fatalf("load file: %v", err)
	}
	if err := e.SaveFile("out.xml"); err != nil {
		t.Fatalf("save file: %v", err)
	}
	saved, err := os.ReadFile(filepath.Join(root, "out.xml"))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if !bytes.Equal(saved, build) {
		t.Fatalf("saved file = %q, want fixture", saved)
	}

	e.Close()
	if got := workingDir(t); got != root {
		t.Fatalf("working dir after close = %q, want %q", got, root)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	e := openEngine(t, nil)
	want := fixture(t)

	if err := e.Load(want); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := e.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Fatalf("saved build mismatch (-want +got):\n%s", diff)
	}

	var doc struct {
		XMLName xml.Name `xml:"PathOfBuilding"`
		Build   struct {
			Character string `xml:"character,attr"`
		} `xml:"Build"`
	}
	if err := xml.Unmarshal(got, &doc); err != nil {
		t.Fatalf("saved build is not XML: %v", err)
	}
	if doc.Build.Character != "Arcmancer" {
		t.Fatalf("character = %q, want %q", doc.Build.Character, "Arcmancer")
	}
}

func TestLoadFileAndSaveFile(t *testing.T) {
	e := openEngine(t, nil)
	if err := e.LoadFile(filepath.Join("testdata", "build.xml")); err != nil {
		t.Fatalf("load file: %v", err)
	}
	path := filepath.Join(t.TempDir(), "out.xml")
	if err := e.SaveFile(path); err != nil {
		t.Fatalf("save file: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if !bytes.Equal(got, fixture(t)) {
		t.Fatalf("saved file = %q, want fixture", got)
	}
}

func TestLoadRejectsInvalidXML(t *testing.T) {
	e := openEngine(t, nil)
	err := e.Load([]byte("not a build"))
	if !apperrors.HasCode(err, apperrors.CodeScriptFailure) {
		t.Fatalf("err = %v, want script failure", err)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	e := openEngine(t, nil)
	if err := e.Load(fixture(t)); err != nil {
		t.Fatalf("load: %v", err)
	}
	code, err := e.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(code, "78da") {
		t.Fatalf("code = %q, want zlib stream", code)
	}

	if err := e.NewBuild(); err != nil {
		t.Fatalf("new build: %v", err)
	}
	if err := e.Import(code); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, err := e.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if diff := cmp.Diff(string(fixture(t)), string(got)); diff != "" {
		t.Fatalf("imported build mismatch (-want +got):\n%s", diff)
	}
}

func TestImportRejectsBadCode(t *testing.T) {
	e := openEngine(t, nil)
	if err := e.Import("zz"); err == nil {
		t.Fatal("expected error for bad build code")
	}
}

func TestMainOutput(t *testing.T) {
	e := openEngine(t, nil)
	if err := e.Load(fixture(t)); err != nil {
		t.Fatalf("load: %v", err)
	}
	life, err := e.MainOutput("Life")
	if err != nil {
		t.Fatalf("main output: %v", err)
	}
	if life != 1070.0 {
		t.Fatalf("Life = %v, want 1070", life)
	}
	missing, err := e.MainOutput("NoSuchStat")
	if err != nil {
		t.Fatalf("main output: %v", err)
	}
	if missing != nil {
		t.Fatalf("NoSuchStat = %v, want nil", missing)
	}
}

func TestAutoselectMainSkillPrefersLaterTie(t *testing.T) {
	e := openEngine(t, nil)
	if err := e.Load(fixture(t)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := e.AutoselectMainSkill(); err != nil {
		t.Fatalf("autoselect: %v", err)
	}
	got, err := e.Eval("build.mainSocketGroup")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if diff := cmp.Diff([]any{"3"}, got); diff != "" {
		t.Fatalf("main socket group mismatch (-want +got):\n%s", diff)
	}
	dps, err := e.MainOutput("CombinedDPS")
	if err != nil {
		t.Fatalf("main output: %v", err)
	}
	if dps != 300000.0 {
		t.Fatalf("CombinedDPS = %v, want 300000", dps)
	}
}

func TestAutoselectMainSkillWithoutGroups(t *testing.T) {
	e := openEngine(t, nil)
	if err := e.NewBuild(); err != nil {
		t.Fatalf("new build: %v", err)
	}
	if err := e.AutoselectMainSkill(); err != nil {
		t.Fatalf("autoselect: %v", err)
	}
}

func TestDownload(t *testing.T) {
	transport := newSiteTransport()
	e := openEngine(t, transport)

	if err := e.Download(context.Background(), "acct", "Arcmancer"); err != nil {
		t.Fatalf("download: %v", err)
	}
	wantRequests := []string{charactersURL, profileURL, passiveURL, itemsURL}
	if diff := cmp.Diff(wantRequests, transport.requested); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}

	status, err := e.Eval("build.importTab.profileStatus, #GetMainObject().progress")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if diff := cmp.Diff([]any{"public", 4.0}, status); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}

	if err := e.AutoselectMainSkill(); err != nil {
		t.Fatalf("autoselect: %v", err)
	}
	for key, want := range map[string]float64{"CombinedDPS": 450000, "Life": 1040} {
		got, err := e.MainOutput(key)
		if err != nil {
			t.Fatalf("main output %s: %v", key, err)
		}
		if got != want {
			t.Fatalf("%s = %v, want %v", key, got, want)
		}
	}

	saved, err := e.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !bytes.Contains(saved, []byte(`<Build character="Arcmancer" mainSocketGroup="2" tree="AAAABgMA"/>`)) {
		t.Fatalf("saved build = %s", saved)
	}
}

func TestDownloadTracesTransfersUnderTasks(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	e := openEngine(t, nil)
	if err := e.Download(context.Background(), "acct", "Arcmancer"); err != nil {
		t.Fatalf("download: %v", err)
	}

	tasks := map[oteltrace.SpanID]bool{}
	for _, span := range sr.Ended() {
		if span.Name() == "subscript.task" {
			tasks[span.SpanContext().SpanID()] = true
		}
	}
	transfers := 0
	for _, span := range sr.Ended() {
		if span.Name() != "netshim.perform" {
			continue
		}
		transfers++
		if !tasks[span.Parent().SpanID()] {
			t.Fatalf("transfer span %s has parent %s, want a sub-script task", span.SpanContext().SpanID(), span.Parent().SpanID())
		}
	}
	if transfers != 4 {
		t.Fatalf("transfer spans = %d, want 4", transfers)
	}
}

func TestDownloadMissingCharacter(t *testing.T) {
	transport := newSiteTransport()
	e := openEngine(t, transport)

	err := e.Download(context.Background(), "acct", "Nobody")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if len(transport.requested) != 2 {
		t.Fatalf("requests = %v, want character list and profile only", transport.requested)
	}
}

func TestDownloadUnknownAccount(t *testing.T) {
	e := openEngine(t, nil)
	err := e.Download(context.Background(), "ghost", "Arcmancer")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestFit(t *testing.T) {
	e := openEngine(t, nil)
	want := fixture(t)
	if err := e.Load(want); err != nil {
		t.Fatalf("load: %v", err)
	}

	got, err := e.Fit(context.Background(), []string{
		"Heavy Belt|+220 to maximum Life",
		"Iron Ring\n+50 to maximum Mana",
		"Plate Vest",
	})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	expected := []fit.Result{
		{"Belt": {"Life": 180, "LifeRegen": 1.8}},
		{
			"Ring 1": {"Life": -30, "LifeRegen": -0.3, "Mana": 50},
			"Ring 2": {"Mana": 50},
		},
		{"Body Armour": {}},
	}
	if diff := cmp.Diff(expected, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("fit mismatch (-want +got):\n%s", diff)
	}

	saved, err := e.Save()
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !bytes.Equal(want, saved) {
		t.Fatalf("fit changed the build:\n%s", saved)
	}
}

func TestFitInvalidDescriptor(t *testing.T) {
	e := openEngine(t, nil)
	if err := e.Load(fixture(t)); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := e.Fit(context.Background(), []string{"Heavy Belt", "Mystery Thing|+1 to maximum Life"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidItemDescriptor) {
		t.Fatalf("err = %v, want invalid item descriptor", err)
	}
	if got != nil {
		t.Fatalf("results = %v, want nil", got)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Metadata["candidate"] != "1" {
		t.Fatalf("metadata = %v, want candidate 1", err)
	}
}

func TestClosedEngine(t *testing.T) {
	e := openEngine(t, nil)
	e.Close()
	if _, err := e.Save(); err == nil {
		t.Fatal("expected error after close")
	}
	if _, err := e.Fit(context.Background(), []string{"Heavy Belt"}); err == nil {
		t.Fatal("expected fit error after close")
	}
	if err := e.DrainSubScripts(context.Background()); err != nil {
		t.Fatalf("drain after close: %v", err)
	}
}
