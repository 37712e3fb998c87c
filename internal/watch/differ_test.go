package watch

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func fakeProvider(deps map[string]map[string]bool) DependencyProvider {
	return func(tests []string) map[string]map[string]bool {
		out := make(map[string]map[string]bool, len(tests))
		for _, t := range tests {
			out[t] = deps[t]
		}
		return out
	}
}

func sortedToRun(a *Analysis) []string {
	out := a.ToRun()
	sort.Strings(out)
	return out
}

// writeAt creates path with the given mtime, relative to dir.
func writeAt(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(full, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return full
}

func touch(t *testing.T, path string) {
	t.Helper()
	newMtime := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, newMtime, newMtime); err != nil {
		t.Fatal(err)
	}
}

func TestUpdatedFirstCycleIsFullRun(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	aTest := writeAt(t, dir, "a_test.py", base)
	bTest := writeAt(t, dir, "b_test.py", base)
	pm := writeAt(t, dir, "pm.py", base)

	prev := NewSnapshot(nil, nil, nil, map[string][]string{})
	now := NewSnapshot([]string{aTest, bTest}, []string{pm},
		fakeProvider(map[string]map[string]bool{
			aTest: {pm: true},
			bTest: {},
		}), map[string][]string{})

	analysis := Updated(prev, now)
	got := sortedToRun(analysis)
	want := []string{aTest, bTest}
	sort.Strings(want)
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("ToRun() = %v, want %v", got, want)
	}
}

func TestUpdatedNoOpWhenNothingChanged(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	aTest := writeAt(t, dir, "a_test.py", base)
	pm := writeAt(t, dir, "pm.py", base)

	provider := fakeProvider(map[string]map[string]bool{aTest: {pm: true}})
	s1 := NewSnapshot([]string{aTest}, []string{pm}, provider, map[string][]string{})
	s2 := NewSnapshot([]string{aTest}, []string{pm}, provider, map[string][]string{})

	analysis := Updated(s1, s2)
	if analysis.Len() != 0 {
		t.Fatalf("expected empty to-run set on unchanged snapshot, got %v", analysis.ToRun())
	}
}

func TestUpdatedProductionEditFansOutToDependents(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	suffixTest := writeAt(t, dir, "suffix_test.py", base)
	prefixTest := writeAt(t, dir, "test_prefix.py", base)
	pm1 := writeAt(t, dir, "pm1.py", base)
	pm2 := writeAt(t, dir, "pm2.py", base)

	provider := fakeProvider(map[string]map[string]bool{
		suffixTest: {pm1: true, pm2: true},
		prefixTest: {pm1: true},
	})
	tests := []string{suffixTest, prefixTest}
	prods := []string{pm1, pm2}

	prev := NewSnapshot(tests, prods, provider, map[string][]string{})
	touch(t, pm2)
	now := NewSnapshot(tests, prods, provider, map[string][]string{})

	analysis := Updated(prev, now)
	got := sortedToRun(analysis)
	if len(got) != 1 || got[0] != suffixTest {
		t.Fatalf("ToRun() = %v, want exactly [%s]", got, suffixTest)
	}
}

func TestUpdatedStaticMappingAddsDependentEvenWithoutImport(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	suffixTest := writeAt(t, dir, "suffix_test.py", base)
	deep := writeAt(t, dir, "deep.py", base)

	provider := fakeProvider(map[string]map[string]bool{suffixTest: {}})
	tests := []string{suffixTest}
	prods := []string{deep}
	staticMappings := map[string][]string{deep: {suffixTest}}

	prev := NewSnapshot(tests, prods, provider, staticMappings)
	touch(t, deep)
	now := NewSnapshot(tests, prods, provider, staticMappings)

	analysis := Updated(prev, now)
	got := sortedToRun(analysis)
	if len(got) != 1 || got[0] != suffixTest {
		t.Fatalf("ToRun() = %v, want static mapping to fan out to %s", got, suffixTest)
	}
}

func TestProductionToTestsIsCachedAfterFirstRead(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	tPy := writeAt(t, dir, "t_test.py", base)
	pPy := writeAt(t, dir, "p.py", base)

	calls := 0
	provider := func(tests []string) map[string]map[string]bool {
		calls++
		return map[string]map[string]bool{tPy: {pPy: true}}
	}
	s := NewSnapshot([]string{tPy}, []string{pPy}, provider, map[string][]string{})

	first := s.ProductionToTests(pPy)
	second := s.ProductionToTests(pPy)
	if calls != 1 {
		t.Fatalf("dependency provider called %d times, want exactly 1 (build-once, read-many)", calls)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("ProductionToTests results differ across calls: %v vs %v", first, second)
	}
}

func TestUpdatedTestEditTargetsSelf(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	aTest := writeAt(t, dir, "a_test.py", base)
	bTest := writeAt(t, dir, "b_test.py", base)
	pm := writeAt(t, dir, "pm.py", base)

	provider := fakeProvider(map[string]map[string]bool{
		aTest: {pm: true},
		bTest: {pm: true},
	})
	tests := []string{aTest, bTest}
	prods := []string{pm}

	prev := NewSnapshot(tests, prods, provider, map[string][]string{})
	touch(t, aTest)
	now := NewSnapshot(tests, prods, provider, map[string][]string{})

	analysis := Updated(prev, now)
	got := sortedToRun(analysis)
	if len(got) != 1 || got[0] != aTest {
		t.Fatalf("ToRun() = %v, want exactly [%s]", got, aTest)
	}
}

func TestUpdatedVanishedFileIsDroppedSilently(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	aTest := writeAt(t, dir, "a_test.py", base)
	gone := writeAt(t, dir, "gone_test.py", base)

	provider := fakeProvider(map[string]map[string]bool{aTest: {}, gone: {}})
	prev := NewSnapshot([]string{aTest, gone}, nil, provider, map[string][]string{})

	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	now := NewSnapshot([]string{aTest}, nil, provider, map[string][]string{})

	analysis := Updated(prev, now)
	if analysis.Len() != 0 {
		t.Fatalf("vanished file must not ghost-rerun anything, got %v", analysis.ToRun())
	}
}
