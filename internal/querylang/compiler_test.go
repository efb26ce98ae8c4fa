package querylang

import (
	"strings"
	"testing"
	"time"
)

func TestCompileEmptyQuery(t *testing.T) {
	c := New(nil)
	q, err := c.Compile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.SQL != "SELECT * FROM repos" {
		t.Fatalf("got %q", q.SQL)
	}
	if len(q.Params) != 0 {
		t.Fatalf("expected no params, got %v", q.Params)
	}
}

func TestCompileSimpleComparison(t *testing.T) {
	c := New(nil)
	q, err := c.Compile("language == 'Python'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.SQL, "language = ?") {
		t.Fatalf("got %q", q.SQL)
	}
	if len(q.Params) != 1 || q.Params[0] != "Python" {
		t.Fatalf("got params %v", q.Params)
	}
}

func TestCompileStarsAliasMapsToGitHubPrefixed(t *testing.T) {
	c := New(nil)
	q, err := c.Compile("stars > 10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.SQL, "github_stars > ?") {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestCompileComplexPredicateWithFunctionOrderAndLimit(t *testing.T) {
	c := New(nil)
	q, err := c.Compile("language == 'Python' and stars > 10 and has_event('commit', since='30d') order by stars desc limit 5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"language = ?", "github_stars > ?", "EXISTS (", "ORDER BY github_stars DESC", "LIMIT 5"} {
		if !strings.Contains(q.SQL, want) {
			t.Fatalf("expected sql to contain %q, got %q", want, q.SQL)
		}
	}
	if len(q.Params) != 4 {
		t.Fatalf("expected 4 params, got %v", q.Params)
	}
	if q.Params[0] != "Python" || q.Params[1] != 10 || q.Params[2] != "commit" {
		t.Fatalf("unexpected params: %v", q.Params)
	}
}

func TestCompileHasDOI(t *testing.T) {
	c := New(nil)
	q, err := c.Compile("has_doi()")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.SQL, "citation_doi IS NOT NULL") || !strings.Contains(q.SQL, "publications p") {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestCompileBooleanFieldNegation(t *testing.T) {
	c := New(nil)
	q, err := c.Compile("is_clean and not archived")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.SQL, "is_clean = 1") {
		t.Fatalf("got %q", q.SQL)
	}
	if !strings.Contains(q.SQL, "NOT (github_is_archived = 1)") {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestCompileUnknownFunctionErrors(t *testing.T) {
	c := New(nil)
	_, err := c.Compile("nonsense('x')")
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*QueryCompileError); !ok {
		t.Fatalf("expected *QueryCompileError, got %T", err)
	}
}

func TestCompileUnknownViewErrors(t *testing.T) {
	c := New(nil)
	_, err := c.Compile("@nope")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestCompileViewExpansion(t *testing.T) {
	c := New(map[string]string{"python-active": "language == 'Python' and is_clean"})
	q, err := c.Compile("@python-active and stars > 100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.SQL, "language = ?") || !strings.Contains(q.SQL, "is_clean = 1") {
		t.Fatalf("got %q", q.SQL)
	}
}

func TestCompileCyclicViewReferenceErrors(t *testing.T) {
	c := New(map[string]string{
		"a": "@b",
		"b": "@a",
	})
	_, err := c.Compile("@a")
	if err == nil {
		t.Fatal("expected a cyclic view error")
	}
}

func TestParseSinceDurationSuffixes(t *testing.T) {
	now := time.Now().UTC()
	got := parseSince("7d")
	if got.After(now.AddDate(0, 0, -6)) {
		t.Fatalf("7d window did not move back far enough: %v", got)
	}

	for in, want := range map[string]time.Duration{
		"12h": 12 * time.Hour,
		"2w":  14 * 24 * time.Hour,
		"3m":  90 * 24 * time.Hour,
		"1y":  365 * 24 * time.Hour,
	} {
		diff := time.Now().UTC().Sub(parseSince(in))
		if diff < want-time.Minute || diff > want+time.Minute {
			t.Fatalf("%s: expected window of %v, got %v", in, want, diff)
		}
	}
}

func TestParseSinceFallsBackTo30Days(t *testing.T) {
	now := time.Now().UTC()
	got := parseSince("not-a-duration")
	diff := now.Sub(got)
	if diff < 29*24*time.Hour || diff > 31*24*time.Hour {
		t.Fatalf("expected ~30 day fallback, got diff %v", diff)
	}
}

func TestLiteralsNeverAppearInSQLString(t *testing.T) {
	c := New(nil)
	q, err := c.Compile("name == 'sensitive-value'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(q.SQL, "sensitive-value") {
		t.Fatalf("literal leaked into SQL: %q", q.SQL)
	}
	found := false
	for _, p := range q.Params {
		if p == "sensitive-value" {
			found = true
		}
	}
	if !found {
		t.Fatal("literal should appear in params")
	}
}

func TestCompileEventCountComparison(t *testing.T) {
	c := New(nil)
	q, err := c.Compile("event_count('commit', since='30d') > 5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.SQL, "SELECT COUNT(*) FROM events") {
		t.Fatalf("got %q", q.SQL)
	}
	if !strings.Contains(q.SQL, ") > ?") {
		t.Fatalf("expected scalar comparison, got %q", q.SQL)
	}
	if len(q.Params) != 3 || q.Params[0] != "commit" || q.Params[2] != 5 {
		t.Fatalf("got params %v", q.Params)
	}
}

func TestCompileHyphenatedViewName(t *testing.T) {
	c := New(map[string]string{"python-active": "language == 'Python'"})
	q, err := c.Compile("@python-active")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q.SQL, "language = ?") {
		t.Fatalf("got %q", q.SQL)
	}
}
