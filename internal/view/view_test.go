package view

import "testing"

func TestPredicatesReturnsOwnPredicate(t *testing.T) {
	s := Set{"golang": View{Name: "golang", Predicate: "language == 'Go'"}}
	preds, err := s.Predicates()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preds["golang"] != "language == 'Go'" {
		t.Fatalf("got %q", preds["golang"])
	}
}

func TestPredicatesComposesOtherViews(t *testing.T) {
	s := Set{
		"go":      View{Name: "go", Predicate: "language == 'Go'"},
		"py":      View{Name: "py", Predicate: "language == 'Python'"},
		"scripts": View{Name: "scripts", Composed: []string{"go", "py"}},
	}
	preds, err := s.Predicates()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "(language == 'Go') or (language == 'Python')"
	if preds["scripts"] != want {
		t.Fatalf("got %q, want %q", preds["scripts"], want)
	}
}

func TestPredicatesRendersExplicitPathList(t *testing.T) {
	s := Set{"pinned": View{Name: "pinned", Paths: []string{"/r/a", "/r/b"}}}
	preds, err := s.Predicates()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "path in '/r/a,/r/b'"
	if preds["pinned"] != want {
		t.Fatalf("got %q, want %q", preds["pinned"], want)
	}
}

func TestPredicatesRejectsCycle(t *testing.T) {
	s := Set{
		"a": View{Name: "a", Composed: []string{"b"}},
		"b": View{Name: "b", Composed: []string{"a"}},
	}
	if _, err := s.Predicates(); err == nil {
		t.Fatal("expected cyclic reference error, got nil")
	}
}

func TestPredicatesUnknownComposedViewErrors(t *testing.T) {
	s := Set{"a": View{Name: "a", Composed: []string{"missing"}}}
	if _, err := s.Predicates(); err == nil {
		t.Fatal("expected error for unknown composed view, got nil")
	}
}
