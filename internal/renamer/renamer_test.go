package renamer_test

import (
	"os"
	"path/filepath"
	"testing"

	"curator/internal/renamer"
)

func TestRenderMovieDefaultTemplate(t *testing.T) {
	r := renamer.New("", "")
	got := r.Render(renamer.Media{Title: "Example Movie", Year: 2021, Movie: true}, ".mkv")
	want := filepath.Join("Example Movie (2021)", "Example Movie (2021).mkv")
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderEpisodeDefaultTemplate(t *testing.T) {
	r := renamer.New("", "")
	got := r.Render(renamer.Media{Title: "Some Show", Season: 1, Episode: 7}, ".mkv")
	want := filepath.Join("Some Show", "Season 01", "Some Show - S01E07.mkv")
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderMovieWithoutYearDropsParens(t *testing.T) {
	r := renamer.New("", "")
	got := r.Render(renamer.Media{Title: "Undated", Movie: true}, ".mp4")
	want := filepath.Join("Undated", "Undated.mp4")
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderCustomTemplate(t *testing.T) {
	r := renamer.New("{year}/{title}", "")
	got := r.Render(renamer.Media{Title: "Archived", Year: 1999, Movie: true}, ".avi")
	want := filepath.Join("1999", "Archived.avi")
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Plain Title", "Plain Title"},
		{"A/B\\C:D", "A-B-C-D"},
		{"What? <Why> \"How\"|", "What Why How"},
		{"  spaced \t out \n ", "spaced out"},
		{"", "Unknown"},
		{"???", "Unknown"},
	}
	for _, tc := range cases {
		if got := renamer.Sanitize(tc.in); got != tc.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSuggestUniqueFreePathUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Example (2021).mkv")
	got, err := renamer.SuggestUnique(path)
	if err != nil {
		t.Fatalf("SuggestUnique: %v", err)
	}
	if got != path {
		t.Fatalf("expected free path unchanged, got %q", got)
	}
}

func TestSuggestUniqueIncrementsSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Example (2021).mkv")
	for _, existing := range []string{path, filepath.Join(dir, "Example (2021) (1).mkv")} {
		if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", existing, err)
		}
	}
	got, err := renamer.SuggestUnique(path)
	if err != nil {
		t.Fatalf("SuggestUnique: %v", err)
	}
	want := filepath.Join(dir, "Example (2021) (2).mkv")
	if got != want {
		t.Fatalf("SuggestUnique = %q, want %q", got, want)
	}
}
