package main

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

func lintSource(t *testing.T, l *linter, name, src string) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	l.lintAST(fset, name, file)
}

func TestLinterAcceptsMarkedQueries(t *testing.T) {
	l := newLinter()
	lintSource(t, l, "ok.go", `package q

const cols = "id, title, updated_at"

const QByID = `+"`"+`--sql 2e9a7c15-4b6d-4a08-8f3e-d1c5b7a9e064
select `+"`"+` + cols + `+"`"+` from video_jobs where id = $1`+"`"+`

const label = "not sql at all"
`)
	if got := l.finish(); len(got) != 0 {
		t.Fatalf("unexpected violations: %+v", got)
	}
}

func TestLinterFlagsMissingMarker(t *testing.T) {
	l := newLinter()
	lintSource(t, l, "bad.go", `package q

const QDelete = "delete from video_jobs where id = $1"

var QList = "--sql not-a-uuid\nselect id from video_jobs"
`)
	got := l.finish()
	if len(got) != 2 {
		t.Fatalf("violations = %+v, want 2", got)
	}
	if got[0].name != "QDelete" || got[0].line != 3 {
		t.Fatalf("first violation = %+v", got[0])
	}
}

func TestLinterFlagsDuplicateMarkers(t *testing.T) {
	l := newLinter()
	lintSource(t, l, "a.go", `package q

const QOne = "--sql 4a8e2f6b-b1d7-4c93-8e05-f2a9c3d6b170\nselect 1"
`)
	lintSource(t, l, "b.go", `package q

const QTwo = "--sql 4a8e2f6b-b1d7-4c93-8e05-f2a9c3d6b170\nselect 2"
`)
	got := l.finish()
	if len(got) != 2 {
		t.Fatalf("violations = %+v, want one per duplicate site", got)
	}
	for _, v := range got {
		if !strings.HasPrefix(v.message, "duplicate marker") {
			t.Fatalf("message = %q", v.message)
		}
	}
}
