package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/warpfork/go-testmark"

	"github.com/warptools/pinflow/pkg/workflow"
)

func TestCLIFixtures(t *testing.T) {
	doc, err := testmark.ReadFile("testdata/cli.md")
	if err != nil {
		t.Fatalf("spec file parse failed?!: %s", err)
	}
	doc.BuildDirIndex()

	dir := t.TempDir()
	replacements := []string{"{dir}", dir}
	for _, f := range doc.DirEnt.Children["files"].ChildrenList {
		body := f.Hunk.Body
		qt.Assert(t, os.WriteFile(filepath.Join(dir, f.Name), body, 0644), qt.IsNil)
		id, err := workflow.TextFingerprint(string(body))
		qt.Assert(t, err, qt.IsNil)
		replacements = append(replacements, "{fingerprint:"+f.Name+"}", id.String())
	}
	expand := strings.NewReplacer(replacements...).Replace

	for _, d := range doc.DirEnt.ChildrenList {
		if d.Name == "files" {
			continue
		}
		d := d
		t.Run(d.Name, func(t *testing.T) {
			args := strings.Fields(expand(string(d.Children["args"].Hunk.Body)))
			var stdout, stderr bytes.Buffer
			code := 0
			if err := makeApp(strings.NewReader(""), &stdout, &stderr).Run(append([]string{"pinflow"}, args...)); err != nil {
				code = 1
			}
			want := 0
			if h, ok := d.Children["exitcode"]; ok {
				want, err = strconv.Atoi(strings.TrimSpace(string(h.Hunk.Body)))
				qt.Assert(t, err, qt.IsNil)
			}
			qt.Assert(t, code, qt.Equals, want, qt.Commentf("stderr: %s", stderr.String()))
			if want != 0 {
				qt.Check(t, stderr.String(), qt.Matches, `(?s)error: .+`)
			}
			if h, ok := d.Children["stdout"]; ok {
				qt.Check(t, stdout.String(), qt.Equals, expand(string(h.Hunk.Body)))
			}
		})
	}
}

func TestFingerprintIsContentAddressed(t *testing.T) {
	a, err := workflow.TextFingerprint("{}")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, strings.HasPrefix(a.String(), "bafk"), qt.IsTrue)
}
