package instance

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/schema"
)

func testContext() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

const testModel = `
class study
class cohort parent=study
class sample parent=cohort

prop study build required
prop cohort threshold default=0.05
prop sample deep default=false
`

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.meta")
	require.NoError(t, os.WriteFile(path, []byte(testModel), 0o644))
	sch, err := schema.Parse(testContext(), path)
	require.NoError(t, err)
	return sch
}

func load(t *testing.T, sch *schema.Schema, name, content string) (*Forest, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return Load(testContext(), sch, path)
}

func TestLoadFlat(t *testing.T) {
	sch := testSchema(t)
	forest, err := load(t, sch, "instances.txt", `
# comments and blanks are fine
study t2d build=hg38
cohort controls parent=t2d
sample s1 parent=controls deep=true
sample s2 parent=controls
`)
	require.NoError(t, err)
	require.Equal(t, 4, forest.Len())

	s1, ok := forest.Lookup("s1")
	require.True(t, ok)
	assert.Equal(t, "sample", s1.Class.Name)
	assert.Equal(t, "controls", s1.Parent.Name)

	controls, _ := forest.Lookup("controls")
	assert.Len(t, controls.Children, 2)

	require.Len(t, forest.Roots, 1)
	assert.Equal(t, "t2d", forest.Roots[0].Name)
}

func TestPropertyResolution(t *testing.T) {
	sch := testSchema(t)
	forest, err := load(t, sch, "instances.txt", `
study t2d build=hg38
cohort controls parent=t2d threshold=0.01
sample s1 parent=controls
`)
	require.NoError(t, err)
	s1, _ := forest.Lookup("s1")

	t.Run("inherited from ancestor instance", func(t *testing.T) {
		v, ok := s1.Property("build")
		require.True(t, ok)
		assert.Equal(t, "hg38", v)
	})

	t.Run("ancestor value beats class default", func(t *testing.T) {
		v, ok := s1.Property("threshold")
		require.True(t, ok)
		assert.Equal(t, "0.01", v)
	})

	t.Run("class default as fallback", func(t *testing.T) {
		v, ok := s1.Property("deep")
		require.True(t, ok)
		assert.Equal(t, "false", v)
	})

	t.Run("unknown name does not resolve", func(t *testing.T) {
		_, ok := s1.Property("nonexistent")
		assert.False(t, ok)
	})
}

func TestAncestorOfClass(t *testing.T) {
	sch := testSchema(t)
	forest, err := load(t, sch, "instances.txt", `
study t2d build=hg38
cohort controls parent=t2d
sample s1 parent=controls
`)
	require.NoError(t, err)
	s1, _ := forest.Lookup("s1")

	anc, ok := s1.AncestorOfClass("study")
	require.True(t, ok)
	assert.Equal(t, "t2d", anc.Name, "must walk past the instance itself")

	mid, ok := s1.AncestorOfClass("cohort")
	require.True(t, ok)
	assert.Equal(t, "controls", mid.Name)

	self, ok := s1.AncestorOfClass("sample")
	require.True(t, ok)
	assert.Equal(t, "s1", self.Name, "the instance itself is included")

	_, ok = s1.AncestorOfClass("nonexistent")
	assert.False(t, ok)
}

func TestLoadFlatErrors(t *testing.T) {
	sch := testSchema(t)

	cases := []struct {
		name    string
		content string
		kind    Kind
	}{
		{"undefined class", "widget w1\n", KindUndefinedClass},
		{"duplicate instance", "study a build=x\nstudy a build=x\n", KindDuplicateInstance},
		{"undefined parent", "study a build=x\ncohort c parent=nope\n", KindUndefinedParent},
		{"parent of wrong class", "study a build=x\ncohort c parent=a\nsample s parent=a\n", KindUndefinedParent},
		{"root with parent", "study a build=x\nstudy b parent=a build=x\n", KindUndefinedParent},
		{"missing parent", "cohort c\n", KindUndefinedParent},
		{"missing required property", "study a\n", KindMissingRequiredProperty},
		{"bare value", "study a build\n", KindSyntax},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, sch, "instances.txt", tc.content)
			require.Error(t, err)
			var ierr *InstantiationError
			require.ErrorAs(t, err, &ierr)
			assert.Equal(t, tc.kind, ierr.Kind)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	sch := testSchema(t)
	forest, err := load(t, sch, "instances.yaml", `
classes:
  - class: study
    name: t2d
    properties:
      build: hg38
  - class: cohort
    name: controls
    parent: t2d
    properties:
      threshold: 0.01
templates:
  - class: sample
    parent: controls
    input: [s1, s2, s3]
    properties:
      deep: "true"
`)
	require.NoError(t, err)
	assert.Equal(t, 5, forest.Len())

	s2, ok := forest.Lookup("s2")
	require.True(t, ok)
	assert.Equal(t, "controls", s2.Parent.Name)

	v, ok := s2.Property("deep")
	require.True(t, ok)
	assert.Equal(t, "true", v)

	t.Run("scalars stringify", func(t *testing.T) {
		controls, _ := forest.Lookup("controls")
		v, ok := controls.Property("threshold")
		require.True(t, ok)
		assert.Equal(t, "0.01", v)
	})
}

func TestYAMLTemplateSubstitution(t *testing.T) {
	sch := testSchema(t)
	forest, err := load(t, sch, "instances.yaml", `
classes:
  - class: study
    name: t2d
    properties: {build: hg38}
  - class: cohort
    name: c_t2d
    parent: t2d
templates:
  - class: sample
    name: sample_${item}_${build}
    parent: c_${study}
    input: [a, b]
    vars:
      build: hg38
      study: t2d
`)
	require.NoError(t, err)

	got, ok := forest.Lookup("sample_a_hg38")
	require.True(t, ok)
	assert.Equal(t, "c_t2d", got.Parent.Name)
	_, ok = forest.Lookup("sample_b_hg38")
	assert.True(t, ok)
}

func TestYAMLErrors(t *testing.T) {
	sch := testSchema(t)

	t.Run("empty template input", func(t *testing.T) {
		_, err := load(t, sch, "instances.yaml", "templates:\n  - class: sample\n    parent: x\n")
		require.Error(t, err)
		var ierr *InstantiationError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, KindSyntax, ierr.Kind)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := load(t, sch, "instances.yaml", "classes:\n  - class: study\n")
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := load(t, sch, "instances.yaml", "classes: [\n")
		require.Error(t, err)
		assert.ErrorContains(t, err, "invalid YAML")
	})
}
