package resolve

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
	"github.com/vk/pipewright/internal/instance"
	"github.com/vk/pipewright/internal/schema"
)

func testContext() context.Context {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

// fixture parses a model and instances from literals and returns a resolver
// rooted at /data.
func fixture(t *testing.T, model, instances string) (*schema.Schema, *instance.Forest, *Resolver) {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.meta")
	instPath := filepath.Join(dir, "instances.txt")
	require.NoError(t, os.WriteFile(modelPath, []byte(model), 0o644))
	require.NoError(t, os.WriteFile(instPath, []byte(instances), 0o644))

	sch, err := schema.Parse(testContext(), modelPath)
	require.NoError(t, err)
	forest, err := instance.Load(testContext(), sch, instPath)
	require.NoError(t, err)
	return sch, forest, New(sch, "/data")
}

const resolveModel = `
class study
class cohort parent=study
class sample parent=cohort

prop study build required
prop sample trim default=20

dir study root path=$base_dir/$instance
dir cohort cohort_dir path=$root/$instance
file study manifest path=$root/manifest.tsv
file sample reads path=$cohort_dir/$instance.fq
file sample clean path=$cohort_dir/$instance.clean.fq
`

const resolveInstances = `
study t2d build=hg38
cohort controls parent=t2d
sample s1 parent=controls
`

func TestFilePath(t *testing.T) {
	_, forest, res := fixture(t, resolveModel, resolveInstances)
	s1, _ := forest.Lookup("s1")

	t.Run("own file resolves through dir chain", func(t *testing.T) {
		path, err := res.FilePath(s1, "reads")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data", "t2d", "controls", "s1.fq"), path)
	})

	t.Run("ancestor file resolves against owner instance", func(t *testing.T) {
		path, err := res.FilePath(s1, "manifest")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data", "t2d", "manifest.tsv"), path)
	})

	t.Run("memoized resolution is stable", func(t *testing.T) {
		a, err := res.FilePath(s1, "reads")
		require.NoError(t, err)
		b, err := res.FilePath(s1, "reads")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unknown file", func(t *testing.T) {
		_, err := res.FilePath(s1, "nonexistent")
		var rerr *ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, KindUnknownReference, rerr.Kind)
	})
}

func TestVariable(t *testing.T) {
	_, forest, res := fixture(t, resolveModel, resolveInstances)
	s1, _ := forest.Lookup("s1")

	cases := []struct {
		name string
		want string
	}{
		{"base_dir", "/data"},
		{"instance", "s1"},
		{"class", "sample"},
		{"build", "hg38"},
		{"trim", "20"},
	}
	for _, tc := range cases {
		t.Run("$"+tc.name, func(t *testing.T) {
			got, err := res.Variable(s1, tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("dir as variable", func(t *testing.T) {
		got, err := res.Variable(s1, "cohort_dir")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/data", "t2d", "controls"), got)
	})

	t.Run("unresolved", func(t *testing.T) {
		_, err := res.Variable(s1, "nonexistent")
		var rerr *ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, KindUnresolvedProperty, rerr.Kind)
	})
}

func TestAncestorToken(t *testing.T) {
	_, forest, res := fixture(t, resolveModel, resolveInstances)
	s1, _ := forest.Lookup("s1")

	got, err := res.Ancestor(s1, "study")
	require.NoError(t, err)
	assert.Equal(t, "t2d", got)

	_, err = res.Ancestor(s1, "nonexistent")
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindNoSuchAncestor, rerr.Kind)
}

func TestReferenceCycle(t *testing.T) {
	model := `
class s
dir s a path=$b/x
dir s b path=$a/y
`
	_, forest, res := fixture(t, model, "s one\n")
	one, _ := forest.Lookup("one")

	_, err := res.DirPath(one, "a")
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindCycle, rerr.Kind)
}

func TestPathCollision(t *testing.T) {
	model := `
class s
file s a path=out/fixed.txt
file s b path=out/fixed.txt
`
	_, forest, res := fixture(t, model, "s one\n")
	one, _ := forest.Lookup("one")

	_, err := res.FilePath(one, "a")
	require.NoError(t, err)
	_, err = res.FilePath(one, "b")
	var rerr *ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindPathCollision, rerr.Kind)
}

func TestResolveCommand(t *testing.T) {
	model := `
class study
class sample parent=study

prop study build required
prop sample mode default=fast
prop sample with_ref default=false

file study ref path=ref/$build.fa
file sample reads path=$instance/reads.fq
file sample clean path=$instance/clean.fq

cmd sample qc in=reads in=ref:-r,optional,if_prop=with_ref out=clean \
    args="qc --mode !{prop:mode} !{input:reads} !{input:ref} > !{output:clean}"
`
	instances := `
study t2d build=hg38
sample s1 parent=t2d
sample s2 parent=t2d with_ref=true
`
	sch, forest, res := fixture(t, model, instances)
	def := sch.CommandsFor("sample")[0]

	t.Run("if_prop gates the input off", func(t *testing.T) {
		s1, _ := forest.Lookup("s1")
		cmd, err := res.ResolveCommand(s1, def)
		require.NoError(t, err)
		require.Len(t, cmd.Inputs, 1)
		assert.Equal(t, "reads", cmd.Inputs[0].Name)

		argv := cmd.RenderArgs(func(string) bool { return true })
		assert.Equal(t,
			"qc --mode fast /data/s1/reads.fq  > /data/s1/clean.fq",
			argv)
	})

	t.Run("if_prop truthy includes the input", func(t *testing.T) {
		s2, _ := forest.Lookup("s2")
		cmd, err := res.ResolveCommand(s2, def)
		require.NoError(t, err)
		require.Len(t, cmd.Inputs, 2)

		argv := cmd.RenderArgs(func(string) bool { return true })
		assert.Equal(t,
			"qc --mode fast /data/s2/reads.fq -r /data/ref/hg38.fa > /data/s2/clean.fq",
			argv)
	})

	t.Run("optional absent input is omitted with its flag", func(t *testing.T) {
		s2, _ := forest.Lookup("s2")
		cmd, err := res.ResolveCommand(s2, def)
		require.NoError(t, err)

		refPath, err := res.FilePath(s2, "ref")
		require.NoError(t, err)
		argv := cmd.RenderArgs(func(path string) bool { return path != refPath })
		assert.NotContains(t, argv, "-r")
		assert.NotContains(t, argv, "hg38.fa")
	})
}
