// # internal/bundle/bundle_test.go
package bundle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pybundle/internal/bundle"
	"pybundle/internal/cycles"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func runBundle(t *testing.T, root, entry string) (*bundle.Result, error) {
	t.Helper()
	return bundle.Run(context.Background(), bundle.Request{
		ProjectRoot: root,
		Entry:       filepath.Join(root, filepath.FromSlash(entry)),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestRun_ConflictRenames(t *testing.T) {
	root := writeProject(t, map[string]string{
		"alpha.py": "def process(data):\n    return data + 1\n",
		"beta.py":  "def process(data):\n    return data - 1\n",
		"main.py": `from alpha import process
from beta import process as beta_process

print(process(1), beta_process(1))
`,
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	// First discovery keeps the bare name; the later definer is renamed.
	assert.Contains(t, out, "def process(data):")
	assert.Contains(t, out, "def process_1(data):")
	assert.Contains(t, out, "print(process(1), process_1(1))")
	assert.NotContains(t, out, "from alpha import")
	assert.NotContains(t, out, "from beta import")

	assert.Equal(t, []string{"alpha", "beta", "main"}, result.Order)
	assert.Equal(t, 1, result.Stats.Renames)
	assert.Equal(t, 3, result.Stats.Modules)
}

func TestRun_NamespaceChain(t *testing.T) {
	root := writeProject(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/util.py":     "def helper():\n    return 7\n",
		"main.py":         "import pkg.util\n\nprint(pkg.util.helper())\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	assert.Contains(t, out, "import types\n")
	assert.Contains(t, out, "pkg = types.SimpleNamespace(util=types.SimpleNamespace(helper=helper))")
	assert.Contains(t, out, "def helper():")
	// The dotted attribute access keeps working against the namespace.
	assert.Contains(t, out, "print(pkg.util.helper())")

	util := strings.Index(out, "# --- pkg.util ---")
	main := strings.Index(out, "# --- main ---")
	require.True(t, util >= 0 && main >= 0)
	assert.Less(t, util, main, "dependencies must precede the entry")
}

func TestRun_ExternalImportsHoisted(t *testing.T) {
	root := writeProject(t, map[string]string{
		"util.py": "import json\n\ndef dump(v):\n    return json.dumps(v)\n",
		"main.py": "import json\nfrom util import dump\n\nprint(dump([1]), json.loads(\"{}\"))\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	// Both modules import json; one hoisted statement serves them.
	assert.Equal(t, 1, strings.Count(out, "import json"))
	idx := strings.Index(out, "import json")
	banner := strings.Index(out, "# --- ")
	assert.Less(t, idx, banner, "externals must precede module bodies")
}

func TestRun_UnusedImportElided(t *testing.T) {
	root := writeProject(t, map[string]string{
		"main.py": "import os\nimport sys\n\nsys.exit(0)\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	assert.NotContains(t, out, "import os")
	assert.Contains(t, out, "import sys")
	assert.Equal(t, 1, result.Stats.ElidedImports)

	found := false
	for _, d := range result.Diagnostics {
		if d.Severity == bundle.Info && strings.Contains(d.Message, `"os"`) {
			found = true
		}
	}
	assert.True(t, found, "elision must be reported: %v", result.Diagnostics)
}

func TestRun_FunctionLevelCycle(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.py": `from b import render

def parse(text):
    return render(text)
`,
		"b.py": `from a import parse

def render(text):
    if text.startswith("@"):
        return parse(text[1:])
    return text
`,
		"main.py": "from a import parse\n\nprint(parse(\"x\"))\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	assert.Contains(t, out, "def parse(text):")
	assert.Contains(t, out, "def render(text):")
	// The crossing imports dissolve into direct references.
	assert.Contains(t, out, "return render(text)")
	assert.Contains(t, out, "return parse(text[1:])")
	assert.NotContains(t, out, ":parse", "deferred alias tokens must not leak")
	assert.NotContains(t, out, ":render")

	require.Len(t, result.Groups, 1)
	assert.Equal(t, cycles.FunctionLevel, result.Groups[0].Kind)
	assert.Equal(t, cycles.FunctionScopedImport, result.Groups[0].Resolution.Kind)

	warned := false
	for _, d := range result.Diagnostics {
		if d.Severity == bundle.Warning && strings.Contains(d.Message, "circular dependency") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRun_FunctionScopedImportsOnly(t *testing.T) {
	// The two modules reach each other only through imports inside
	// function bodies; nothing crosses at the top level.
	root := writeProject(t, map[string]string{
		"a.py": `def parse(text):
    from b import render
    return render(text)
`,
		"b.py": `def render(text):
    from a import parse
    if text.startswith("@"):
        return parse(text[1:])
    return text
`,
		"main.py": "from a import parse\n\nprint(parse(\"x\"))\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	assert.Contains(t, out, "def parse(text):")
	assert.Contains(t, out, "def render(text):")
	assert.Contains(t, out, "return render(text)")
	assert.Contains(t, out, "return parse(text[1:])")
	assert.NotContains(t, out, "from b import")
	assert.NotContains(t, out, "from a import")
	assert.NotContains(t, out, ":parse", "deferred alias tokens must not leak")
	assert.NotContains(t, out, ":render")

	require.Len(t, result.Groups, 1)
	assert.Equal(t, cycles.FunctionLevel, result.Groups[0].Kind)
	assert.Equal(t, cycles.FunctionScopedImport, result.Groups[0].Resolution.Kind)
	assert.Equal(t, []string{"a", "b", "main"}, result.Order)

	warned := false
	for _, d := range result.Diagnostics {
		if d.Severity == bundle.Warning && strings.Contains(d.Message, "circular dependency") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRun_NestedImportKeepsExternalClause(t *testing.T) {
	root := writeProject(t, map[string]string{
		"helpers.py": "def render(s):\n    return s\n",
		"main.py": `def lazy():
    import os, helpers
    return helpers.render(os.sep)

print(lazy())
`,
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	// The first-party half becomes a namespace binding; the external half
	// stays a real import inside the function.
	assert.Contains(t, out, "import os; helpers = types.SimpleNamespace(render=render)")
	assert.Equal(t, 1, strings.Count(out, "import os"))

	helpers := strings.Index(out, "# --- helpers ---")
	main := strings.Index(out, "# --- main ---")
	require.True(t, helpers >= 0 && main >= 0)
	assert.Less(t, helpers, main)
}

func TestRun_OrderableConstantCycle(t *testing.T) {
	// a reads b.LIMIT at module level, b reads back only inside a
	// function body. Emitting b first satisfies the constant.
	root := writeProject(t, map[string]string{
		"a.py": `from b import LIMIT

CAP = LIMIT + 1

def use_cap():
    return CAP
`,
		"b.py": `def helper():
    from a import use_cap
    return use_cap()

LIMIT = 10
`,
		"main.py": "from a import CAP\n\nprint(CAP)\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	limit := strings.Index(out, "LIMIT = 10")
	cap := strings.Index(out, "CAP = LIMIT + 1")
	require.True(t, limit >= 0 && cap >= 0)
	assert.Less(t, limit, cap, "the exporting module must be emitted first")

	require.Len(t, result.Groups, 1)
	assert.Equal(t, cycles.ImportTime, result.Groups[0].Kind)
	assert.Equal(t, []string{"b", "a", "main"}, result.Order)
}

func TestRun_BlockLevelImportWarns(t *testing.T) {
	root := writeProject(t, map[string]string{
		"helper.py": "x = 1\n",
		"main.py": `import sys

if sys.platform == "linux":
    import helper

print(1)
`,
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	// The guarded import is left as written and the module is not
	// inlined; a diagnostic points at it.
	assert.Contains(t, out, "import helper")
	assert.NotContains(t, out, "# --- helper ---")

	warned := false
	for _, d := range result.Diagnostics {
		if d.Severity == bundle.Warning &&
			strings.Contains(d.Message, `"helper"`) &&
			strings.Contains(d.Message, "module-level block") {
			warned = true
		}
	}
	assert.True(t, warned, "diagnostics: %v", result.Diagnostics)
}

func TestRun_ConstantParadoxFails(t *testing.T) {
	root := writeProject(t, map[string]string{
		"x.py":    "from y import LIMIT\n\nCAP = LIMIT + 1\n",
		"y.py":    "from x import CAP\n\nLIMIT = 10\nFLOOR = CAP - 1\n",
		"main.py": "from x import CAP\n\nprint(CAP)\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.Error(t, err)

	var fatal *cycles.FatalCycleError
	require.True(t, errors.As(err, &fatal))
	assert.Contains(t, err.Error(), "CAP")
	// Diagnostics still describe the cycle on the failed result.
	assert.NotEmpty(t, result.Diagnostics)
	assert.Empty(t, result.Output)
}

func TestRun_TreeShaking(t *testing.T) {
	root := writeProject(t, map[string]string{
		"util.py": `def used():
    return 1

def unused_helper():
    return 2
`,
		"main.py": "from util import used\n\nprint(used())\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	assert.Contains(t, out, "def used():")
	assert.NotContains(t, out, "unused_helper")
	assert.Less(t, result.Stats.IncludedItems, result.Stats.Items)
}

func TestRun_SideEffectsSurviveShaking(t *testing.T) {
	root := writeProject(t, map[string]string{
		"setup.py": "print(\"configuring\")\n\ndef used():\n    return 0\n\ndef never_called():\n    return 1\n",
		"main.py":  "from setup import used\n\nprint(used())\n",
	})

	result, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	out := string(result.Output)
	assert.Contains(t, out, `print("configuring")`)
	assert.NotContains(t, out, "never_called")
}

func TestRun_SyntaxErrorAborts(t *testing.T) {
	root := writeProject(t, map[string]string{
		"main.py":   "print('ok')\n",
		"broken.py": "def broken(:\n    pass\n",
	})

	_, err := runBundle(t, root, "main.py")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestRun_UnresolvedFirstPartyImportFails(t *testing.T) {
	root := writeProject(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/core.py":     "x = 1\n",
		"main.py":         "from pkg.missing import thing\n\nprint(thing)\n",
	})

	_, err := runBundle(t, root, "main.py")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pkg.missing")
}

func TestRun_EntryOutsideRootFails(t *testing.T) {
	root := writeProject(t, map[string]string{"main.py": "x = 1\n"})
	other := writeProject(t, map[string]string{"main.py": "x = 1\n"})

	_, err := bundle.Run(context.Background(), bundle.Request{
		ProjectRoot: root,
		Entry:       filepath.Join(other, "main.py"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.Error(t, err)
}

func TestRun_Deterministic(t *testing.T) {
	root := writeProject(t, map[string]string{
		"alpha.py": "def process(d):\n    return d\n",
		"beta.py":  "def process(d):\n    return d\n",
		"gamma.py": "import alpha\nimport beta\n\ndef run():\n    return alpha.process(beta.process(1))\n",
		"main.py":  "from gamma import run\n\nprint(run())\n",
	})

	first, err := runBundle(t, root, "main.py")
	require.NoError(t, err)
	second, err := runBundle(t, root, "main.py")
	require.NoError(t, err)

	assert.Equal(t, string(first.Output), string(second.Output))
	assert.Equal(t, first.Order, second.Order)
}
