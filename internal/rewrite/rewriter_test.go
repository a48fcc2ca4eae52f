// # internal/rewrite/rewriter_test.go
package rewrite_test

import (
	"strings"
	"testing"

	"pybundle/internal/parser"
	"pybundle/internal/printer"
	"pybundle/internal/rewrite"
)

func rewriteSource(t *testing.T, code string, subst map[string]string, planner rewrite.ImportPlanner) (string, []rewrite.Warning) {
	t.Helper()
	src, err := parser.NewParser().Parse("test.py", []byte(code))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer src.Close()

	edits, warnings := rewrite.New(src, subst, planner).Rewrite()
	out, err := printer.ApplyEdits(src.Content, edits)
	if err != nil {
		t.Fatalf("ApplyEdits: %v", err)
	}
	return string(out), warnings
}

type staticPlanner struct {
	replacement string
}

func (p staticPlanner) PlanImport(rewrite.ImportRef) (string, bool) {
	return p.replacement, p.replacement != ""
}

// mapPlanner handles only the listed modules, leaving the rest as
// external imports.
type mapPlanner map[string]string

func (p mapPlanner) PlanImport(ref rewrite.ImportRef) (string, bool) {
	replacement, ok := p[ref.Module]
	return replacement, ok
}

func TestRewrite_DefSiteAndUses(t *testing.T) {
	code := `def process(data):
    return data

result = process(raw)
`
	out, _ := rewriteSource(t, code, map[string]string{"process": "process_1"}, nil)
	if !strings.Contains(out, "def process_1(data):") {
		t.Errorf("definition site not renamed:\n%s", out)
	}
	if !strings.Contains(out, "result = process_1(raw)") {
		t.Errorf("call site not renamed:\n%s", out)
	}
}

func TestRewrite_LocalShadowBlocksRename(t *testing.T) {
	code := `def wrapper():
    helper = make()
    return helper()

def caller():
    return helper()
`
	out, _ := rewriteSource(t, code, map[string]string{"helper": "helper_1"}, nil)
	if !strings.Contains(out, "helper = make()") || !strings.Contains(out, "return helper()\n\ndef caller") {
		t.Errorf("shadowed local was renamed:\n%s", out)
	}
	if !strings.Contains(out, "return helper_1()") {
		t.Errorf("free use in caller not renamed:\n%s", out)
	}
}

func TestRewrite_ParameterShadowBlocksRename(t *testing.T) {
	out, _ := rewriteSource(t, "def f(size):\n    return size\n", map[string]string{"size": "size_1"}, nil)
	if strings.Contains(out, "size_1") {
		t.Errorf("parameter was renamed:\n%s", out)
	}
}

func TestRewrite_AnnotationsAndDefaultsUseEnclosingScope(t *testing.T) {
	// limit is a parameter inside f but the default expression and the
	// annotations evaluate in module scope.
	code := "def f(limit: Size = limit) -> Size:\n    return limit\n"
	out, _ := rewriteSource(t, code, map[string]string{"limit": "limit_1", "Size": "Size_1"}, nil)
	if !strings.Contains(out, "def f(limit: Size_1 = limit_1) -> Size_1:") {
		t.Errorf("parameter meta not rewritten in enclosing scope:\n%s", out)
	}
	if !strings.Contains(out, "return limit\n") {
		t.Errorf("body read of the parameter was renamed:\n%s", out)
	}
}

func TestRewrite_ComprehensionScope(t *testing.T) {
	// The leftmost iterable evaluates outside the comprehension; the
	// loop variable shadows inside it.
	code := "out = [item for item in item if item]\n"
	out, _ := rewriteSource(t, code, map[string]string{"item": "item_1"}, nil)
	if !strings.Contains(out, "for item in item_1 if item]") {
		t.Errorf("comprehension scoping wrong:\n%s", out)
	}
}

func TestRewrite_ClassScopeDoesNotEnclose(t *testing.T) {
	// The class body binds value, but methods skip the class scope and
	// see the module-level name.
	code := `class C:
    value = 1

    def get(self):
        return value
`
	out, _ := rewriteSource(t, code, map[string]string{"value": "value_1"}, nil)
	if !strings.Contains(out, "value = 1") {
		t.Errorf("class attribute binding was renamed:\n%s", out)
	}
	if !strings.Contains(out, "return value_1") {
		t.Errorf("method read must resolve to module scope:\n%s", out)
	}
}

func TestRewrite_GlobalStatementEscapes(t *testing.T) {
	code := `def bump():
    global counter
    counter = counter + 1
`
	out, _ := rewriteSource(t, code, map[string]string{"counter": "counter_1"}, nil)
	if !strings.Contains(out, "counter_1 = counter_1 + 1") {
		t.Errorf("global name not renamed inside function:\n%s", out)
	}
}

func TestRewrite_AttributePositionUntouched(t *testing.T) {
	out, _ := rewriteSource(t, "x = obj.run\n", map[string]string{"run": "run_1", "obj": "obj_1"}, nil)
	if !strings.Contains(out, "x = obj_1.run\n") {
		t.Errorf("attribute handling wrong:\n%s", out)
	}
}

func TestRewrite_KeywordArgumentNameUntouched(t *testing.T) {
	out, _ := rewriteSource(t, "f(limit=limit)\n", map[string]string{"limit": "limit_1"}, nil)
	if !strings.Contains(out, "f(limit=limit_1)") {
		t.Errorf("keyword argument handling wrong:\n%s", out)
	}
}

func TestRewrite_GlobalsStringKey(t *testing.T) {
	out, warnings := rewriteSource(t, "fn = globals()[\"handler\"]\n", map[string]string{"handler": "handler_1"}, nil)
	if !strings.Contains(out, "globals()[\"handler_1\"]") {
		t.Errorf("literal key not rewritten:\n%s", out)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestRewrite_DynamicKeyWarns(t *testing.T) {
	_, warnings := rewriteSource(t, "fn = globals()[name]\n", map[string]string{"handler": "handler_1"}, nil)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", warnings)
	}
	if warnings[0].Location.Line != 1 {
		t.Errorf("warning location = %+v", warnings[0].Location)
	}
}

func TestRewrite_GetattrLiteral(t *testing.T) {
	out, _ := rewriteSource(t, "fn = getattr(mod, \"handler\")\n", map[string]string{"handler": "handler_1"}, nil)
	if !strings.Contains(out, "getattr(mod, \"handler_1\")") {
		t.Errorf("getattr literal not rewritten:\n%s", out)
	}
}

func TestRewrite_GetattrDynamicWarns(t *testing.T) {
	_, warnings := rewriteSource(t, "fn = getattr(mod, key)\n", map[string]string{"handler": "handler_1"}, nil)
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want 1", warnings)
	}
}

func TestRewrite_NestedImportReplaced(t *testing.T) {
	code := `def lazy():
    from helpers import render
    return render()
`
	out, _ := rewriteSource(t, code, nil, staticPlanner{"render = render_1"})
	if !strings.Contains(out, "    render = render_1\n") {
		t.Errorf("nested import not replaced:\n%s", out)
	}
	if strings.Contains(out, "from helpers import") {
		t.Errorf("original import survived:\n%s", out)
	}
}

func TestRewrite_NestedImportKeepsExternalClause(t *testing.T) {
	// One statement, two modules: the inlined one is replaced, the
	// external one must survive as a real import.
	code := `def lazy():
    import os, helpers
    return helpers.render(os.sep)
`
	out, _ := rewriteSource(t, code, nil, mapPlanner{"helpers": "helpers = make_ns()"})
	if !strings.Contains(out, "    import os; helpers = make_ns()\n") {
		t.Errorf("external clause dropped:\n%s", out)
	}
}

func TestRewrite_NestedImportDissolvesToPass(t *testing.T) {
	code := `def lazy():
    from helpers import render
    return render()
`
	out, _ := rewriteSource(t, code, nil, mapPlanner{"helpers": ""})
	if !strings.Contains(out, "    pass\n") {
		t.Errorf("dissolved import needs a placeholder statement:\n%s", out)
	}
	if strings.Contains(out, "from helpers import") {
		t.Errorf("original import survived:\n%s", out)
	}
}

func TestRewrite_NestedImportModuleNameIsNotALocal(t *testing.T) {
	// "from config import load" binds load, never config; a later read
	// of the module-scope name config must still be renamed.
	code := `def f():
    from config import load
    return config
`
	out, _ := rewriteSource(t, code, map[string]string{"config": "config_1"},
		mapPlanner{"config": "load = load_1"})
	if !strings.Contains(out, "return config_1") {
		t.Errorf("module name of the from-import leaked into locals:\n%s", out)
	}
}

func TestRewrite_ModuleLevelImportLeftToPrinter(t *testing.T) {
	out, _ := rewriteSource(t, "from helpers import render\n", nil, staticPlanner{"render = render_1"})
	if !strings.Contains(out, "from helpers import render") {
		t.Errorf("module-level import must be untouched:\n%s", out)
	}
}
