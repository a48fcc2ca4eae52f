// # internal/bundle/bundle.go
package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pybundle/internal/cycles"
	"pybundle/internal/extract"
	"pybundle/internal/graph"
	"pybundle/internal/parser"
	"pybundle/internal/printer"
	"pybundle/internal/registry"
	"pybundle/internal/resolver"
	"pybundle/internal/rewrite"
)

type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	default:
		return "error"
	}
}

// Diagnostic is one finding surfaced to the user. Errors abort the run
// after the current phase; warnings and infos never do.
type Diagnostic struct {
	Severity Severity
	Message  string
	Modules  []string
	Location parser.Location
}

type Stats struct {
	Modules       int
	Items         int
	IncludedItems int
	Renames       int
	CycleGroups   int
	ElidedImports int
	OutputBytes   int
	Duration      time.Duration
}

// Result carries the bundle output plus everything reporting needs:
// emission order, cycle groups, diagnostics and the module graph.
type Result struct {
	Output      []byte
	Order       []string
	Groups      []*cycles.Group
	Diagnostics []Diagnostic
	Graph       *graph.Graph
	Stats       Stats
}

type Request struct {
	ProjectRoot  string
	Entry        string // path of the entry module file
	ExcludeDirs  []string
	ExcludeFiles []string // glob patterns relative to the project root
	Workers      int
	Logger       *slog.Logger
}

type pipeline struct {
	req Request
	log *slog.Logger

	res *resolver.Resolver
	g   *graph.Graph
	reg *registry.Registry

	entry          graph.ModuleID
	sources        map[graph.ModuleID]*parser.Source
	pendingSources []*parser.Source
	plans          map[graph.ItemRef]itemPlan
	edits          map[graph.ModuleID][]rewrite.Edit
	unused         map[graph.ItemRef]bool
	reach          map[graph.ModuleID]bool

	needsTypes bool
	futures    []string

	diags []Diagnostic
	errs  int
}

// Run executes the whole pipeline: scan, parse, graph construction,
// cycle analysis, conflict resolution, rewriting, tree shaking and
// final rendering. The returned Result is populated as far as the run
// got even when err is non-nil, so callers can report diagnostics.
func Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	p := &pipeline{
		req:     req,
		log:     log,
		g:       graph.New(),
		sources: make(map[graph.ModuleID]*parser.Source),
		plans:   make(map[graph.ItemRef]itemPlan),
		edits:   make(map[graph.ModuleID][]rewrite.Edit),
	}
	result := &Result{Graph: p.g}
	defer func() {
		for _, src := range p.sources {
			src.Close()
		}
		result.Diagnostics = p.diags
		result.Stats.Duration = time.Since(start)
	}()

	rootAbs, err := filepath.Abs(req.ProjectRoot)
	if err != nil {
		return result, fmt.Errorf("project root: %w", err)
	}
	entryAbs, err := filepath.Abs(req.Entry)
	if err != nil {
		return result, fmt.Errorf("entry: %w", err)
	}
	if rel, err := filepath.Rel(rootAbs, entryAbs); err != nil || strings.HasPrefix(rel, "..") {
		return result, fmt.Errorf("entry %s is outside project root %s", entryAbs, rootAbs)
	}

	files, err := p.scan(rootAbs, entryAbs)
	if err != nil {
		return result, err
	}
	log.Debug("scan complete", "files", len(files))

	p.res = resolver.New(rootAbs)
	for _, file := range files {
		if name := p.res.ModuleName(file); name != "" {
			p.res.Register(name)
		}
	}

	extracted, err := p.parseAll(ctx, files)
	if err != nil {
		return result, err
	}

	if err := p.buildGraph(files, extracted); err != nil {
		return result, err
	}
	entryMod, ok := p.g.ModuleByPath(entryAbs)
	if !ok {
		return result, fmt.Errorf("entry module %s was not registered", entryAbs)
	}
	p.entry = entryMod.ID

	p.buildEdges()
	if p.errs > 0 {
		return result, p.failure("unresolved first-party imports")
	}

	groups, cycleErr := cycles.New(p.g).Analyze()
	result.Groups = groups
	for _, grp := range groups {
		sev := Warning
		if grp.Resolution.Kind == cycles.Unresolvable {
			sev = Error
		}
		p.report(sev, grp.Names, parser.Location{}, "circular dependency (%s): %s",
			grp.Kind, grp.Resolution.Reason)
	}
	if cycleErr != nil {
		return result, cycleErr
	}

	// Cycle groups carry the member order their resolution picked;
	// everything else falls into singleton groups.
	memberLists := make([][]graph.ModuleID, 0, len(groups))
	for _, grp := range groups {
		memberLists = append(memberLists, grp.Members)
	}
	order, err := p.g.OrderWithGroups(memberLists)
	if err != nil {
		return result, err
	}

	p.reach = p.reachable()
	p.unused = p.unusedImports()
	p.enroll()

	conflicts := p.reg.DetectConflicts()
	for _, c := range conflicts {
		names := make([]string, 0, len(c.Modules))
		for _, id := range c.Modules {
			names = append(names, p.g.Module(id).Name)
		}
		p.report(Info, names, parser.Location{}, "symbol %q defined by %d modules; later definers are renamed",
			c.Name, len(c.Modules))
	}
	result.Stats.Renames = p.reg.AssignRenames()

	for _, id := range order {
		if !p.reach[id] {
			continue
		}
		if err := p.processModule(p.g.Module(id)); err != nil {
			return result, err
		}
	}
	if p.errs > 0 {
		return result, p.failure("bundling failed")
	}

	if err := p.resolveDeferred(); err != nil {
		return result, err
	}

	doc, emitted, includedItems := p.render(order, entryMod.Name)
	result.Output = printer.Render(doc)
	result.Order = emitted

	result.Stats.Modules = len(emitted)
	result.Stats.Items = p.reachableItems()
	result.Stats.IncludedItems = includedItems
	result.Stats.CycleGroups = len(groups)
	result.Stats.ElidedImports = len(p.unused)
	result.Stats.OutputBytes = len(result.Output)

	log.Info("bundle complete",
		"modules", result.Stats.Modules,
		"items", result.Stats.IncludedItems,
		"renames", result.Stats.Renames,
		"cycles", result.Stats.CycleGroups,
		"bytes", result.Stats.OutputBytes)

	return result, nil
}

func (p *pipeline) report(sev Severity, modules []string, loc parser.Location, format string, args ...any) {
	if sev == Error {
		p.errs++
	}
	p.diags = append(p.diags, Diagnostic{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Modules:  modules,
		Location: loc,
	})
}

// failure summarizes accumulated error diagnostics into one error.
func (p *pipeline) failure(context string) error {
	var msgs []string
	for _, d := range p.diags {
		if d.Severity == Error {
			msgs = append(msgs, d.Message)
			if len(msgs) == 3 {
				break
			}
		}
	}
	if p.errs > len(msgs) {
		msgs = append(msgs, fmt.Sprintf("and %d more", p.errs-len(msgs)))
	}
	return fmt.Errorf("%s: %s", context, strings.Join(msgs, "; "))
}

// parseAll parses and extracts every file concurrently. Any syntax
// error aborts the run; partial bundles are never produced.
func (p *pipeline) parseAll(ctx context.Context, files []string) ([]*extract.ModuleSource, error) {
	workers := p.req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	shared := parser.NewParser()
	sources := make([]*parser.Source, len(files))
	extracted := make([]*extract.ModuleSource, len(files))

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	for i, path := range files {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			src, err := shared.Parse(path, content)
			if err != nil {
				return err
			}
			sources[i] = src
			extracted[i] = extract.Extract(src)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		for _, src := range sources {
			if src != nil {
				src.Close()
			}
		}
		return nil, err
	}

	// Index sources by the module ids assigned later; buildGraph fills
	// p.sources as it registers modules.
	p.pendingSources = sources
	return extracted, nil
}

// buildGraph registers modules in scan order so ids reflect first
// discovery, then populates items and symbol states.
func (p *pipeline) buildGraph(files []string, extracted []*extract.ModuleSource) error {
	for i, file := range files {
		name := p.res.ModuleName(file)
		if name == "" {
			p.pendingSources[i].Close()
			continue
		}
		base := filepath.Base(file)
		isInit := base == "__init__.py"
		id, err := p.g.AddModule(name, file, isInit, isInit)
		if err != nil {
			p.report(Error, []string{name}, parser.Location{File: file},
				"duplicate module name %q (%s)", name, file)
			p.pendingSources[i].Close()
			continue
		}
		p.g.SetItems(id, extracted[i])
		p.sources[id] = p.pendingSources[i]
	}
	p.pendingSources = nil
	if p.errs > 0 {
		return p.failure("module discovery failed")
	}
	return nil
}

// reachable walks the module graph from the entry; only reachable
// modules are enrolled, rewritten and emitted.
func (p *pipeline) reachable() map[graph.ModuleID]bool {
	seen := map[graph.ModuleID]bool{p.entry: true}
	queue := []graph.ModuleID{p.entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range p.g.Dependencies(id) {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func (p *pipeline) unusedImports() map[graph.ItemRef]bool {
	unused := make(map[graph.ItemRef]bool)
	for _, u := range p.g.UnusedImports() {
		if !p.reach[u.Module] {
			continue
		}
		ref := graph.ItemRef{Module: u.Module, Item: u.Item}
		unused[ref] = true
		mod := p.g.Module(u.Module)
		p.report(Info, []string{mod.Name}, mod.Items[u.Item].Location,
			"unused import %q elided", u.Name)
	}
	return unused
}

func (p *pipeline) reachableItems() int {
	total := 0
	for _, mod := range p.g.Modules() {
		if p.reach[mod.ID] {
			total += len(mod.Items)
		}
	}
	return total
}

// resolveDeferred replaces every outstanding alias token in edit and
// plan texts. A token left over afterwards is an internal error.
func (p *pipeline) resolveDeferred() error {
	tokens := p.reg.OutstandingDeferred()
	if len(tokens) == 0 {
		return nil
	}
	sort.Slice(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })

	pairs := make([]string, 0, len(tokens)*2)
	for _, token := range tokens {
		resolved, err := p.reg.ResolveDeferred(token)
		if err != nil {
			return err
		}
		pairs = append(pairs, token, resolved)
	}
	replacer := strings.NewReplacer(pairs...)

	for id, edits := range p.edits {
		for i := range edits {
			edits[i].Text = replacer.Replace(edits[i].Text)
		}
		p.edits[id] = edits
	}
	for ref, plan := range p.plans {
		if plan.kind == planText {
			plan.text = replacer.Replace(plan.text)
			p.plans[ref] = plan
		}
	}

	if leftover := p.reg.OutstandingDeferred(); len(leftover) > 0 {
		return &registry.InternalError{
			Message: fmt.Sprintf("%d deferred aliases never resolved: %s",
				len(leftover), strings.Join(leftover, ", ")),
		}
	}
	return nil
}
