package gen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Runtime import paths referenced by generated code.
const (
	rootPkg     = "github.com/syssam/pgproto"
	sqlPkg      = rootPkg + "/dialect/sql"
	storagePkg  = rootPkg + "/storage"
	crudPkg     = rootPkg + "/crud"
	privacyPkg  = rootPkg + "/privacy"
	validatePkg = rootPkg + "/validate"
)

// JenniferGenerator renders the artifacts of a graph. Every file is rendered
// in memory first; nothing is written unless all of them rendered.
type JenniferGenerator struct {
	graph   *Graph
	workers int
	dialect MinimalDialect
}

// NewJenniferGenerator creates a new generator of the graph.
// You must call WithDialect() to set a dialect before calling Generate().
//
// Example:
//
//	import "github.com/syssam/pgproto/compiler/gen/sql"
//
//	generator := gen.NewJenniferGenerator(graph)
//	generator.WithDialect(sql.NewDialect(generator))
//	err := generator.Generate(ctx)
func NewJenniferGenerator(g *Graph) *JenniferGenerator {
	return &JenniferGenerator{graph: g, workers: g.Workers}
}

// WithWorkers sets the number of parallel workers.
func (g *JenniferGenerator) WithWorkers(n int) *JenniferGenerator {
	if n > 0 {
		g.workers = n
	}
	return g
}

// WithDialect sets the dialect generator.
func (g *JenniferGenerator) WithDialect(d MinimalDialect) *JenniferGenerator {
	if d != nil {
		g.dialect = d
	}
	return g
}

// output is one rendered file, relative to the target directory unless abs is set.
type output struct {
	path string
	abs  bool
	data []byte
}

// Generate renders the IDL files, the descriptor set and the Go packages of
// every table, and writes them only when all of them were rendered.
func (g *JenniferGenerator) Generate(ctx context.Context) error {
	if g.dialect == nil {
		return NewConfigError("Dialect", nil, "no dialect set: call WithDialect() before Generate()")
	}
	outputs, err := g.render(ctx)
	if err != nil {
		return err
	}
	return g.write(outputs)
}

// render renders every artifact in memory.
func (g *JenniferGenerator) render(ctx context.Context) ([]output, error) {
	fds, err := g.graph.Descriptors()
	if err != nil {
		return nil, err
	}
	var (
		cfg     = g.graph.Config
		perType = make([][]output, len(g.graph.Nodes))
	)
	errg, ctx := errgroup.WithContext(ctx)
	errg.SetLimit(max(g.workers, 1))
	for i, t := range g.graph.Nodes {
		errg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outs, err := g.renderType(t, fds[i])
			if err != nil {
				return err
			}
			perType[i] = outs
			cfg.logger().Debug("table rendered", zap.String("table", t.QualifiedName()), zap.Int("files", len(outs)))
			return nil
		})
	}
	if err := errg.Wait(); err != nil {
		return nil, err
	}
	var outputs []output
	for _, outs := range perType {
		outputs = append(outputs, outs...)
	}
	if cfg.DescriptorSet != "" {
		set, err := DescriptorSet(fds)
		if err != nil {
			return nil, &GenerationError{Phase: "proto", File: cfg.DescriptorSet, Cause: err}
		}
		outputs = append(outputs, output{path: cfg.DescriptorSet, abs: true, data: set})
	}
	return outputs, nil
}

func (g *JenniferGenerator) renderType(t *Type, fd *descriptorpb.FileDescriptorProto) ([]output, error) {
	outs := []output{{path: t.ProtoFile(), data: PrintProto(g.graph.Header, fd)}}
	files := []struct {
		name string
		gen  func(*Type) *jen.File
	}{
		{t.Package + ".go", g.dialect.GenRelation},
		{"service.go", g.dialect.GenService},
		{"storage.go", g.dialect.GenStorage},
	}
	for _, f := range files {
		name := filepath.Join(t.Package, f.name)
		var buf bytes.Buffer
		if err := f.gen(t).Render(&buf); err != nil {
			return nil, &GenerationError{Phase: "render", Table: t.QualifiedName(), File: name, Cause: err}
		}
		outs = append(outs, output{path: name, data: buf.Bytes()})
	}
	return outs, nil
}

func (g *JenniferGenerator) write(outputs []output) error {
	cfg := g.graph.Config
	for _, o := range outputs {
		name := o.path
		if !o.abs {
			name = filepath.Join(cfg.Target, o.path)
		}
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return &GenerationError{Phase: "write", File: name, Cause: err}
		}
		if err := os.WriteFile(name, o.data, 0o644); err != nil {
			return &GenerationError{Phase: "write", File: name, Cause: err}
		}
	}
	cfg.logger().Info("generation completed", zap.Int("tables", len(g.graph.Nodes)), zap.Int("files", len(outputs)))
	return nil
}

// NewFile returns a jennifer file carrying the configured header comment.
func (g *JenniferGenerator) NewFile(pkg string) *jen.File {
	f := jen.NewFile(pkg)
	if h := g.graph.Header; h != "" {
		f.HeaderComment(h)
	}
	return f
}

// Graph implements GeneratorHelper.
func (g *JenniferGenerator) Graph() *Graph { return g.graph }

// PBPkg implements GeneratorHelper.
func (g *JenniferGenerator) PBPkg() string { return g.graph.PBPackage() }

// EntityPkgPath implements GeneratorHelper.
func (g *JenniferGenerator) EntityPkgPath(t *Type) string { return t.PkgPath() }

// SQLPkg implements GeneratorHelper.
func (g *JenniferGenerator) SQLPkg() string { return sqlPkg }

// StoragePkg implements GeneratorHelper.
func (g *JenniferGenerator) StoragePkg() string { return storagePkg }

// CrudPkg implements GeneratorHelper.
func (g *JenniferGenerator) CrudPkg() string { return crudPkg }

// PrivacyPkg implements GeneratorHelper.
func (g *JenniferGenerator) PrivacyPkg() string { return privacyPkg }

// ValidatePkg implements GeneratorHelper.
func (g *JenniferGenerator) ValidatePkg() string { return validatePkg }

// RootPkg implements GeneratorHelper.
func (g *JenniferGenerator) RootPkg() string { return rootPkg }

// Verify JenniferGenerator implements GeneratorHelper at compile time.
var _ GeneratorHelper = (*JenniferGenerator)(nil)
