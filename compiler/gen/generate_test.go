package gen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dave/jennifer/jen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// stubDialect renders one declaration per file.
type stubDialect struct {
	helper GeneratorHelper
	broken bool
}

func (d *stubDialect) Name() string { return "stub" }

func (d *stubDialect) GenRelation(t *Type) *jen.File {
	f := d.helper.NewFile(t.Package)
	f.Const().Id(t.Idents.Label).Op("=").Lit(t.Name)
	return f
}

func (d *stubDialect) GenService(t *Type) *jen.File {
	f := d.helper.NewFile(t.Package)
	if d.broken {
		f.Id("func {")
		return f
	}
	f.Type().Id(t.Idents.Service).Struct()
	return f
}

func (d *stubDialect) GenStorage(t *Type) *jen.File {
	f := d.helper.NewFile(t.Package)
	f.Var().Id("_").Op("=").Qual(d.helper.StoragePkg(), "NewRegistry")
	return f
}

func TestJenniferGenerator(t *testing.T) {
	t.Run("requires a dialect", func(t *testing.T) {
		err := NewJenniferGenerator(personGraph(t)).Generate(context.Background())
		assert.True(t, IsConfigError(err))
	})

	t.Run("helper paths", func(t *testing.T) {
		g := personGraph(t)
		gen := NewJenniferGenerator(g)
		assert.Same(t, g, gen.Graph())
		assert.Equal(t, "github.com/acme/store/pb", gen.PBPkg())
		assert.Equal(t, "github.com/acme/store/person", gen.EntityPkgPath(g.Nodes[0]))
		assert.Equal(t, "github.com/syssam/pgproto/dialect/sql", gen.SQLPkg())
		assert.Equal(t, "github.com/syssam/pgproto/storage", gen.StoragePkg())
		assert.Equal(t, "github.com/syssam/pgproto/crud", gen.CrudPkg())
		assert.Equal(t, "github.com/syssam/pgproto/privacy", gen.PrivacyPkg())
		assert.Equal(t, "github.com/syssam/pgproto/validate", gen.ValidatePkg())
		assert.Equal(t, "github.com/syssam/pgproto", gen.RootPkg())
	})

	t.Run("header comment", func(t *testing.T) {
		gen := NewJenniferGenerator(personGraph(t))
		f := gen.NewFile("person")
		f.Type().Id("Person").Struct()
		assert.Contains(t, f.GoString(), "// Code generated by pgproto. DO NOT EDIT.")
	})
}

func TestGenerate(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	set := filepath.Join(t.TempDir(), "out", "set.pb")
	cfg := testConfig(t, WithDescriptorSet(set), WithWorkers(2), WithLogger(zap.New(core)))
	g, err := NewGraph(cfg, schemaOf(t, "public",
		personTable(t),
		plainTable(t, "public", "item", column(t, "id", "int8")),
	))
	require.NoError(t, err)

	gen := NewJenniferGenerator(g)
	gen.WithDialect(&stubDialect{helper: gen})
	require.NoError(t, gen.Generate(context.Background()))

	for _, name := range []string{
		"proto/person.proto",
		"person/person.go",
		"person/service.go",
		"person/storage.go",
		"proto/item.proto",
		"item/item.go",
		"item/service.go",
		"item/storage.go",
	} {
		assert.FileExists(t, filepath.Join(cfg.Target, name))
	}

	data, err := os.ReadFile(filepath.Join(cfg.Target, "person", "person.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "package person")
	assert.Contains(t, string(data), `const Label = "Person"`)

	raw, err := os.ReadFile(set)
	require.NoError(t, err)
	fds := &descriptorpb.FileDescriptorSet{}
	require.NoError(t, proto.Unmarshal(raw, fds))
	assert.Len(t, fds.GetFile(), 4)

	assert.Equal(t, 2, logs.FilterMessage("table rendered").Len())
	done := logs.FilterMessage("generation completed").All()
	require.Len(t, done, 1)
	assert.Equal(t, int64(9), done[0].ContextMap()["files"])
}

func TestGenerateWritesNothingOnFailure(t *testing.T) {
	cfg := testConfig(t, WithDescriptorSet(filepath.Join(t.TempDir(), "set.pb")))
	g, err := NewGraph(cfg, schemaOf(t, "public", personTable(t)))
	require.NoError(t, err)

	gen := NewJenniferGenerator(g).WithWorkers(1)
	gen.WithDialect(&stubDialect{helper: gen, broken: true})
	err = gen.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, IsGenerationError(err))
	assert.Contains(t, err.Error(), "render failed for table public.person file person/service.go")

	entries, err := os.ReadDir(cfg.Target)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoFileExists(t, cfg.DescriptorSet)
}

func TestGenerateCanceled(t *testing.T) {
	g := personGraph(t)
	gen := NewJenniferGenerator(g)
	gen.WithDialect(&stubDialect{helper: gen})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, gen.Generate(ctx), context.Canceled)

	entries, err := os.ReadDir(g.Target)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
