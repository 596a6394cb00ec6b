package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/godeform/geom"
)

func testDriver(t *testing.T, n int) (*Driver, *StaticEngine, *Context) {
	ctx, err := NewContext("cpu", 25, 2.0)
	assert.NoError(t, err)

	engine := NewStaticEngine(ctx)
	d := NewDriver(engine)

	pos := make([]geom.Vec, n)
	vol := make([]float32, n)
	cov := make([]geom.Sym, n)
	for i := range pos {
		pos[i] = geom.Vec{float32(i), 1, 1}
		vol[i] = 1
		cov[i] = geom.Sym{1, 0, 0, 1, 0, 1}
	}

	assert.NoError(t, d.Load(pos, vol, cov, ctx.GridCells, ctx.GridLim))
	return d, engine, ctx
}

func TestDriverLifecycle(t *testing.T) {
	d, _, _ := testDriver(t, 4)
	assert.Equal(t, Loaded, d.State())

	fields := NewFields(4, 2e6, 1e4, 1e4, 1.0)
	assert.NoError(t, d.SetMaterialFields(fields))
	assert.NoError(t, d.FinalizeMaterial())
	assert.NoError(t, d.SetBoundaryConditions(nil))
	assert.NoError(t, d.Advance(0, 1e-4))
	assert.Equal(t, Running, d.State())

	assert.NoError(t, d.ResetToCheckpoint())
	assert.Equal(t, Loaded, d.State())

	d.Finish()
	assert.Equal(t, Finalized, d.State())
}

func TestDriverAdvanceBeforeLoadPanics(t *testing.T) {
	d := NewDriver(NewStaticEngine(&Context{GridCells: 8, GridLim: 2}))
	assert.Panics(t, func() { d.Advance(0, 1e-4) })
}

func TestDriverAdvanceBeforeMaterialPanics(t *testing.T) {
	d, _, _ := testDriver(t, 2)
	assert.Panics(t, func() { d.Advance(0, 1e-4) })
}

func TestDriverBoundaryBeforeFinalizePanics(t *testing.T) {
	d, _, _ := testDriver(t, 2)
	assert.NoError(t, d.SetMaterialFields(NewFields(2, 1, 1, 1, 1)))
	assert.Panics(t, func() { d.SetBoundaryConditions(nil) })
}

func TestDriverDoubleLoadPanics(t *testing.T) {
	d, _, ctx := testDriver(t, 2)
	assert.Panics(t, func() {
		d.Load(make([]geom.Vec, 2), make([]float32, 2), make([]geom.Sym, 2),
			ctx.GridCells, ctx.GridLim)
	})
}

func TestDriverFieldSizeMismatch(t *testing.T) {
	d, _, _ := testDriver(t, 4)
	assert.Error(t, d.SetMaterialFields(NewFields(3, 1, 1, 1, 1)))
}

func TestDriverIdempotentReset(t *testing.T) {
	d, _, _ := testDriver(t, 6)
	assert.NoError(t, d.SetMaterialFields(NewFields(6, 1, 1, 1, 1)))
	assert.NoError(t, d.FinalizeMaterial())
	assert.NoError(t, d.Advance(0, 1e-4))

	assert.NoError(t, d.ResetToCheckpoint())
	first := NewParticleState(6)
	assert.NoError(t, d.Export(first))

	assert.NoError(t, d.ResetToCheckpoint())
	second := NewParticleState(6)
	assert.NoError(t, d.Export(second))

	assert.Equal(t, first.Pos, second.Pos)
	assert.Equal(t, first.Cov, second.Cov)
	assert.Equal(t, first.Rot, second.Rot)
}

func TestDriverScopeDiscipline(t *testing.T) {
	d, _, _ := testDriver(t, 2)

	scope, err := d.Record()
	assert.NoError(t, err)
	assert.Panics(t, func() { d.Record() })

	assert.NoError(t, scope.Suspend())
	assert.NoError(t, scope.Suspend()) // idempotent
	assert.NoError(t, scope.Reopen())
	assert.NoError(t, scope.Close())
	assert.NoError(t, scope.Close()) // idempotent

	// Released: a new scope may open.
	scope2, err := d.Record()
	assert.NoError(t, err)
	assert.NoError(t, scope2.Close())
}

func TestDriverScopeCloseWhileSuspended(t *testing.T) {
	d, _, _ := testDriver(t, 2)
	scope, err := d.Record()
	assert.NoError(t, err)
	assert.NoError(t, scope.Suspend())
	assert.NoError(t, scope.Close())

	_, err = d.Record()
	assert.NoError(t, err)
}

func TestDriverBackwardSeedZeroForStaticEngine(t *testing.T) {
	d, _, _ := testDriver(t, 3)
	assert.NoError(t, d.SetMaterialFields(NewFields(3, 1, 1, 1, 1)))
	assert.NoError(t, d.FinalizeMaterial())
	assert.NoError(t, d.Advance(0, 1e-4))

	seed, err := d.BackwardSeed()
	assert.NoError(t, err)
	assert.Equal(t, 0.0, seed)
}

func TestFieldsInitialization(t *testing.T) {
	f := NewFields(5, 2e6, 1e4, 2e4, 1.5)
	assert.Equal(t, 5, f.Len())
	assert.Equal(t, float32(2e6), f.Values(ElasticModulus)[4])
	assert.Equal(t, float32(1e4), f.Values(ShearModulus)[0])
	assert.Equal(t, float32(2e4), f.Values(BulkModulus)[2])
	assert.Equal(t, float32(1.5), f.Values(Viscosity)[1])
	assert.Equal(t, float32(0), f.Grad(ElasticModulus)[0])
}

func TestContextClose(t *testing.T) {
	ctx, err := NewContext("cpu", 8, 2.0)
	assert.NoError(t, err)
	assert.NoError(t, ctx.Close())
	assert.Error(t, ctx.Close())

	engine := NewStaticEngine(ctx)
	err = engine.Load(make([]geom.Vec, 1), make([]float32, 1),
		make([]geom.Sym, 1), 8, 2.0)
	assert.Error(t, err)
}

func TestContextValidation(t *testing.T) {
	_, err := NewContext("cpu", 0, 2.0)
	assert.Error(t, err)
	_, err = NewContext("cpu", 8, -1)
	assert.Error(t, err)
}
