package operator_test

import (
	"context"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/entity"
)

// Two time sets over three nodes; the last set has norms 5, 1 and sqrt(3).
var beamResults = pfapi.ResultFile{
	Unit:       "m",
	Location:   pfapi.LocationNodal,
	Components: 3,
	Sets: []pfapi.ResultSet{
		{Time: 0.1, IDs: []int64{1, 2, 3}, Data: []float64{1, 0, 0, 0, 2, 0, 0, 0, 3}},
		{Time: 0.2, IDs: []int64{1, 2, 3}, Data: []float64{3, 4, 0, 0, 0, 1, 1, 1, 1}},
	},
}

const beamPath = "/results/beam.rst"

func openBeam(t *testing.T, kind string) (*engine.Engine, *enginetest.Backend, *entity.DataSources) {
	t.Helper()
	e, b := enginetest.Open(t, kind, enginetest.Options{})
	enginetest.PutResultFile(t, b, beamPath, beamResults)
	ds, err := entity.NewDataSources(context.Background(), e, beamPath)
	qt.Assert(t, err, qt.IsNil)
	return e, b, ds
}

func newField(t *testing.T, e *engine.Engine, ids []int64, data []float64) *entity.Field {
	t.Helper()
	f, err := entity.FieldFrom(context.Background(), e, entity.FieldData{
		Dimensionality: pfapi.VectorDim(3),
		Location:       pfapi.LocationNodal,
		Unit:           "m",
		IDs:            ids,
		Data:           data,
	})
	qt.Assert(t, err, qt.IsNil)
	return f
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
