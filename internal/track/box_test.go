package track

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Box
		want float64
	}{
		{"identical", NewBox(0, 0, 10, 10), NewBox(0, 0, 10, 10), 1},
		{"disjoint", NewBox(0, 0, 10, 10), NewBox(50, 50, 60, 60), 0},
		{"touching edge", NewBox(0, 0, 10, 10), NewBox(10, 0, 20, 10), 0},
		{"overlap x only", NewBox(0, 0, 10, 10), NewBox(5, 20, 15, 30), 0},
		{"shifted by one", NewBox(0, 0, 10, 10), NewBox(1, 1, 11, 11), 81.0 / 119.0},
		{"half overlap", NewBox(0, 0, 10, 10), NewBox(5, 0, 15, 10), 50.0 / 150.0},
		{"contained", NewBox(0, 0, 10, 10), NewBox(0, 0, 5, 10), 0.5},
		{"both degenerate", NewBox(5, 5, 5, 5), NewBox(5, 5, 5, 5), 0},
		{"degenerate inside", NewBox(0, 0, 10, 10), NewBox(5, 5, 5, 8), 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-12)
		})
	}
}

func TestIoU_Symmetry(t *testing.T) {
	t.Parallel()

	boxes := []Box{
		NewBox(0, 0, 10, 10),
		NewBox(1, 1, 11, 11),
		NewBox(3.5, -2, 7.25, 40),
		NewBox(348, 241, 669, 562),
		NewBox(312, 241, 633, 562),
		NewBox(974, 290, 1359, 675),
		NewBox(2, 2, 2, 9),
	}
	for _, a := range boxes {
		for _, b := range boxes {
			assert.Equal(t, IoU(a, b), IoU(b, a), "IoU(%s,%s)", a, b)
		}
	}
}

func TestIoU_SelfIsOne(t *testing.T) {
	t.Parallel()

	for _, b := range []Box{
		NewBox(0, 0, 10, 10),
		NewBox(0.1, 0.2, 0.3, 0.7),
		NewBox(-100, -50, 1e6, 3),
		NewBox(348, 241, 669, 562),
	} {
		assert.Equal(t, 1.0, IoU(b, b), "IoU(%s,%s)", b, b)
	}
}

func TestIoU_RealisticFaces(t *testing.T) {
	t.Parallel()

	// A face drifting 36px left between frames overlaps enough to continue
	// at 0.3 but not at the original 0.8 threshold.
	a := NewBox(348, 241, 669, 562)
	b := NewBox(312, 241, 633, 562)
	iou := IoU(a, b)
	assert.Greater(t, iou, 0.3)
	assert.Less(t, iou, 0.9)

	c := NewBox(974, 290, 1359, 675)
	assert.Equal(t, 0.0, IoU(b, c))
}

func TestBoxValidate(t *testing.T) {
	t.Parallel()

	valid := []Box{
		NewBox(0, 0, 10, 10),
		NewBox(5, 5, 5, 5), // degenerate but well-formed
		NewBox(-10, -10, -1, -1),
	}
	for _, b := range valid {
		assert.NoError(t, b.Validate(), "box %s", b)
	}

	invalid := []Box{
		NewBox(10, 0, 0, 10),
		NewBox(0, 10, 10, 0),
		NewBox(math.NaN(), 0, 10, 10),
		NewBox(0, 0, math.Inf(1), 10),
		NewBox(0, math.Inf(-1), 10, 10),
	}
	for _, b := range invalid {
		err := b.Validate()
		require.Error(t, err, "box %s", b)
		assert.True(t, errors.Is(err, ErrMalformedDetection))
	}
}

func TestBoxGeometry(t *testing.T) {
	t.Parallel()

	b := NewBox(2, 4, 12, 24)
	assert.Equal(t, 10.0, b.Width())
	assert.Equal(t, 20.0, b.Height())
	assert.Equal(t, 200.0, b.Area())
	x, y := b.Center()
	assert.Equal(t, 7.0, x)
	assert.Equal(t, 14.0, y)
	assert.Equal(t, [4]float64{2, 4, 12, 24}, b.Coords())
	assert.Equal(t, "(2,4,12,24)", b.String())
}
