package track

import (
	"sort"

	"github.com/banshee-data/boxtrack/internal/monitoring"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// candidatePair is a detection/object pairing that passed the IoU threshold.
type candidatePair struct {
	det int // index into the frame's accepted detections
	obj int // index into the candidate object slice
	iou float64
}

// greedyAssign resolves pairs one-to-one in descending IoU order. Ties go to
// the lower detection index, then the lower object index (creation order),
// so the result is deterministic.
//
// Taking the globally highest remaining pair first is the same as letting
// every detection claim its best object, awarding contested objects to the
// highest-IoU claimant and letting losers retry without the taken object.
// It is not a globally optimal assignment.
//
// Returns assignments[d] = object index, or -1 for detections that spawn.
func greedyAssign(nDets int, pairs []candidatePair) []int {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].iou != pairs[j].iou {
			return pairs[i].iou > pairs[j].iou
		}
		if pairs[i].det != pairs[j].det {
			return pairs[i].det < pairs[j].det
		}
		return pairs[i].obj < pairs[j].obj
	})

	assignments := unassigned(nDets)
	taken := make(map[int]bool, len(pairs))
	for _, p := range pairs {
		if assignments[p.det] >= 0 || taken[p.obj] {
			continue
		}
		assignments[p.det] = p.obj
		taken[p.obj] = true
	}
	return assignments
}

// simplexTol is the pivot tolerance handed to lp.Simplex. The constraint
// matrix only holds zeros and ones, so the solve is well conditioned.
const simplexTol = 1e-10

// optimalAssign picks the one-to-one subset of pairs with the largest total
// IoU. The frame-local matching is solved as a linear program:
//
//	maximise   sum of iou_p * x_p
//	subject to sum of x_p over the pairs of detection d <= 1, for every d
//	           sum of x_p over the pairs of object o    <= 1, for every o
//	           x_p >= 0
//
// A bipartite matching matrix is totally unimodular, so the vertex returned
// by the simplex method is integral and every x_p is 0 or 1. One slack
// column per constraint turns the inequalities into the equality form
// lp.Simplex takes and provides an all-slack starting basis.
//
// Only detections and objects that appear in some pair get a row. Unlike
// greedyAssign this can trade one strong match for two weaker ones whose
// sum is larger.
func optimalAssign(nDets int, pairs []candidatePair) []int {
	assignments := unassigned(nDets)
	if len(pairs) == 0 {
		return assignments
	}

	detRow := make(map[int]int)
	for _, p := range pairs {
		if _, ok := detRow[p.det]; !ok {
			detRow[p.det] = len(detRow)
		}
	}
	objRow := make(map[int]int)
	for _, p := range pairs {
		if _, ok := objRow[p.obj]; !ok {
			objRow[p.obj] = len(detRow) + len(objRow)
		}
	}

	rows := len(detRow) + len(objRow)
	cols := len(pairs) + rows
	a := mat.NewDense(rows, cols, nil)
	c := make([]float64, cols) // Slack columns cost nothing
	b := make([]float64, rows)
	basis := make([]int, rows)
	for j, p := range pairs {
		a.Set(detRow[p.det], j, 1)
		a.Set(objRow[p.obj], j, 1)
		c[j] = -p.iou // lp.Simplex minimises
	}
	for i := 0; i < rows; i++ {
		slack := len(pairs) + i
		a.Set(i, slack, 1)
		b[i] = 1
		basis[i] = slack
	}

	_, x, err := lp.Simplex(c, a, b, simplexTol, basis)
	if err != nil {
		monitoring.Logf("[track] optimal assignment failed, using greedy: %v", err)
		return greedyAssign(nDets, pairs)
	}
	for j, p := range pairs {
		if x[j] > 0.5 {
			assignments[p.det] = p.obj
		}
	}
	return assignments
}

// unassigned returns n entries of -1.
func unassigned(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	return out
}
