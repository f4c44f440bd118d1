// Package dtw implements the constrained dynamic-time-warping aligner
// (spec §4.4, component C4). The Sakoe-Chiba banding, tie-break order, and
// scratch-matrix reuse are grounded on the original DTWComparator.cpp.
package dtw

import (
	"math"

	"github.com/klauspost/cpuid/v2"
)

// direction tags the path-matrix cell: diagonal (match), up (insertion),
// or left (deletion). Ties are broken diagonal > up > left.
type direction uint8

const (
	dirNone direction = iota
	dirDiagonal
	dirUp
	dirLeft
)

// Config holds the aligner's tunables (spec §6).
type Config struct {
	WindowRatio       float64 // Sakoe-Chiba band width as fraction of max(L1,L2)
	UseWindow         bool
	DistanceWeight    float64
	NormalizeDistance bool
	EnableSIMD        bool
}

// Step is one point on the reconstructed alignment path, 0-based indices
// into A and B.
type Step struct {
	I, J int
}

// Aligner computes DTW distance between two K-dimensional feature
// sequences, reusing its cost/path scratch matrices across calls to avoid
// unbounded per-call allocation (spec §9's "DTW cost matrix allocation...
// may be amortized by caching a scratch buffer").
type Aligner struct {
	cfg Config

	costMatrix [][]float64
	pathMatrix [][]direction

	simdAvailable bool
}

// New creates an Aligner. SIMD gating mirrors the original's AVX2 path:
// EnableSIMD is honored only when the running CPU actually supports AVX2,
// otherwise Compare silently falls back to the scalar distance.
func New(cfg Config) *Aligner {
	cfg.WindowRatio = clampRatio(cfg.WindowRatio)
	return &Aligner{
		cfg:           cfg,
		simdAvailable: cpuid.CPU.Supports(cpuid.AVX2),
	}
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// SetWindowRatio clamps r into [0,1] and updates the band width.
func (a *Aligner) SetWindowRatio(r float64) {
	a.cfg.WindowRatio = clampRatio(r)
}

func (a *Aligner) ensureMatrices(l1, l2 int) {
	rows := l1 + 1
	cols := l2 + 1

	if len(a.costMatrix) < rows {
		a.costMatrix = make([][]float64, rows)
		a.pathMatrix = make([][]direction, rows)
	}
	for i := 0; i < rows; i++ {
		if len(a.costMatrix[i]) < cols {
			a.costMatrix[i] = make([]float64, cols)
			a.pathMatrix[i] = make([]direction, cols)
		}
	}
}

// Compare returns the (optionally normalized) DTW distance between A and
// B. An empty sequence yields +Inf (spec §4.4; the aligner never returns
// an error value).
func (a *Aligner) Compare(seqA, seqB [][]float32) float64 {
	dist, _ := a.compare(seqA, seqB, false)
	return dist
}

// CompareWithPath additionally reconstructs the alignment path from
// (L1,L2) back to (0,0).
func (a *Aligner) CompareWithPath(seqA, seqB [][]float32) (float64, []Step) {
	return a.compare(seqA, seqB, true)
}

func (a *Aligner) compare(seqA, seqB [][]float32, wantPath bool) (float64, []Step) {
	l1, l2 := len(seqA), len(seqB)
	if l1 == 0 || l2 == 0 {
		return math.Inf(1), nil
	}

	a.ensureMatrices(l1, l2)

	window := math.Inf(1)
	if a.cfg.UseWindow {
		window = float64(max(l1, l2)) * a.cfg.WindowRatio
	}

	for i := 0; i <= l1; i++ {
		for j := 0; j <= l2; j++ {
			a.costMatrix[i][j] = math.Inf(1)
			a.pathMatrix[i][j] = dirNone
		}
	}
	a.costMatrix[0][0] = 0

	for i := 1; i <= l1; i++ {
		lo := 1
		hi := l2
		if a.cfg.UseWindow {
			lo = max(1, int(math.Ceil(float64(i)-window)))
			hi = min(l2, int(float64(i)+window))
		}
		for j := lo; j <= hi; j++ {
			local := a.cfg.DistanceWeight * a.euclid(seqA[i-1], seqB[j-1])

			diag := a.costMatrix[i-1][j-1]
			up := a.costMatrix[i-1][j]
			left := a.costMatrix[i][j-1]

			best := diag
			dir := dirDiagonal
			if up < best {
				best = up
				dir = dirUp
			}
			if left < best {
				best = left
				dir = dirLeft
			}

			a.costMatrix[i][j] = local + best
			if wantPath {
				a.pathMatrix[i][j] = dir
			}
		}
	}

	distance := a.costMatrix[l1][l2]
	if a.cfg.NormalizeDistance {
		distance /= float64(l1 + l2)
	}

	var path []Step
	if wantPath {
		path = a.reconstructPath(l1, l2)
	}

	return distance, path
}

// reconstructPath walks from (l1,l2) back to (1,1) following stored
// directions, converts to 0-based indices, and reverses so the path runs
// start-to-end.
func (a *Aligner) reconstructPath(l1, l2 int) []Step {
	path := make([]Step, 0, l1+l2)
	i, j := l1, l2
	for i > 0 && j > 0 {
		path = append(path, Step{I: i - 1, J: j - 1})
		switch a.pathMatrix[i][j] {
		case dirUp:
			i--
		case dirLeft:
			j--
		default:
			i--
			j--
		}
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// euclid computes the Euclidean distance between two feature vectors,
// picking the 4-lane unrolled accumulator when the CPU supports AVX2 and
// the caller opted in via EnableSIMD, and the single-accumulator scalar
// loop otherwise. Go has no portable intrinsic for a hand-written AVX2
// path, so the unrolled form is the idiomatic stand-in: four independent
// partial sums give the compiler the same instruction-level parallelism
// an actual AVX2 lowering would exploit, at the cost of summing in a
// different grouping than the scalar loop (both converge to the same
// distance within floating-point tolerance).
func (a *Aligner) euclid(x, y []float32) float64 {
	if a.cfg.EnableSIMD && a.simdAvailable {
		return euclidUnrolled4(x, y)
	}
	return euclidScalar(x, y)
}

func euclidScalar(x, y []float32) float64 {
	n := min(len(x), len(y))
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(x[i]) - float64(y[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func euclidUnrolled4(x, y []float32) float64 {
	n := min(len(x), len(y))
	var s0, s1, s2, s3 float64

	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := float64(x[i]) - float64(y[i])
		d1 := float64(x[i+1]) - float64(y[i+1])
		d2 := float64(x[i+2]) - float64(y[i+2])
		d3 := float64(x[i+3]) - float64(y[i+3])
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}

	sum := s0 + s1 + s2 + s3
	for ; i < n; i++ {
		d := float64(x[i]) - float64(y[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
