package robot

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// bodySphere is one sphere of the arm's collision model, attached to a link
// frame from LinkPoses.
type bodySphere struct {
	link   int
	center r3.Vec
	radius float64
}

// bodySpheres approximates the arm body from base to flange.
var bodySpheres = []bodySphere{
	{0, r3.Vec{Z: 0.05}, 0.09},
	{0, r3.Vec{Z: 0.12}, 0.09},
	{1, r3.Vec{}, 0.08},
	{1, r3.Vec{Z: -0.1}, 0.07},
	{2, r3.Vec{}, 0.08},
	{2, r3.Vec{Y: -0.12}, 0.07},
	{3, r3.Vec{}, 0.075},
	{3, r3.Vec{X: 0.08, Y: 0.06}, 0.06},
	{4, r3.Vec{}, 0.065},
	{4, r3.Vec{X: -0.08, Y: 0.095}, 0.065},
	{5, r3.Vec{Z: -0.26}, 0.055},
	{5, r3.Vec{Z: -0.17}, 0.055},
	{5, r3.Vec{Z: -0.08}, 0.06},
	{6, r3.Vec{}, 0.05},
	{6, r3.Vec{X: 0.06}, 0.045},
	{7, r3.Vec{}, 0.05},
	{7, r3.Vec{Z: 0.055}, 0.05},
	{8, r3.Vec{}, 0.05},
}

// gripperSphere is one sphere of the gripper's collision model, expressed in
// the grasp frame. spread is the fraction of the prismatic finger value added
// to the center along ±y, so finger spheres track the finger opening.
type gripperSphere struct {
	center r3.Vec
	radius float64
	spread float64
}

var gripperSpheres = []gripperSphere{
	{r3.Vec{Z: -0.105}, 0.055, 0},
	{r3.Vec{Z: -0.075}, 0.05, 0},
	{r3.Vec{X: 0.02, Z: -0.06}, 0.04, 0},
	{r3.Vec{X: -0.02, Z: -0.06}, 0.04, 0},
	{r3.Vec{Z: -0.035}, 0.015, 1},
	{r3.Vec{Z: -0.015}, 0.012, 1},
	{r3.Vec{}, 0.01, 1},
	{r3.Vec{Z: -0.035}, 0.015, -1},
	{r3.Vec{Z: -0.015}, 0.012, -1},
	{r3.Vec{}, 0.01, -1},
}

// graspFrom composes the grasp frame from a flange pose.
func graspFrom(flange Pose) Pose {
	return flange.compose(dhPose(dhRow{d: graspDepth}, handTwist))
}

// PointSampler draws surface points from the arm's collision spheres. The
// sample topology (how many points each sphere gets and the unit direction of
// each point on its sphere) is fixed at construction, so sampling the same
// configuration always yields the same points; only the poses vary. Point
// budgets are split across spheres in proportion to surface area.
type PointSampler struct {
	numRobot  int
	numTarget int

	bodyDirs   [][]r3.Vec
	gripDirs   [][]r3.Vec
	targetDirs [][]r3.Vec
}

// NewPointSampler builds a sampler producing numRobotPoints per full-arm
// sample and numTargetPoints per gripper sample. The seed fixes the cached
// sample topology; two samplers built with the same seed and budgets are
// interchangeable.
func NewPointSampler(numRobotPoints, numTargetPoints int, seed int64) *PointSampler {
	rng := rand.New(rand.NewSource(seed))
	s := &PointSampler{numRobot: numRobotPoints, numTarget: numTargetPoints}

	areas := make([]float64, 0, len(bodySpheres)+len(gripperSpheres))
	for _, b := range bodySpheres {
		areas = append(areas, sphereArea(b.radius))
	}
	for _, g := range gripperSpheres {
		areas = append(areas, sphereArea(g.radius))
	}

	counts := splitProportionally(areas, numRobotPoints)
	s.bodyDirs = make([][]r3.Vec, len(bodySpheres))
	for i := range bodySpheres {
		s.bodyDirs[i] = unitDirections(rng, counts[i])
	}
	s.gripDirs = make([][]r3.Vec, len(gripperSpheres))
	for i := range gripperSpheres {
		s.gripDirs[i] = unitDirections(rng, counts[len(bodySpheres)+i])
	}

	targetCounts := splitProportionally(areas[len(bodySpheres):], numTargetPoints)
	s.targetDirs = make([][]r3.Vec, len(gripperSpheres))
	for i := range gripperSpheres {
		s.targetDirs[i] = unitDirections(rng, targetCounts[i])
	}
	return s
}

// SampleRobot returns exactly the robot point budget sampled over the whole
// arm, gripper included, posed at configuration q with the given prismatic
// finger value. q is used as given; callers decide whether it is noised.
func (s *PointSampler) SampleRobot(q Configuration, prismatic float64) []r3.Vec {
	poses := LinkPoses(q)
	grasp := graspFrom(poses[NumLinks-1])

	pts := make([]r3.Vec, 0, s.numRobot)
	for i, b := range bodySpheres {
		pose := poses[b.link]
		for _, d := range s.bodyDirs[i] {
			pts = append(pts, pose.Transform(r3.Add(b.center, r3.Scale(b.radius, d))))
		}
	}
	for i, g := range gripperSpheres {
		c := g.center
		c.Y += g.spread * prismatic
		for _, d := range s.gripDirs[i] {
			pts = append(pts, grasp.Transform(r3.Add(c, r3.Scale(g.radius, d))))
		}
	}
	return pts
}

// SampleGripper returns exactly the target point budget sampled over the
// gripper geometry placed at the given grasp pose.
func (s *PointSampler) SampleGripper(pose Pose, prismatic float64) []r3.Vec {
	pts := make([]r3.Vec, 0, s.numTarget)
	for i, g := range gripperSpheres {
		c := g.center
		c.Y += g.spread * prismatic
		for _, d := range s.targetDirs[i] {
			pts = append(pts, pose.Transform(r3.Add(c, r3.Scale(g.radius, d))))
		}
	}
	return pts
}

func sphereArea(r float64) float64 {
	return 4 * math.Pi * r * r
}

// unitDirections draws n uniform directions on the unit sphere.
func unitDirections(rng *rand.Rand, n int) []r3.Vec {
	dirs := make([]r3.Vec, n)
	for i := range dirs {
		for {
			v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
			if norm := r3.Norm(v); norm > 1e-12 {
				dirs[i] = r3.Scale(1/norm, v)
				break
			}
		}
	}
	return dirs
}

// splitProportionally divides n into len(weights) counts proportional to the
// weights, summing exactly to n. Whole shares are assigned first and the
// leftovers go to the largest fractional remainders.
func splitProportionally(weights []float64, n int) []int {
	counts := make([]int, len(weights))
	if n <= 0 || len(weights) == 0 {
		return counts
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		counts[0] = n
		return counts
	}

	type remainder struct {
		idx  int
		frac float64
	}
	rems := make([]remainder, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := float64(n) * w / total
		whole := int(math.Floor(exact))
		counts[i] = whole
		assigned += whole
		rems[i] = remainder{idx: i, frac: exact - float64(whole)}
	}
	sort.Slice(rems, func(a, b int) bool {
		if rems[a].frac != rems[b].frac {
			return rems[a].frac > rems[b].frac
		}
		return rems[a].idx < rems[b].idx
	})
	for i := 0; assigned < n; i++ {
		counts[rems[i%len(rems)].idx]++
		assigned++
	}
	return counts
}
