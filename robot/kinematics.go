package robot

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NumLinks is the number of frames reported by LinkPoses: the base frame,
// one frame per joint, and the flange frame the gripper mounts to.
const NumLinks = NumJoints + 2

// graspDepth is the distance from the flange to the grasp point between the
// fingertips, along the flange axis.
const graspDepth = 0.1034

// handTwist is the mounting rotation of the gripper about the flange axis.
const handTwist = -math.Pi / 4

// dhRow holds one row of the modified Denavit-Hartenberg table: the link
// offset a and twist alpha of the previous frame, and the joint offset d.
type dhRow struct {
	a, d, alpha float64
}

// dhTable describes the arm's kinematic chain, one row per joint, with the
// fixed flange transform appended as the final row.
var dhTable = [NumJoints + 1]dhRow{
	{0, 0.333, 0},
	{0, 0, -math.Pi / 2},
	{0, 0.316, math.Pi / 2},
	{0.0825, 0, math.Pi / 2},
	{-0.0825, 0.384, -math.Pi / 2},
	{0, 0, math.Pi / 2},
	{0.088, 0, math.Pi / 2},
	{0, 0.107, 0},
}

// Pose is a rigid transform: a rotation (row-major matrix) and a translation.
type Pose struct {
	Position r3.Vec
	Rotation [3][3]float64
}

// Transform maps v from the pose's local frame into the world frame.
func (p Pose) Transform(v r3.Vec) r3.Vec {
	r := p.Rotation
	return r3.Vec{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z + p.Position.X,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z + p.Position.Y,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z + p.Position.Z,
	}
}

// compose returns the pose obtained by applying q in p's frame.
func (p Pose) compose(q Pose) Pose {
	var out Pose
	for i := range 3 {
		for j := range 3 {
			out.Rotation[i][j] = p.Rotation[i][0]*q.Rotation[0][j] +
				p.Rotation[i][1]*q.Rotation[1][j] +
				p.Rotation[i][2]*q.Rotation[2][j]
		}
	}
	out.Position = p.Transform(q.Position)
	return out
}

// identityPose returns the world origin pose.
func identityPose() Pose {
	return Pose{Rotation: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// dhPose builds the transform from a DH row and a joint angle. Modified DH
// convention: rotate by alpha about x, translate a along x, rotate by theta
// about z, translate d along z.
func dhPose(row dhRow, theta float64) Pose {
	ct, st := math.Cos(theta), math.Sin(theta)
	ca, sa := math.Cos(row.alpha), math.Sin(row.alpha)
	return Pose{
		Rotation: [3][3]float64{
			{ct, -st, 0},
			{st * ca, ct * ca, -sa},
			{st * sa, ct * sa, ca},
		},
		Position: r3.Vec{X: row.a, Y: -row.d * sa, Z: row.d * ca},
	}
}

// LinkPoses runs forward kinematics and returns the world pose of every
// frame in the chain: index 0 is the base, 1..NumJoints follow each joint,
// and NumLinks-1 is the flange.
func LinkPoses(q Configuration) [NumLinks]Pose {
	var poses [NumLinks]Pose
	cur := identityPose()
	poses[0] = cur
	for i := range NumJoints {
		cur = cur.compose(dhPose(dhTable[i], q[i]))
		poses[i+1] = cur
	}
	cur = cur.compose(dhPose(dhTable[NumJoints], 0))
	poses[NumLinks-1] = cur
	return poses
}

// GripperPose returns the grasp-frame pose for q: the point between the
// fingertips, with the gripper's mounting twist applied. Finger spread does
// not move this frame.
func GripperPose(q Configuration) Pose {
	poses := LinkPoses(q)
	return graspFrom(poses[NumLinks-1])
}
