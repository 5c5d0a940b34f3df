package uavobject

const (
	WaypointObject    = "Waypoint"
	PathSegmentObject = "PathSegmentDescriptor"
)

// WaypointData is the vehicle's waypoint object. Position is NED relative to
// the vehicle's home location.
type WaypointData struct {
	Position       [3]float32 `json:"position"`
	Velocity       float32    `json:"velocity"`
	Mode           uint8      `json:"mode"`
	ModeParameters float32    `json:"mode_parameters"`
}

// PathSegmentData is the vehicle's path segment descriptor object.
type PathSegmentData struct {
	SwitchingLocus      [3]float32 `json:"switching_locus"`
	FinalVelocity       float32    `json:"final_velocity"`
	DesiredAcceleration float32    `json:"desired_acceleration"`
	PathCurvature       float32    `json:"path_curvature"`
	NumberOfOrbits      uint8      `json:"number_of_orbits"`
	ArcRank             uint8      `json:"arc_rank"`
}
