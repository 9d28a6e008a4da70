package world

// BodyHandle identifies a rigid body inside a physics world.
type BodyHandle uint64

// ColliderHandle identifies a collider inside a physics world.
type ColliderHandle uint64

// Physics is the physics engine as seen by tracked meshes. The engine owns
// the world; meshes only request creation and removal.
type Physics interface {
	// CreateFixedBody creates an immovable rigid body at pose.
	CreateFixedBody(pose Pose) (BodyHandle, error)
	// CreateTrimeshCollider creates a triangle-mesh collider attached to body.
	CreateTrimeshCollider(vertices []float32, indices []uint32, body BodyHandle) (ColliderHandle, error)
	// RemoveCollider removes a collider. The body it was attached to stays.
	RemoveCollider(collider ColliderHandle)
}
