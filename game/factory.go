package game

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/rigidsync/config"
	"github.com/pthm-cable/rigidsync/rigid"
	"github.com/pthm-cable/rigidsync/scene"
)

// demoScene holds the nodes of the built-in scene: a crate dropped onto a
// static slab, watched by a collision sensor, and a pendulum bob hanging
// from a world-anchored ball joint.
type demoScene struct {
	world  *rigid.RigidBodyCollection
	crate  *rigid.RigidBody
	bob    *rigid.RigidBody
	joint  *rigid.BallJoint
	sensor *rigid.CollisionSensor

	anchor   scene.SFVec3f
	halfSize float32
}

// field is one name/value pair assigned during setup.
type field struct {
	name  string
	value scene.Value
}

// factory creates nodes and collects the first setup failure per node.
type factory struct {
	sc   *scene.Scene
	errs []error
}

// node creates typeName, assigns fields in order and finishes setup.
// Failures are recorded and a nil node is returned.
func (f *factory) node(typeName string, fields ...field) scene.Node {
	n, err := f.sc.CreateNode(typeName)
	if err != nil {
		f.errs = append(f.errs, err)
		return nil
	}
	for _, fv := range fields {
		if err := scene.SetByName(n, fv.name, fv.value); err != nil {
			f.errs = append(f.errs, fmt.Errorf("%s.%s: %w", typeName, fv.name, err))
			return nil
		}
	}
	if err := f.sc.FinishSetup(n); err != nil {
		f.errs = append(f.errs, err)
		return nil
	}
	return n
}

// box creates a CollidableShape around a Box geometry.
func (f *factory) box(size scene.SFVec3f, fields ...field) scene.Node {
	geom := f.node("Box", field{"size", size})
	if geom == nil {
		return nil
	}
	shape := f.node("Shape", field{"geometry", scene.NodeValue(geom)})
	if shape == nil {
		return nil
	}
	return f.node("CollidableShape", append([]field{{"shape", scene.NodeValue(shape)}}, fields...)...)
}

func refs(nodes ...scene.Node) scene.MFNode {
	out := make(scene.MFNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, scene.Direct(n))
	}
	return out
}

func vec3(v [3]float64) scene.SFVec3f {
	return scene.SFVec3f{float32(v[0]), float32(v[1]), float32(v[2])}
}

// buildScene creates the demo scene in dependency order: collidables, the
// collision collection, bodies, the joint, then the collection owning the
// world and finally the sensor.
func buildScene(sc *scene.Scene, cfg *config.Config) (*demoScene, error) {
	f := &factory{sc: sc}
	size := float32(cfg.Demo.BoxSize)
	length := float32(cfg.Demo.PendulumLength)
	anchor := scene.SFVec3f{3, length + 1, 0}

	crateShape := f.box(scene.SFVec3f{size, size, size})
	ground := f.box(scene.SFVec3f{20, 1, 20}, field{"translation", scene.SFVec3f{0, -0.5, 0}})
	collider := f.node("CollisionCollection",
		field{"collidables", refs(crateShape, ground)},
		field{"appliedParameters", scene.MFString{"BOUNCE"}},
		field{"bounce", scene.SFFloat(0.1)},
	)

	crate := f.node("RigidBody",
		field{"geometry", refs(crateShape)},
		field{"position", scene.SFVec3f{0, float32(cfg.Demo.DropHeight), 0}},
		field{"mass", scene.SFFloat(1)},
	)
	bob := f.node("RigidBody",
		field{"position", scene.SFVec3f{anchor[0] + length, anchor[1], 0}},
		field{"mass", scene.SFFloat(0.5)},
	)
	joint := f.node("BallJoint",
		field{"body1", scene.NodeValue(bob)},
		field{"anchorPoint", anchor},
		field{"forceOutput", scene.MFString{"body1AnchorPoint"}},
	)

	p := cfg.Physics
	world := f.node("RigidBodyCollection",
		field{"gravity", vec3(p.Gravity)},
		field{"iterations", scene.SFInt32(p.Iterations)},
		field{"preferAccuracy", scene.SFBool(p.PreferAccuracy)},
		field{"errorCorrection", scene.SFFloat(p.ErrorCorrection)},
		field{"constantForceMix", scene.SFFloat(p.ConstantForceMix)},
		field{"maxCorrectionSpeed", scene.SFFloat(p.MaxCorrectionSpeed)},
		field{"contactSurfaceThickness", scene.SFFloat(p.ContactSurfaceThickness)},
		field{"collider", scene.NodeValue(collider)},
		field{"bodies", refs(crate, bob)},
		field{"joints", refs(joint)},
	)
	sensor := f.node("CollisionSensor", field{"collider", scene.NodeValue(collider)})

	if err := errors.Join(f.errs...); err != nil {
		return nil, err
	}
	return &demoScene{
		world:    world.(*rigid.RigidBodyCollection),
		crate:    crate.(*rigid.RigidBody),
		bob:      bob.(*rigid.RigidBody),
		joint:    joint.(*rigid.BallJoint),
		sensor:   sensor.(*rigid.CollisionSensor),
		anchor:   anchor,
		halfSize: size / 2,
	}, nil
}
