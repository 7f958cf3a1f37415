package rigid

import (
	"fmt"
	"math"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

const (
	hinge2AnchorPoint = jointCommonFields + iota
	hinge2Axis1
	hinge2Axis2
	hinge2DesiredAngularVelocity1
	hinge2DesiredAngularVelocity2
	hinge2MaxAngle1
	hinge2MinAngle1
	hinge2MaxTorque1
	hinge2MaxTorque2
	hinge2StopBounce1
	hinge2StopConstantForceMix1
	hinge2StopErrorCorrection1
	hinge2SuspensionErrorCorrection
	hinge2SuspensionForce
	hinge2Body1AnchorPoint
	hinge2Body1Axis
	hinge2Body2AnchorPoint
	hinge2Body2Axis
	hinge2Hinge1Angle
	hinge2Hinge1AngleRate
	hinge2Hinge2Angle
	hinge2Hinge2AngleRate
)

var hinge2Table = jointTable("DoubleAxisHingeJoint",
	scene.Field{Index: hinge2AnchorPoint, Name: "anchorPoint", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: hinge2Axis1, Name: "axis1", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: hinge2Axis2, Name: "axis2", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: hinge2DesiredAngularVelocity1, Name: "desiredAngularVelocity1", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2DesiredAngularVelocity2, Name: "desiredAngularVelocity2", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2MaxAngle1, Name: "maxAngle1", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2MinAngle1, Name: "minAngle1", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2MaxTorque1, Name: "maxTorque1", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2MaxTorque2, Name: "maxTorque2", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2StopBounce1, Name: "stopBounce1", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2StopConstantForceMix1, Name: "stopConstantForceMix1", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2StopErrorCorrection1, Name: "stopErrorCorrection1", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2SuspensionErrorCorrection, Name: "suspensionErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2SuspensionForce, Name: "suspensionForce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2Body1AnchorPoint, Name: "body1AnchorPoint", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: hinge2Body1Axis, Name: "body1Axis", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: hinge2Body2AnchorPoint, Name: "body2AnchorPoint", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: hinge2Body2Axis, Name: "body2Axis", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: hinge2Hinge1Angle, Name: "hinge1Angle", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2Hinge1AngleRate, Name: "hinge1AngleRate", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2Hinge2Angle, Name: "hinge2Angle", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: hinge2Hinge2AngleRate, Name: "hinge2AngleRate", Access: scene.Output, Type: scene.TypeSFFloat},
)

// DoubleAxisHingeJoint joins two bodies at an anchor with two hinge axes:
// axis 1 turns with body 1, axis 2 with body 2. Each axis can be driven
// towards a desired angular velocity with a bounded torque.
type DoubleAxisHingeJoint struct {
	jointBase
	anchor         scene.SFVec3f
	axis           [2]scene.SFVec3f
	desiredVel     [2]scene.SFFloat
	maxTorque      [2]scene.SFFloat
	maxAngle1      scene.SFFloat
	minAngle1      scene.SFFloat
	stopBounce1    scene.SFFloat
	stopCFM1       scene.SFFloat
	stopERP1       scene.SFFloat
	suspensionERP  scene.SFFloat
	suspensionCFM  scene.SFFloat
	body1Anchor    scene.SFVec3f
	body1Axis      scene.SFVec3f
	body2Anchor    scene.SFVec3f
	body2Axis      scene.SFVec3f
	hingeAngle     [2]scene.SFFloat
	hingeAngleRate [2]scene.SFFloat
}

func NewDoubleAxisHingeJoint() *DoubleAxisHingeJoint {
	n := &DoubleAxisHingeJoint{
		maxAngle1:     math.Pi,
		minAngle1:     -math.Pi,
		stopCFM1:      0.001,
		stopERP1:      0.8,
		suspensionERP: 0.8,
	}
	n.init(hinge2Table, physics.JointDoubleAxisHinge, n)
	return n
}

func (n *DoubleAxisHingeJoint) FieldValue(i int) (scene.Value, error) {
	switch i {
	case hinge2AnchorPoint:
		return n.anchor, nil
	case hinge2Axis1:
		return n.axis[0], nil
	case hinge2Axis2:
		return n.axis[1], nil
	case hinge2DesiredAngularVelocity1:
		return n.desiredVel[0], nil
	case hinge2DesiredAngularVelocity2:
		return n.desiredVel[1], nil
	case hinge2MaxAngle1:
		return n.maxAngle1, nil
	case hinge2MinAngle1:
		return n.minAngle1, nil
	case hinge2MaxTorque1:
		return n.maxTorque[0], nil
	case hinge2MaxTorque2:
		return n.maxTorque[1], nil
	case hinge2StopBounce1:
		return n.stopBounce1, nil
	case hinge2StopConstantForceMix1:
		return n.stopCFM1, nil
	case hinge2StopErrorCorrection1:
		return n.stopERP1, nil
	case hinge2SuspensionErrorCorrection:
		return n.suspensionERP, nil
	case hinge2SuspensionForce:
		return n.suspensionCFM, nil
	case hinge2Body1AnchorPoint:
		return n.body1Anchor, nil
	case hinge2Body1Axis:
		return n.body1Axis, nil
	case hinge2Body2AnchorPoint:
		return n.body2Anchor, nil
	case hinge2Body2Axis:
		return n.body2Axis, nil
	case hinge2Hinge1Angle:
		return n.hingeAngle[0], nil
	case hinge2Hinge1AngleRate:
		return n.hingeAngleRate[0], nil
	case hinge2Hinge2Angle:
		return n.hingeAngle[1], nil
	case hinge2Hinge2AngleRate:
		return n.hingeAngleRate[1], nil
	}
	return n.commonValue(i)
}

func (n *DoubleAxisHingeJoint) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	if i < jointCommonFields {
		return n.setCommon(i, v)
	}
	switch i {
	case hinge2AnchorPoint:
		n.anchor = v.(scene.SFVec3f)
	case hinge2Axis1, hinge2Axis2:
		n.axis[i-hinge2Axis1] = v.(scene.SFVec3f)
	case hinge2DesiredAngularVelocity1, hinge2DesiredAngularVelocity2:
		n.desiredVel[i-hinge2DesiredAngularVelocity1] = v.(scene.SFFloat)
	case hinge2MaxTorque1, hinge2MaxTorque2:
		n.maxTorque[i-hinge2MaxTorque1] = v.(scene.SFFloat)
	case hinge2MaxAngle1, hinge2MinAngle1:
		a := v.(scene.SFFloat)
		if a < -math.Pi || a > math.Pi {
			return n.Invalid(i, fmt.Sprintf("angle must be in [-pi,pi], got %v", a))
		}
		if i == hinge2MaxAngle1 {
			n.maxAngle1 = a
		} else {
			n.minAngle1 = a
		}
	case hinge2StopBounce1, hinge2StopErrorCorrection1, hinge2SuspensionErrorCorrection:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("must be in [0,1], got %v", f))
		}
		switch i {
		case hinge2StopBounce1:
			n.stopBounce1 = f
		case hinge2StopErrorCorrection1:
			n.stopERP1 = f
		default:
			n.suspensionERP = f
		}
	case hinge2StopConstantForceMix1, hinge2SuspensionForce:
		f := v.(scene.SFFloat)
		if f < 0 {
			return n.Invalid(i, fmt.Sprintf("must not be negative, got %v", f))
		}
		if i == hinge2StopConstantForceMix1 {
			n.stopCFM1 = f
		} else {
			n.suspensionCFM = f
		}
	}
	if n.joint != nil {
		n.pushField(n.joint, i)
	}
	n.Notify(i)
	return nil
}

func (n *DoubleAxisHingeJoint) push(j physics.Joint) {
	for i := hinge2AnchorPoint; i <= hinge2SuspensionForce; i++ {
		n.pushField(j, i)
	}
}

func (n *DoubleAxisHingeJoint) pushField(j physics.Joint, i int) {
	switch i {
	case hinge2AnchorPoint:
		j.SetAnchor(vec(n.anchor))
	case hinge2Axis1:
		j.SetAxis(1, vec(n.axis[0]))
	case hinge2Axis2:
		j.SetAxis(2, vec(n.axis[1]))
	case hinge2DesiredAngularVelocity1:
		j.SetParam(physics.ParamVelocity, float64(n.desiredVel[0]))
	case hinge2DesiredAngularVelocity2:
		j.SetParam(physics.ParamVelocity2, float64(n.desiredVel[1]))
	case hinge2MaxTorque1:
		j.SetParam(physics.ParamMaxForce, float64(n.maxTorque[0]))
	case hinge2MaxTorque2:
		j.SetParam(physics.ParamMaxForce2, float64(n.maxTorque[1]))
	case hinge2MaxAngle1:
		j.SetParam(physics.ParamHiStop, float64(n.maxAngle1))
	case hinge2MinAngle1:
		j.SetParam(physics.ParamLoStop, float64(n.minAngle1))
	case hinge2StopBounce1:
		j.SetParam(physics.ParamBounce, float64(n.stopBounce1))
	case hinge2StopConstantForceMix1:
		j.SetParam(physics.ParamStopCFM, float64(n.stopCFM1))
	case hinge2StopErrorCorrection1:
		j.SetParam(physics.ParamStopERP, float64(n.stopERP1))
	case hinge2SuspensionErrorCorrection:
		j.SetParam(physics.ParamSuspensionERP, float64(n.suspensionERP))
	case hinge2SuspensionForce:
		j.SetParam(physics.ParamSuspensionCFM, float64(n.suspensionCFM))
	}
}

func (n *DoubleAxisHingeJoint) pull(j physics.Joint, i int) bool {
	switch i {
	case hinge2Body1AnchorPoint:
		n.body1Anchor = sfvec(j.Anchor(1))
	case hinge2Body1Axis:
		n.body1Axis = sfvec(j.Axis(1))
	case hinge2Body2AnchorPoint:
		n.body2Anchor = sfvec(j.Anchor(2))
	case hinge2Body2Axis:
		n.body2Axis = sfvec(j.Axis(2))
	case hinge2Hinge1Angle:
		n.hingeAngle[0] = scene.SFFloat(j.AxisAngle(1))
	case hinge2Hinge1AngleRate:
		n.hingeAngleRate[0] = scene.SFFloat(j.AxisAngleRate(1))
	case hinge2Hinge2Angle:
		n.hingeAngle[1] = scene.SFFloat(j.AxisAngle(2))
	case hinge2Hinge2AngleRate:
		n.hingeAngleRate[1] = scene.SFFloat(j.AxisAngleRate(2))
	default:
		return false
	}
	return true
}
