package rigid

import (
	"fmt"
	"math"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

const (
	ballAnchorPoint = jointCommonFields + iota
	ballBody1AnchorPoint
	ballBody2AnchorPoint
)

var ballTable = jointTable("BallJoint",
	scene.Field{Index: ballAnchorPoint, Name: "anchorPoint", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: ballBody1AnchorPoint, Name: "body1AnchorPoint", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: ballBody2AnchorPoint, Name: "body2AnchorPoint", Access: scene.Output, Type: scene.TypeSFVec3f},
)

// BallJoint holds two bodies at a shared anchor point.
type BallJoint struct {
	jointBase
	anchor      scene.SFVec3f
	body1Anchor scene.SFVec3f
	body2Anchor scene.SFVec3f
}

func NewBallJoint() *BallJoint {
	n := &BallJoint{}
	n.init(ballTable, physics.JointBall, n)
	return n
}

func (n *BallJoint) FieldValue(i int) (scene.Value, error) {
	switch i {
	case ballAnchorPoint:
		return n.anchor, nil
	case ballBody1AnchorPoint:
		return n.body1Anchor, nil
	case ballBody2AnchorPoint:
		return n.body2Anchor, nil
	}
	return n.commonValue(i)
}

func (n *BallJoint) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	if i < jointCommonFields {
		return n.setCommon(i, v)
	}
	if i == ballAnchorPoint {
		n.anchor = v.(scene.SFVec3f)
		if n.joint != nil {
			n.joint.SetAnchor(vec(n.anchor))
		}
	}
	n.Notify(i)
	return nil
}

func (n *BallJoint) push(j physics.Joint) { j.SetAnchor(vec(n.anchor)) }

func (n *BallJoint) pull(j physics.Joint, i int) bool {
	switch i {
	case ballBody1AnchorPoint:
		n.body1Anchor = sfvec(j.Anchor(1))
	case ballBody2AnchorPoint:
		n.body2Anchor = sfvec(j.Anchor(2))
	default:
		return false
	}
	return true
}

const (
	hingeAnchorPoint = jointCommonFields + iota
	hingeAxis
	hingeMaxAngle
	hingeMinAngle
	hingeStopBounce
	hingeStopErrorCorrection
	hingeAngle
	hingeAngleRate
	hingeBody1AnchorPoint
	hingeBody2AnchorPoint
)

var hingeTable = jointTable("SingleAxisHingeJoint",
	scene.Field{Index: hingeAnchorPoint, Name: "anchorPoint", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: hingeAxis, Name: "axis", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: hingeMaxAngle, Name: "maxAngle", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hingeMinAngle, Name: "minAngle", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hingeStopBounce, Name: "stopBounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hingeStopErrorCorrection, Name: "stopErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: hingeAngle, Name: "angle", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: hingeAngleRate, Name: "angleRate", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: hingeBody1AnchorPoint, Name: "body1AnchorPoint", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: hingeBody2AnchorPoint, Name: "body2AnchorPoint", Access: scene.Output, Type: scene.TypeSFVec3f},
)

// SingleAxisHingeJoint rotates two bodies about one axis through an anchor.
type SingleAxisHingeJoint struct {
	jointBase
	anchor              scene.SFVec3f
	axis                scene.SFVec3f
	maxAngle            scene.SFFloat
	minAngle            scene.SFFloat
	stopBounce          scene.SFFloat
	stopErrorCorrection scene.SFFloat
	angle               scene.SFFloat
	angleRate           scene.SFFloat
	body1Anchor         scene.SFVec3f
	body2Anchor         scene.SFVec3f
}

func NewSingleAxisHingeJoint() *SingleAxisHingeJoint {
	n := &SingleAxisHingeJoint{
		axis:                scene.SFVec3f{0, 1, 0},
		maxAngle:            math.Pi,
		minAngle:            -math.Pi,
		stopErrorCorrection: 0.8,
	}
	n.init(hingeTable, physics.JointHinge, n)
	return n
}

func (n *SingleAxisHingeJoint) FieldValue(i int) (scene.Value, error) {
	switch i {
	case hingeAnchorPoint:
		return n.anchor, nil
	case hingeAxis:
		return n.axis, nil
	case hingeMaxAngle:
		return n.maxAngle, nil
	case hingeMinAngle:
		return n.minAngle, nil
	case hingeStopBounce:
		return n.stopBounce, nil
	case hingeStopErrorCorrection:
		return n.stopErrorCorrection, nil
	case hingeAngle:
		return n.angle, nil
	case hingeAngleRate:
		return n.angleRate, nil
	case hingeBody1AnchorPoint:
		return n.body1Anchor, nil
	case hingeBody2AnchorPoint:
		return n.body2Anchor, nil
	}
	return n.commonValue(i)
}

func (n *SingleAxisHingeJoint) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	if i < jointCommonFields {
		return n.setCommon(i, v)
	}
	switch i {
	case hingeAnchorPoint:
		n.anchor = v.(scene.SFVec3f)
	case hingeAxis:
		n.axis = v.(scene.SFVec3f)
	case hingeMaxAngle, hingeMinAngle:
		a := v.(scene.SFFloat)
		if a < -math.Pi || a > math.Pi {
			return n.Invalid(i, fmt.Sprintf("angle must be in [-pi,pi], got %v", a))
		}
		if i == hingeMaxAngle {
			n.maxAngle = a
		} else {
			n.minAngle = a
		}
	case hingeStopBounce, hingeStopErrorCorrection:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("must be in [0,1], got %v", f))
		}
		if i == hingeStopBounce {
			n.stopBounce = f
		} else {
			n.stopErrorCorrection = f
		}
	}
	if n.joint != nil {
		n.pushField(n.joint, i)
	}
	n.Notify(i)
	return nil
}

func (n *SingleAxisHingeJoint) push(j physics.Joint) {
	for i := hingeAnchorPoint; i <= hingeStopErrorCorrection; i++ {
		n.pushField(j, i)
	}
}

func (n *SingleAxisHingeJoint) pushField(j physics.Joint, i int) {
	switch i {
	case hingeAnchorPoint:
		j.SetAnchor(vec(n.anchor))
	case hingeAxis:
		j.SetAxis(1, vec(n.axis))
	case hingeMaxAngle:
		j.SetParam(physics.ParamHiStop, float64(n.maxAngle))
	case hingeMinAngle:
		j.SetParam(physics.ParamLoStop, float64(n.minAngle))
	case hingeStopBounce:
		j.SetParam(physics.ParamBounce, float64(n.stopBounce))
	case hingeStopErrorCorrection:
		j.SetParam(physics.ParamStopERP, float64(n.stopErrorCorrection))
	}
}

func (n *SingleAxisHingeJoint) pull(j physics.Joint, i int) bool {
	switch i {
	case hingeAngle:
		n.angle = scene.SFFloat(j.Angle())
	case hingeAngleRate:
		n.angleRate = scene.SFFloat(j.AngleRate())
	case hingeBody1AnchorPoint:
		n.body1Anchor = sfvec(j.Anchor(1))
	case hingeBody2AnchorPoint:
		n.body2Anchor = sfvec(j.Anchor(2))
	default:
		return false
	}
	return true
}

const (
	sliderAxis = jointCommonFields + iota
	sliderMaxSeparation
	sliderMinSeparation
	sliderStopBounce
	sliderStopErrorCorrection
	sliderSeparation
	sliderSeparationRate
)

var sliderTable = jointTable("SliderJoint",
	scene.Field{Index: sliderAxis, Name: "axis", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: sliderMaxSeparation, Name: "maxSeparation", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: sliderMinSeparation, Name: "minSeparation", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: sliderStopBounce, Name: "stopBounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: sliderStopErrorCorrection, Name: "stopErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: sliderSeparation, Name: "separation", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: sliderSeparationRate, Name: "separationRate", Access: scene.Output, Type: scene.TypeSFFloat},
)

// SliderJoint lets two bodies translate along one axis.
type SliderJoint struct {
	jointBase
	axis                scene.SFVec3f
	maxSeparation       scene.SFFloat
	minSeparation       scene.SFFloat
	stopBounce          scene.SFFloat
	stopErrorCorrection scene.SFFloat
	separation          scene.SFFloat
	separationRate      scene.SFFloat
}

func NewSliderJoint() *SliderJoint {
	n := &SliderJoint{
		axis:                scene.SFVec3f{0, 1, 0},
		maxSeparation:       1,
		stopErrorCorrection: 1,
	}
	n.init(sliderTable, physics.JointSlider, n)
	return n
}

func (n *SliderJoint) FieldValue(i int) (scene.Value, error) {
	switch i {
	case sliderAxis:
		return n.axis, nil
	case sliderMaxSeparation:
		return n.maxSeparation, nil
	case sliderMinSeparation:
		return n.minSeparation, nil
	case sliderStopBounce:
		return n.stopBounce, nil
	case sliderStopErrorCorrection:
		return n.stopErrorCorrection, nil
	case sliderSeparation:
		return n.separation, nil
	case sliderSeparationRate:
		return n.separationRate, nil
	}
	return n.commonValue(i)
}

func (n *SliderJoint) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	if i < jointCommonFields {
		return n.setCommon(i, v)
	}
	switch i {
	case sliderAxis:
		n.axis = v.(scene.SFVec3f)
	case sliderMaxSeparation:
		n.maxSeparation = v.(scene.SFFloat)
	case sliderMinSeparation:
		n.minSeparation = v.(scene.SFFloat)
	case sliderStopBounce, sliderStopErrorCorrection:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("must be in [0,1], got %v", f))
		}
		if i == sliderStopBounce {
			n.stopBounce = f
		} else {
			n.stopErrorCorrection = f
		}
	}
	if n.joint != nil {
		n.pushField(n.joint, i)
	}
	n.Notify(i)
	return nil
}

func (n *SliderJoint) push(j physics.Joint) {
	for i := sliderAxis; i <= sliderStopErrorCorrection; i++ {
		n.pushField(j, i)
	}
}

func (n *SliderJoint) pushField(j physics.Joint, i int) {
	switch i {
	case sliderAxis:
		j.SetAxis(1, vec(n.axis))
	case sliderMaxSeparation:
		j.SetParam(physics.ParamHiStop, float64(n.maxSeparation))
	case sliderMinSeparation:
		j.SetParam(physics.ParamLoStop, float64(n.minSeparation))
	case sliderStopBounce:
		j.SetParam(physics.ParamBounce, float64(n.stopBounce))
	case sliderStopErrorCorrection:
		j.SetParam(physics.ParamStopERP, float64(n.stopErrorCorrection))
	}
}

func (n *SliderJoint) pull(j physics.Joint, i int) bool {
	switch i {
	case sliderSeparation:
		n.separation = scene.SFFloat(j.Separation())
	case sliderSeparationRate:
		n.separationRate = scene.SFFloat(j.SeparationRate())
	default:
		return false
	}
	return true
}

const (
	universalAnchorPoint = jointCommonFields + iota
	universalAxis1
	universalAxis2
	universalStop1Bounce
	universalStop1ErrorCorrection
	universalStop2Bounce
	universalStop2ErrorCorrection
	universalBody1AnchorPoint
	universalBody1Axis
	universalBody2AnchorPoint
	universalBody2Axis
)

var universalTable = jointTable("UniversalJoint",
	scene.Field{Index: universalAnchorPoint, Name: "anchorPoint", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: universalAxis1, Name: "axis1", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: universalAxis2, Name: "axis2", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: universalStop1Bounce, Name: "stop1Bounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: universalStop1ErrorCorrection, Name: "stop1ErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: universalStop2Bounce, Name: "stop2Bounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: universalStop2ErrorCorrection, Name: "stop2ErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: universalBody1AnchorPoint, Name: "body1AnchorPoint", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: universalBody1Axis, Name: "body1Axis", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: universalBody2AnchorPoint, Name: "body2AnchorPoint", Access: scene.Output, Type: scene.TypeSFVec3f},
	scene.Field{Index: universalBody2Axis, Name: "body2Axis", Access: scene.Output, Type: scene.TypeSFVec3f},
)

// UniversalJoint couples two bodies through two perpendicular axes.
type UniversalJoint struct {
	jointBase
	anchor      scene.SFVec3f
	axis1       scene.SFVec3f
	axis2       scene.SFVec3f
	stopBounce  [2]scene.SFFloat
	stopERP     [2]scene.SFFloat
	body1Anchor scene.SFVec3f
	body1Axis   scene.SFVec3f
	body2Anchor scene.SFVec3f
	body2Axis   scene.SFVec3f
}

func NewUniversalJoint() *UniversalJoint {
	n := &UniversalJoint{
		axis1:   scene.SFVec3f{1, 0, 0},
		axis2:   scene.SFVec3f{0, 1, 0},
		stopERP: [2]scene.SFFloat{0.8, 0.8},
	}
	n.init(universalTable, physics.JointUniversal, n)
	return n
}

func (n *UniversalJoint) FieldValue(i int) (scene.Value, error) {
	switch i {
	case universalAnchorPoint:
		return n.anchor, nil
	case universalAxis1:
		return n.axis1, nil
	case universalAxis2:
		return n.axis2, nil
	case universalStop1Bounce:
		return n.stopBounce[0], nil
	case universalStop1ErrorCorrection:
		return n.stopERP[0], nil
	case universalStop2Bounce:
		return n.stopBounce[1], nil
	case universalStop2ErrorCorrection:
		return n.stopERP[1], nil
	case universalBody1AnchorPoint:
		return n.body1Anchor, nil
	case universalBody1Axis:
		return n.body1Axis, nil
	case universalBody2AnchorPoint:
		return n.body2Anchor, nil
	case universalBody2Axis:
		return n.body2Axis, nil
	}
	return n.commonValue(i)
}

func (n *UniversalJoint) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	if i < jointCommonFields {
		return n.setCommon(i, v)
	}
	switch i {
	case universalAnchorPoint:
		n.anchor = v.(scene.SFVec3f)
	case universalAxis1:
		n.axis1 = v.(scene.SFVec3f)
	case universalAxis2:
		n.axis2 = v.(scene.SFVec3f)
	case universalStop1Bounce, universalStop1ErrorCorrection, universalStop2Bounce, universalStop2ErrorCorrection:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("must be in [0,1], got %v", f))
		}
		switch i {
		case universalStop1Bounce:
			n.stopBounce[0] = f
		case universalStop1ErrorCorrection:
			n.stopERP[0] = f
		case universalStop2Bounce:
			n.stopBounce[1] = f
		default:
			n.stopERP[1] = f
		}
	}
	if n.joint != nil {
		n.pushField(n.joint, i)
	}
	n.Notify(i)
	return nil
}

func (n *UniversalJoint) push(j physics.Joint) {
	for i := universalAnchorPoint; i <= universalStop2ErrorCorrection; i++ {
		n.pushField(j, i)
	}
}

func (n *UniversalJoint) pushField(j physics.Joint, i int) {
	switch i {
	case universalAnchorPoint:
		j.SetAnchor(vec(n.anchor))
	case universalAxis1:
		j.SetAxis(1, vec(n.axis1))
	case universalAxis2:
		j.SetAxis(2, vec(n.axis2))
	case universalStop1Bounce:
		j.SetParam(physics.ParamBounce, float64(n.stopBounce[0]))
	case universalStop1ErrorCorrection:
		j.SetParam(physics.ParamStopERP, float64(n.stopERP[0]))
	case universalStop2Bounce:
		j.SetParam(physics.ParamBounce2, float64(n.stopBounce[1]))
	case universalStop2ErrorCorrection:
		j.SetParam(physics.ParamStopERP2, float64(n.stopERP[1]))
	}
}

func (n *UniversalJoint) pull(j physics.Joint, i int) bool {
	switch i {
	case universalBody1AnchorPoint:
		n.body1Anchor = sfvec(j.Anchor(1))
	case universalBody1Axis:
		n.body1Axis = sfvec(j.Axis(1))
	case universalBody2AnchorPoint:
		n.body2Anchor = sfvec(j.Anchor(2))
	case universalBody2Axis:
		n.body2Axis = sfvec(j.Axis(2))
	default:
		return false
	}
	return true
}
