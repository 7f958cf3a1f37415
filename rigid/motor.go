package rigid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

const (
	motorAutoCalc = jointCommonFields + iota
	motorAxis1Angle
	motorAxis2Angle
	motorAxis3Angle
	motorAxis1Torque
	motorAxis2Torque
	motorAxis3Torque
	motorEnabledAxes
	motorMotor1Axis
	motorMotor2Axis
	motorMotor3Axis
	motorStop1Bounce
	motorStop2Bounce
	motorStop3Bounce
	motorStop1ErrorCorrection
	motorStop2ErrorCorrection
	motorStop3ErrorCorrection
	motorMotor1Angle
	motorMotor2Angle
	motorMotor3Angle
	motorMotor1AngleRate
	motorMotor2AngleRate
	motorMotor3AngleRate
)

var motorTable = jointTable("MotorJoint",
	scene.Field{Index: motorAutoCalc, Name: "autoCalc", Access: scene.InitializeOnly, Type: scene.TypeSFBool},
	scene.Field{Index: motorAxis1Angle, Name: "axis1Angle", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorAxis2Angle, Name: "axis2Angle", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorAxis3Angle, Name: "axis3Angle", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorAxis1Torque, Name: "axis1Torque", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorAxis2Torque, Name: "axis2Torque", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorAxis3Torque, Name: "axis3Torque", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorEnabledAxes, Name: "enabledAxes", Access: scene.InputOutput, Type: scene.TypeSFInt32},
	scene.Field{Index: motorMotor1Axis, Name: "motor1Axis", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: motorMotor2Axis, Name: "motor2Axis", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: motorMotor3Axis, Name: "motor3Axis", Access: scene.InputOutput, Type: scene.TypeSFVec3f},
	scene.Field{Index: motorStop1Bounce, Name: "stop1Bounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorStop2Bounce, Name: "stop2Bounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorStop3Bounce, Name: "stop3Bounce", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorStop1ErrorCorrection, Name: "stop1ErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorStop2ErrorCorrection, Name: "stop2ErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorStop3ErrorCorrection, Name: "stop3ErrorCorrection", Access: scene.InputOutput, Type: scene.TypeSFFloat},
	scene.Field{Index: motorMotor1Angle, Name: "motor1Angle", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: motorMotor2Angle, Name: "motor2Angle", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: motorMotor3Angle, Name: "motor3Angle", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: motorMotor1AngleRate, Name: "motor1AngleRate", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: motorMotor2AngleRate, Name: "motor2AngleRate", Access: scene.Output, Type: scene.TypeSFFloat},
	scene.Field{Index: motorMotor3AngleRate, Name: "motor3AngleRate", Access: scene.Output, Type: scene.TypeSFFloat},
)

var (
	motorTorqueParams = [3]physics.JointParam{physics.ParamTorque, physics.ParamTorque2, physics.ParamTorque3}
	motorBounceParams = [3]physics.JointParam{physics.ParamBounce, physics.ParamBounce2, physics.ParamBounce3}
	motorERPParams    = [3]physics.JointParam{physics.ParamStopERP, physics.ParamStopERP2, physics.ParamStopERP3}
)

// MotorJoint applies torques between two bodies about up to three axes.
// Axis 1 turns with body 1, axes 2 and 3 with body 2.
//
// With autoCalc the motor angles are measured from the bodies and axis 2
// is kept perpendicular to axes 1 and 3. Without it the angles reported
// are the ones last written to axisNAngle.
type MotorJoint struct {
	jointBase
	autoCalc    scene.SFBool
	axisAngle   [3]scene.SFFloat
	axisTorque  [3]scene.SFFloat
	enabledAxes scene.SFInt32
	motorAxis   [3]scene.SFVec3f
	stopBounce  [3]scene.SFFloat
	stopERP     [3]scene.SFFloat
	angle       [3]scene.SFFloat
	angleRate   [3]scene.SFFloat
}

func NewMotorJoint() *MotorJoint {
	n := &MotorJoint{
		enabledAxes: 1,
		stopERP:     [3]scene.SFFloat{0.8, 0.8, 0.8},
	}
	n.init(motorTable, physics.JointMotor, n)
	return n
}

func (n *MotorJoint) FieldValue(i int) (scene.Value, error) {
	switch {
	case i == motorAutoCalc:
		return n.autoCalc, nil
	case i >= motorAxis1Angle && i <= motorAxis3Angle:
		return n.axisAngle[i-motorAxis1Angle], nil
	case i >= motorAxis1Torque && i <= motorAxis3Torque:
		return n.axisTorque[i-motorAxis1Torque], nil
	case i == motorEnabledAxes:
		return n.enabledAxes, nil
	case i >= motorMotor1Axis && i <= motorMotor3Axis:
		return n.motorAxis[i-motorMotor1Axis], nil
	case i >= motorStop1Bounce && i <= motorStop3Bounce:
		return n.stopBounce[i-motorStop1Bounce], nil
	case i >= motorStop1ErrorCorrection && i <= motorStop3ErrorCorrection:
		return n.stopERP[i-motorStop1ErrorCorrection], nil
	case i >= motorMotor1Angle && i <= motorMotor3Angle:
		return n.angle[i-motorMotor1Angle], nil
	case i >= motorMotor1AngleRate && i <= motorMotor3AngleRate:
		return n.angleRate[i-motorMotor1AngleRate], nil
	}
	return n.commonValue(i)
}

func (n *MotorJoint) SetValue(i int, v scene.Value) error {
	if _, err := n.CheckWrite(i, v); err != nil {
		return err
	}
	if i < jointCommonFields {
		return n.setCommon(i, v)
	}
	switch {
	case i == motorAutoCalc:
		n.autoCalc = v.(scene.SFBool)
	case i >= motorAxis1Angle && i <= motorAxis3Angle:
		a := v.(scene.SFFloat)
		if a < -math.Pi || a > math.Pi {
			return n.Invalid(i, fmt.Sprintf("angle must be in [-pi,pi], got %v", a))
		}
		n.axisAngle[i-motorAxis1Angle] = a
	case i >= motorAxis1Torque && i <= motorAxis3Torque:
		n.axisTorque[i-motorAxis1Torque] = v.(scene.SFFloat)
	case i == motorEnabledAxes:
		num := v.(scene.SFInt32)
		if num < 0 || num > 3 {
			return n.Invalid(i, fmt.Sprintf("enabled axes must be in [0,3], got %d", num))
		}
		n.enabledAxes = num
	case i >= motorMotor1Axis && i <= motorMotor3Axis:
		n.motorAxis[i-motorMotor1Axis] = v.(scene.SFVec3f)
	case i >= motorStop1Bounce && i <= motorStop3ErrorCorrection:
		f := v.(scene.SFFloat)
		if !unit(f) {
			return n.Invalid(i, fmt.Sprintf("must be in [0,1], got %v", f))
		}
		if i <= motorStop3Bounce {
			n.stopBounce[i-motorStop1Bounce] = f
		} else {
			n.stopERP[i-motorStop1ErrorCorrection] = f
		}
	}
	if n.joint != nil {
		n.pushField(n.joint, i)
	}
	n.Notify(i)
	return nil
}

func (n *MotorJoint) push(j physics.Joint) {
	for i := motorAutoCalc; i <= motorStop3ErrorCorrection; i++ {
		n.pushField(j, i)
	}
}

func (n *MotorJoint) pushField(j physics.Joint, i int) {
	switch {
	case i >= motorAxis1Torque && i <= motorAxis3Torque:
		k := i - motorAxis1Torque
		j.SetParam(motorTorqueParams[k], float64(n.axisTorque[k]))
	case i == motorEnabledAxes:
		j.SetParam(physics.ParamNumAxes, float64(n.enabledAxes))
	case i >= motorMotor1Axis && i <= motorMotor3Axis:
		k := i - motorMotor1Axis
		if !bool(n.autoCalc) {
			j.SetAxis(k+1, vec(n.motorAxis[k]))
			return
		}
		if k != 1 {
			j.SetAxis(k+1, vec(n.motorAxis[k]))
		}
		n.pushEulerAxis(j)
	case i >= motorStop1Bounce && i <= motorStop3Bounce:
		k := i - motorStop1Bounce
		j.SetParam(motorBounceParams[k], float64(n.stopBounce[k]))
	case i >= motorStop1ErrorCorrection && i <= motorStop3ErrorCorrection:
		k := i - motorStop1ErrorCorrection
		j.SetParam(motorERPParams[k], float64(n.stopERP[k]))
	}
}

// pushEulerAxis sets axis 2 to the normal of axes 1 and 3. Parallel axes
// leave axis 2 as it is.
func (n *MotorJoint) pushEulerAxis(j physics.Joint) {
	normal := r3.Cross(vec(n.motorAxis[2]), vec(n.motorAxis[0]))
	if r3.Norm(normal) < 1e-9 {
		return
	}
	j.SetAxis(2, r3.Unit(normal))
}

func (n *MotorJoint) pull(j physics.Joint, i int) bool {
	switch {
	case i >= motorMotor1Angle && i <= motorMotor3Angle:
		k := i - motorMotor1Angle
		if n.autoCalc {
			n.angle[k] = scene.SFFloat(j.AxisAngle(k + 1))
		} else {
			n.angle[k] = n.axisAngle[k]
		}
	case i >= motorMotor1AngleRate && i <= motorMotor3AngleRate:
		k := i - motorMotor1AngleRate
		n.angleRate[k] = scene.SFFloat(j.AxisAngleRate(k + 1))
	default:
		return false
	}
	return true
}
