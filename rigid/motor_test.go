package rigid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/rigidsync/physics"
	"github.com/pthm-cable/rigidsync/scene"
)

// attached binds j to a single body at the origin inside a fresh collection.
// setup runs on j before its setup finishes.
func attached(f *fixture, j Joint, setup func()) (*RigidBodyCollection, *RigidBody) {
	b := f.node("RigidBody").(*RigidBody)
	f.finish(b)
	f.set(j, "body1", scene.NodeValue(b))
	if setup != nil {
		setup()
	}
	f.finish(j)
	rbc := f.node("RigidBodyCollection").(*RigidBodyCollection)
	f.set(rbc, "gravity", scene.SFVec3f{})
	f.set(rbc, "bodies", refs(b))
	f.set(rbc, "joints", refs(j))
	f.finish(rbc)
	return rbc, b
}

func TestMotorDefaults(t *testing.T) {
	f := newFixture(t)
	j := f.node("MotorJoint")
	assert.Equal(t, scene.SFInt32(1), f.get(j, "enabledAxes"))
	assert.Equal(t, scene.SFBool(false), f.get(j, "autoCalc"))
	for _, name := range []string{"stop1ErrorCorrection", "stop2ErrorCorrection", "stop3ErrorCorrection"} {
		assert.Equal(t, scene.SFFloat(0.8), f.get(j, name), name)
	}
}

func TestMotorFieldValidation(t *testing.T) {
	tests := []struct {
		field string
		value scene.Value
		err   error
	}{
		{"enabledAxes", scene.SFInt32(3), nil},
		{"enabledAxes", scene.SFInt32(4), scene.ErrInvalidValue},
		{"enabledAxes", scene.SFInt32(-1), scene.ErrInvalidValue},
		{"axis2Angle", scene.SFFloat(3), nil},
		{"axis2Angle", scene.SFFloat(4), scene.ErrInvalidValue},
		{"stop3Bounce", scene.SFFloat(1.5), scene.ErrInvalidValue},
		{"stop1ErrorCorrection", scene.SFFloat(-0.1), scene.ErrInvalidValue},
		{"axis3Torque", scene.SFFloat(-20), nil},
		{"motor1Angle", scene.SFFloat(0), scene.ErrReadOnlyField},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f := newFixture(t)
			j := f.node("MotorJoint")
			before := f.get(j, tt.field)
			err := scene.SetByName(j, tt.field, tt.value)
			if tt.err == nil {
				require.NoError(t, err)
				assert.Equal(t, tt.value, f.get(j, tt.field))
				return
			}
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, before, f.get(j, tt.field))
		})
	}
}

func TestMotorAutoCalcInitializeOnly(t *testing.T) {
	f := newFixture(t)
	j := f.node("MotorJoint")
	f.set(j, "autoCalc", scene.SFBool(true))
	f.finish(j)
	err := scene.SetByName(j, "autoCalc", scene.SFBool(false))
	assert.ErrorIs(t, err, scene.ErrReadOnlyField)
	assert.Equal(t, scene.SFBool(true), f.get(j, "autoCalc"))
}

func TestMotorPushesWhenBound(t *testing.T) {
	f := newFixture(t)
	j := f.node("MotorJoint").(*MotorJoint)
	attached(f, j, func() {
		f.set(j, "axis1Torque", scene.SFFloat(2))
	})

	h := j.JointHandle()
	require.NotNil(t, h)
	assert.Equal(t, physics.JointMotor, h.Kind())
	assert.Equal(t, 1.0, h.Param(physics.ParamNumAxes))
	assert.Equal(t, 2.0, h.Param(physics.ParamTorque))
	assert.InDelta(t, 0.8, h.Param(physics.ParamStopERP3), 1e-6)

	f.set(j, "enabledAxes", scene.SFInt32(2))
	f.set(j, "axis2Torque", scene.SFFloat(-3))
	f.set(j, "stop2Bounce", scene.SFFloat(0.5))
	assert.Equal(t, 2.0, h.Param(physics.ParamNumAxes))
	assert.Equal(t, -3.0, h.Param(physics.ParamTorque2))
	assert.Equal(t, 0.5, h.Param(physics.ParamBounce2))
}

func TestMotorAxes(t *testing.T) {
	tests := []struct {
		name     string
		autoCalc bool
		want     scene.SFVec3f
	}{
		{"user axis kept", false, scene.SFVec3f{1, 1, 0}},
		{"auto axis is the normal", true, scene.SFVec3f{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			j := f.node("MotorJoint").(*MotorJoint)
			attached(f, j, func() {
				f.set(j, "autoCalc", scene.SFBool(tt.autoCalc))
				f.set(j, "motor1Axis", scene.SFVec3f{1, 0, 0})
				f.set(j, "motor2Axis", scene.SFVec3f{1, 1, 0})
				f.set(j, "motor3Axis", scene.SFVec3f{0, 0, 1})
			})
			got := sfvec(j.JointHandle().Axis(2))
			for k := range got {
				assert.InDelta(t, tt.want[k], got[k], 1e-6)
			}

			// A later axis write keeps the same rule.
			f.set(j, "motor2Axis", scene.SFVec3f{1, 1, 0})
			got = sfvec(j.JointHandle().Axis(2))
			for k := range got {
				assert.InDelta(t, tt.want[k], got[k], 1e-6)
			}
		})
	}
}

func TestMotorAngleOutputs(t *testing.T) {
	t.Run("user angles echoed", func(t *testing.T) {
		f := newFixture(t)
		j := f.node("MotorJoint").(*MotorJoint)
		rbc, _ := attached(f, j, func() {
			f.set(j, "forceOutput", scene.MFString{"ALL"})
		})
		f.set(j, "axis1Angle", scene.SFFloat(0.5))
		require.NoError(t, rbc.Evaluate(0.01))
		j.PullOutputs()
		assert.Equal(t, scene.SFFloat(0.5), f.get(j, "motor1Angle"))
		assert.Equal(t, scene.SFFloat(0), f.get(j, "motor1AngleRate"))
	})

	t.Run("auto angles measured", func(t *testing.T) {
		f := newFixture(t)
		j := f.node("MotorJoint").(*MotorJoint)
		rbc, b := attached(f, j, func() {
			f.set(j, "autoCalc", scene.SFBool(true))
			f.set(j, "motor1Axis", scene.SFVec3f{0, 0, 1})
			f.set(j, "axis1Torque", scene.SFFloat(2))
			f.set(j, "axis1Angle", scene.SFFloat(3))
			f.set(j, "forceOutput", scene.MFString{"motor1Angle", "motor1AngleRate"})
		})
		for i := 0; i < 10; i++ {
			require.NoError(t, rbc.Evaluate(0.01))
		}
		j.PullOutputs()
		rbc.PullOutputs()

		rate := f.get(j, "motor1AngleRate").(scene.SFFloat)
		angle := f.get(j, "motor1Angle").(scene.SFFloat)
		assert.Greater(t, float64(rate), 0.0)
		assert.Greater(t, float64(angle), 0.0)
		assert.Less(t, float64(angle), 3.0, "measured, not echoed")
		w := f.get(b, "angularVelocity").(scene.SFVec3f)
		assert.InDelta(t, float64(rate), float64(w[2]), 1e-5)
	})
}

func TestDoubleAxisHingeDefaults(t *testing.T) {
	f := newFixture(t)
	j := f.node("DoubleAxisHingeJoint")
	assert.InDelta(t, 3.14159, float64(f.get(j, "maxAngle1").(scene.SFFloat)), 1e-4)
	assert.InDelta(t, -3.14159, float64(f.get(j, "minAngle1").(scene.SFFloat)), 1e-4)
	assert.Equal(t, scene.SFFloat(0.001), f.get(j, "stopConstantForceMix1"))
	assert.Equal(t, scene.SFFloat(0.8), f.get(j, "suspensionErrorCorrection"))

	assert.ErrorIs(t, scene.SetByName(j, "minAngle1", scene.SFFloat(-4)), scene.ErrInvalidValue)
	assert.ErrorIs(t, scene.SetByName(j, "suspensionForce", scene.SFFloat(-1)), scene.ErrInvalidValue)
	assert.ErrorIs(t, scene.SetByName(j, "stopErrorCorrection1", scene.SFFloat(2)), scene.ErrInvalidValue)
	assert.ErrorIs(t, scene.SetByName(j, "hinge2Angle", scene.SFFloat(0)), scene.ErrReadOnlyField)
}

func TestDoubleAxisHingePushesWhenBound(t *testing.T) {
	f := newFixture(t)
	j := f.node("DoubleAxisHingeJoint").(*DoubleAxisHingeJoint)
	attached(f, j, nil)

	h := j.JointHandle()
	require.NotNil(t, h)
	assert.Equal(t, physics.JointDoubleAxisHinge, h.Kind())
	assert.InDelta(t, 3.14159, h.Param(physics.ParamHiStop), 1e-4)

	f.set(j, "desiredAngularVelocity2", scene.SFFloat(4))
	f.set(j, "maxTorque2", scene.SFFloat(7))
	f.set(j, "suspensionForce", scene.SFFloat(0.25))
	assert.Equal(t, 4.0, h.Param(physics.ParamVelocity2))
	assert.Equal(t, 7.0, h.Param(physics.ParamMaxForce2))
	assert.Equal(t, 0.25, h.Param(physics.ParamSuspensionCFM))
	assert.Equal(t, 0.0, h.Param(physics.ParamVelocity), "axis 1 untouched")
}

func TestDoubleAxisHingeDrive(t *testing.T) {
	f := newFixture(t)
	j := f.node("DoubleAxisHingeJoint").(*DoubleAxisHingeJoint)
	rbc, _ := attached(f, j, func() {
		f.set(j, "axis1", scene.SFVec3f{0, 0, 1})
		f.set(j, "desiredAngularVelocity1", scene.SFFloat(2))
		f.set(j, "maxTorque1", scene.SFFloat(100))
		f.set(j, "forceOutput", scene.MFString{"hinge1AngleRate", "axis1"})
	})
	require.Equal(t, 2, j.Outputs())

	for i := 0; i < 5; i++ {
		require.NoError(t, rbc.Evaluate(0.01))
	}
	j.ClearChanged()
	j.PullOutputs()

	rate, _ := hinge2Table.IndexOf("hinge1AngleRate")
	axis, _ := hinge2Table.IndexOf("axis1")
	assert.True(t, j.Changed(rate))
	assert.False(t, j.Changed(axis))
	assert.InDelta(t, 2, float64(f.get(j, "hinge1AngleRate").(scene.SFFloat)), 1e-3)
	assert.Equal(t, scene.SFFloat(0), f.get(j, "hinge2AngleRate"), "not selected")
}
