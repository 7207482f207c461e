package trace

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Versifine/strider/internal/rig"
	"github.com/Versifine/strider/internal/sim"
)

// FromPose flattens a rig pose into a trace frame.
func FromPose(index uint64, pose rig.Pose, started, landed []int) Frame {
	f := Frame{
		Type:  TypeFrame,
		Index: index,
		Time:  pose.Time,
		Body: BodyFrame{
			Position: vec(pose.Body.Position),
			Normal:   vec(pose.Body.Normal),
			Velocity: vec(pose.Body.Velocity),
			Grounded: pose.Body.Grounded,
			Jump:     pose.Body.Jump.String(),
		},
		Legs:     make([]LegFrame, len(pose.Legs)),
		Flags:    pose.Flags,
		Phase:    pose.Phase,
		Active:   pose.Active,
		Jumps:    pose.Jumps,
		Disabled: pose.Disabled,
		Started:  started,
		Landed:   landed,
	}
	for i, l := range pose.Legs {
		f.Legs[i] = LegFrame{
			Name:     l.Name,
			Foot:     vec(l.Foot),
			Target:   vec(l.Target),
			Progress: l.Progress,
			Swinging: l.Swinging,
		}
	}
	return f
}

func vec(v mgl64.Vec3) [3]float64 {
	return [3]float64{v.X(), v.Y(), v.Z()}
}

// Recorder returns a loop observer that writes every nth frame. Frames that start or land a
// swing are always written.
func Recorder(w *Writer, r *rig.Rig, every int) sim.Observer {
	if every < 1 {
		every = 1
	}
	failed := false
	return func(fr sim.Frame) {
		if failed {
			return
		}
		if fr.Index%uint64(every) != 0 && fr.Report.Empty() {
			return
		}
		pose := r.Pose()
		if err := w.WriteFrame(FromPose(fr.Index, pose, fr.Report.Started, fr.Report.Landed)); err != nil {
			failed = true
			slog.Error("trace write failed, recording stopped", "error", err)
		}
	}
}
