// Command bipedd runs the walking-pattern generator and the stabilizer as one
// fixed-period control loop, or prints a footstep plan for a goal pose.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	viamutils "go.viam.com/utils"

	"go.viam.com/biped/config"
	"go.viam.com/biped/gait"
	"go.viam.com/biped/kinematics"
	"go.viam.com/biped/spatialmath"
	"go.viam.com/biped/stabilizer"
	"go.viam.com/biped/utils"
)

var (
	configPath string
	debug      bool
)

func newLogger() golog.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zap.Must(cfg.Build()).Sugar()
}

func main() {
	root := &cobra.Command{
		Use:          "bipedd",
		Short:        "biped walking control core",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(newPlanCmd(), newRunCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func buildGenerator(cfg config.Config, logger golog.Logger) (*gait.Generator, error) {
	timing := gait.Timing{
		DT:                 cfg.DT,
		StepTime:           cfg.Gait.StepTime,
		DoubleSupportRatio: cfg.Gait.DoubleSupportRatio,
		StepHeight:         cfg.Gait.StepHeight,
		TopRatio:           cfg.Gait.TopRatio,
	}
	params := gait.FootstepParameters{
		LegOffset: [kinematics.NumLegs]r3.Vector{
			{Y: -cfg.Gait.LegOffsetY},
			{Y: cfg.Gait.LegOffsetY},
		},
		StrideX:              cfg.Gait.StrideX,
		StrideY:              cfg.Gait.StrideY,
		StrideTheta:          utils.DegToRad(cfg.Gait.StrideThetaDeg),
		InsideStepLimitation: cfg.Gait.InsideStepLimitation,
	}
	gen, err := gait.NewGenerator(timing, params, logger.Named("gait"))
	if err != nil {
		return nil, err
	}
	if cfg.Gait.Orbit == "cycloid" {
		gen.SetOrbit(gait.OrbitCycloid)
	}
	return gen, nil
}

func newPlanCmd() *cobra.Command {
	var dx, dy, dthetaDeg float64
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "print the footstep plan for a goal displacement",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gen, err := buildGenerator(cfg, logger)
			if err != nil {
				return err
			}
			offY := cfg.Gait.LegOffsetY
			rfoot := spatialmath.NewPoseFromPoint(r3.Vector{Y: -offY})
			lfoot := spatialmath.NewPoseFromPoint(r3.Vector{Y: offY})
			if err := gen.Initialize(rfoot, lfoot, r3.Vector{Z: 0.8}); err != nil {
				return err
			}
			if err := gen.GoPos(dx, dy, utils.DegToRad(dthetaDeg)); err != nil {
				return err
			}
			for i, fs := range gen.Plan() {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d: %s\n", i, fs)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&dx, "dx", 0.3, "forward displacement in meters")
	cmd.Flags().Float64Var(&dy, "dy", 0, "lateral displacement in meters")
	cmd.Flags().Float64Var(&dthetaDeg, "dtheta", 0, "rotation in degrees")
	return cmd
}

func newRunCmd() *cobra.Command {
	var dx, dy, dthetaDeg float64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "drive the control loop through one go_pos walk",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			viamutils.ContextualMain(func(ctx context.Context, args []string, logger golog.Logger) error {
				return runLoop(ctx, cfg, dx, dy, utils.DegToRad(dthetaDeg), clock.New(), logger)
			}, logger)
			return nil
		},
	}
	cmd.Flags().Float64Var(&dx, "dx", 0.3, "forward displacement in meters")
	cmd.Flags().Float64Var(&dy, "dy", 0, "lateral displacement in meters")
	cmd.Flags().Float64Var(&dthetaDeg, "dtheta", 0, "rotation in degrees")
	return cmd
}

// runLoop wires the gait generator to the stabilizer at the configured period
// and drives one go_pos walk to completion with ideal sensor feedback.
func runLoop(ctx context.Context, cfg config.Config, dx, dy, dtheta float64, clk clock.Clock, logger golog.Logger) error {
	body, err := kinematics.NewBipedModel(kinematics.DefaultBipedConfig())
	if err != nil {
		return err
	}
	ee, err := config.ParseEndEffectors(cfg.EndEffectors)
	if err != nil {
		return err
	}
	gen, err := buildGenerator(cfg, logger)
	if err != nil {
		return err
	}
	st, err := stabilizer.New(stabilizer.Config{
		DT:           cfg.DT,
		Body:         body,
		EndEffectors: ee,
	}, logger.Named("stabilizer"))
	if err != nil {
		return err
	}
	params := st.Parameters()
	if cfg.Stabilizer.Algorithm == "EEFM" {
		params.Algorithm = stabilizer.EEFM
	}
	if cfg.Stabilizer.LegInsideMargin > 0 {
		params.EEFMLegInsideMargin = cfg.Stabilizer.LegInsideMargin
	}
	if cfg.Stabilizer.LegFrontMargin > 0 {
		params.EEFMLegFrontMargin = cfg.Stabilizer.LegFrontMargin
	}
	if cfg.Stabilizer.LegRearMargin > 0 {
		params.EEFMLegRearMargin = cfg.Stabilizer.LegRearMargin
	}
	if cfg.Stabilizer.CogVelCutoffFreq > 0 {
		params.EEFMCogVelCutoffFreq = cfg.Stabilizer.CogVelCutoffFreq
	}
	if cfg.Stabilizer.K1 != [2]float64{} {
		params.EEFMK1 = cfg.Stabilizer.K1
	}
	if cfg.Stabilizer.K2 != [2]float64{} {
		params.EEFMK2 = cfg.Stabilizer.K2
	}
	if cfg.Stabilizer.K3 != [2]float64{} {
		params.EEFMK3 = cfg.Stabilizer.K3
	}
	if err := st.SetParameters(params); err != nil {
		return err
	}

	// standing posture: feet below the hips, root high enough to bend knees
	soleZ := 0.0
	rfoot := spatialmath.NewPoseFromPoint(r3.Vector{Y: -cfg.Gait.LegOffsetY, Z: soleZ})
	lfoot := spatialmath.NewPoseFromPoint(r3.Vector{Y: cfg.Gait.LegOffsetY, Z: soleZ})
	body.SetRootPose(spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.74}))
	kinematics.SolveLegs(body, ee, [kinematics.NumLegs]spatialmath.Pose{rfoot, lfoot}, 30)
	if err := gen.Initialize(rfoot, lfoot, body.CoM()); err != nil {
		return err
	}
	gen.SetRootAboveCoG(body.RootPose().Pos.Z - body.CoM().Z)

	halfWeight := body.TotalMass() * gait.Gravity / 2
	qPrev := body.JointAngles()
	ticker := clk.Ticker(time.Duration(float64(time.Second) * cfg.DT))
	defer ticker.Stop()

	// one full gait + stabilizer cycle with ideal sensor feedback
	tickOnce := func() (gait.Reference, bool) {
		ref, walking := gen.Tick()
		body.SetRootPose(ref.RootPose)
		kinematics.SolveLegs(body, ee, ref.FootPoses, 3)
		qRef := body.JointAngles()
		in := stabilizer.Inputs{
			QCurrent:                qPrev,
			QRef:                    qRef,
			ZMPRef:                  ref.RootPose.InverseTransformPoint(ref.ZMP),
			BasePos:                 ref.RootPose.Pos,
			BaseRPY:                 rpyOf(ref.RootPose),
			ContactStates:           ref.ContactStates,
			ControlSwingSupportTime: ref.SwingSupportTime,
		}
		for _, side := range []kinematics.LegSide{kinematics.Right, kinematics.Left} {
			if ref.ContactStates[side] {
				in.Force[side] = kinematics.Wrench{Force: r3.Vector{Z: halfWeight}}
			}
		}
		out := st.Tick(in)
		qPrev = out.Q
		return ref, walking
	}

	// settle the force filter, then start engaging stabilization; the walk
	// begins while that blend is still running
	for i := 0; i < 20; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		tickOnce()
	}
	startErr := make(chan error, 1)
	go func() { startErr <- st.Start(ctx) }()

	if err := gen.GoPos(dx, dy, dtheta); err != nil {
		return err
	}
	tick := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-startErr:
			if err != nil {
				return err
			}
			startErr = nil
			logger.Infow("stabilizer engaged", "mode", st.Mode().String())
		case <-ticker.C:
			ref, walking := tickOnce()
			tick++
			if tick%200 == 0 {
				logger.Infow("tick",
					"walking", walking,
					"cog_x", ref.CoG.X, "cog_y", ref.CoG.Y,
					"zmp_x", ref.ZMP.X, "zmp_y", ref.ZMP.Y,
					"mode", st.Mode().String())
			}
			if !walking && tick > gen.Timing().StepSamples() {
				logger.Info("walk complete")
				return nil
			}
		}
	}
}

func rpyOf(p spatialmath.Pose) r3.Vector {
	roll, pitch, yaw := p.Rot.RPY()
	return r3.Vector{X: roll, Y: pitch, Z: yaw}
}
