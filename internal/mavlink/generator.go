package mavlink

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	fp "github.com/tiiuae/flightplanengine/internal/flightplan"
	"github.com/tiiuae/flightplanengine/internal/log"
)

type GenerationError struct {
	FlightPlanUUID string
	Err            error
}

func (e *GenerationError) Error() string {
	return "mavlink generation failed for " + e.FlightPlanUUID + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator builds the mission of a flight plan and writes it to
// <dir>/<uuid>.mavlink. Generation runs on its own goroutine; the
// completion is called from there.
type Generator struct {
	dir string
	lg  *log.Logger
}

func NewGenerator(dir string, lg *log.Logger) *Generator {
	return &Generator{dir: dir, lg: lg.Component("mavlink")}
}

func (g *Generator) Generate(plan *fp.FlightPlan, completion func(fp.MavlinkResult, error)) {
	plan = plan.Clone()
	go func() {
		result, err := g.generate(plan)
		if err != nil {
			g.lg.Warnf("Mavlink: generation failed for %s: %v", plan.UUID, err)
			completion(fp.MavlinkResult{}, &GenerationError{FlightPlanUUID: plan.UUID, Err: err})
			return
		}
		g.lg.Infof("Mavlink: generated %d items for %s", len(result.Commands), plan.UUID)
		completion(result, nil)
	}()
}

func (g *Generator) generate(plan *fp.FlightPlan) (fp.MavlinkResult, error) {
	commands, err := BuildCommands(plan)
	if err != nil {
		return fp.MavlinkResult{}, err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, commands); err != nil {
		return fp.MavlinkResult{}, errors.WithMessage(err, "encode")
	}
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return fp.MavlinkResult{}, errors.WithMessage(err, "mission directory")
	}
	path := filepath.Join(g.dir, plan.UUID+".mavlink")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fp.MavlinkResult{}, errors.WithMessage(err, "write mission file")
	}

	if plan.DataSetting != nil {
		plan.DataSetting.MavlinkCommands = commands
	}
	return fp.MavlinkResult{FlightPlan: plan, Path: path, Commands: commands}, nil
}
