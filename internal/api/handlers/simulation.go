package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/cellular/internal/protocol"
	"github.com/RMahshie/cellular/internal/sim"
	"github.com/RMahshie/cellular/pkg/models"
)

// SimulationHandler runs the canned current-clamp protocols
type SimulationHandler struct {
	opts []sim.Option
}

// NewSimulationHandler creates a handler integrating with step dt (ms) at celsius
func NewSimulationHandler(dt, celsius float64) *SimulationHandler {
	return &SimulationHandler{opts: []sim.Option{sim.WithDt(dt), sim.WithCelsius(celsius)}}
}

// PassiveProperties injects pulses along the dendrite of a ball-and-stick cell
func (h *SimulationHandler) PassiveProperties(ctx context.Context, req *models.PassiveSimulationRequest) (*models.SimulationResponse, error) {
	p := protocol.PassiveParams{Diam: req.Body.Diam, Ra: req.Body.Ra, Cm: req.Body.Cm}
	log.Info().Float64("diam", p.Diam).Float64("ra", p.Ra).Float64("cm", p.Cm).Msg("Running passive properties protocol")

	rec, err := protocol.PassiveProperties(p, h.opts...)
	if err != nil {
		return nil, huma.Error500InternalServerError("Simulation failed", err)
	}
	return &models.SimulationResponse{Body: rec}, nil
}

// SquarePulses injects one somatic square pulse per amplitude
func (h *SimulationHandler) SquarePulses(ctx context.Context, req *models.SquarePulsesRequest) (*models.SimulationResponse, error) {
	if len(req.Body.Amplitudes) == 0 {
		return nil, huma.Error400BadRequest("At least one amplitude is required", protocol.ErrNoPulses)
	}
	log.Info().Floats64("amplitudes", req.Body.Amplitudes).Msg("Running square pulse protocol")

	set, err := protocol.SquarePulses(req.Body.Amplitudes, sim.BallAndStick(), h.opts...)
	if err != nil {
		return nil, huma.Error500InternalServerError("Simulation failed", err)
	}
	return &models.SimulationResponse{Body: set.Recording()}, nil
}
