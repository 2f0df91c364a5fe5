// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/tally/fixed"
)

var _ Metrics = (*metricsImpl)(nil)

type Metrics interface {
	IncObservations()
	IncVotes()
	IncConsensusReached()

	SetActiveLayers(n int)
	SetCoherentLayers(n int)
	SetMeanCoherence(c fixed.Dec)
	SetChainHeight(h uint64)
}

type metricsImpl struct {
	observations     metric.Counter
	votes            metric.Counter
	consensusReached metric.Counter

	activeLayers   metric.Gauge
	coherentLayers metric.Gauge
	meanCoherence  metric.Gauge
	chainHeight    metric.Gauge
}

func (m *metricsImpl) IncObservations() {
	m.observations.Inc()
}

func (m *metricsImpl) IncVotes() {
	m.votes.Inc()
}

func (m *metricsImpl) IncConsensusReached() {
	m.consensusReached.Inc()
}

func (m *metricsImpl) SetActiveLayers(n int) {
	m.activeLayers.Set(float64(n))
}

func (m *metricsImpl) SetCoherentLayers(n int) {
	m.coherentLayers.Set(float64(n))
}

// SetMeanCoherence narrows the score to a float; gauges are observational
// only and never feed back into scoring.
func (m *metricsImpl) SetMeanCoherence(c fixed.Dec) {
	m.meanCoherence.Set(c.Float64())
}

func (m *metricsImpl) SetChainHeight(h uint64) {
	m.chainHeight.Set(float64(h))
}

func New(registerer metric.Registerer) (Metrics, error) {
	m := &metricsImpl{
		observations: metric.NewCounter(metric.CounterOpts{
			Name: "tally_observations",
			Help: "Number of observations recorded",
		}),
		votes: metric.NewCounter(metric.CounterOpts{
			Name: "tally_votes",
			Help: "Number of consensus votes registered",
		}),
		consensusReached: metric.NewCounter(metric.CounterOpts{
			Name: "tally_consensus_reached",
			Help: "Number of tallies that reached consensus",
		}),
		activeLayers: metric.NewGauge(metric.GaugeOpts{
			Name: "tally_active_layers",
			Help: "Number of tracked reality layers",
		}),
		coherentLayers: metric.NewGauge(metric.GaugeOpts{
			Name: "tally_coherent_layers",
			Help: "Number of layers at or above the coherence threshold",
		}),
		meanCoherence: metric.NewGauge(metric.GaugeOpts{
			Name: "tally_mean_coherence",
			Help: "Mean stored-state coherence across layers",
		}),
		chainHeight: metric.NewGauge(metric.GaugeOpts{
			Name: "tally_chain_height",
			Help: "Number of commits folded into the hash chain",
		}),
	}

	// Counters self-register on creation; gauges attach to the registerer.
	if err := registerer.Register(metric.AsCollector(m.activeLayers)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.coherentLayers)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.meanCoherence)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.chainHeight)); err != nil {
		return nil, err
	}
	return m, nil
}
