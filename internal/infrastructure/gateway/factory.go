package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Factory holds the configured gateways, each behind its own circuit breaker.
type Factory struct {
	gateways        map[string]Gateway
	circuitBreakers map[string]*gobreaker.CircuitBreaker[*Result]
}

func NewFactory(gatewayList ...Gateway) *Factory {
	f := &Factory{
		gateways:        make(map[string]Gateway),
		circuitBreakers: make(map[string]*gobreaker.CircuitBreaker[*Result]),
	}

	if len(gatewayList) == 0 {
		f.Register(NewMockGateway("acme",
			WithLatency(200*time.Millisecond),
			WithFailureRate(0.05),
		))
	} else {
		for _, g := range gatewayList {
			f.Register(g)
		}
	}

	return f
}

func (f *Factory) Register(g Gateway) {
	f.gateways[g.Name()] = g
	f.circuitBreakers[g.Name()] = gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        g.Name(),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})
}

func (f *Factory) Get(name string) (Gateway, *gobreaker.CircuitBreaker[*Result], error) {
	g, ok := f.gateways[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown gateway %q", name)
	}
	return g, f.circuitBreakers[name], nil
}

// Submit sends the request through the named gateway's circuit breaker. A
// tripped breaker surfaces as gobreaker.ErrOpenState, which classifies as a
// transient failure.
func (f *Factory) Submit(ctx context.Context, name string, req SubmitRequest) (*Result, error) {
	g, breaker, err := f.Get(name)
	if err != nil {
		return nil, err
	}
	return breaker.Execute(func() (*Result, error) {
		return g.Submit(ctx, req)
	})
}
