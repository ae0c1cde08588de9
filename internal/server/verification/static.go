package verification

import "context"

// StaticGateway accepts one fixed code for every phone and sends nothing.
// It backs local development and tests.
type StaticGateway struct {
	Code string
}

func NewStaticGateway(code string) *StaticGateway {
	return &StaticGateway{Code: code}
}

func (g *StaticGateway) SendCode(context.Context, string) error { return nil }

func (g *StaticGateway) CheckCode(_ context.Context, _ string, code string) (Outcome, error) {
	if code != g.Code {
		return InvalidCode, nil
	}
	return Valid, nil
}
