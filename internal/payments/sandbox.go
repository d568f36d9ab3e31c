package payments

import (
	"context"
	"fmt"
	"sync"
)

// SandboxProvider approves everything; it is the default when no gateway key
// is configured.
type SandboxProvider struct {
	mu  sync.Mutex
	seq int
}

func NewSandboxProvider() *SandboxProvider {
	return &SandboxProvider{}
}

func (p *SandboxProvider) Preauthorize(_ context.Context, _ float64, _ string, _ string) (*PreauthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return &PreauthResult{ID: fmt.Sprintf("sandbox_pi_%d", p.seq), Status: "requires_capture"}, nil
}

func (p *SandboxProvider) Capture(_ context.Context, preauthID string) (*CaptureResult, error) {
	return &CaptureResult{PaymentID: "sandbox_pay_" + preauthID}, nil
}

func (p *SandboxProvider) Release(context.Context, string) error {
	return nil
}

func (p *SandboxProvider) Refund(context.Context, string) error {
	return nil
}
