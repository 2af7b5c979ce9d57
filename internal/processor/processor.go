package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/datallboy/nzbweaver/internal/app"
	"github.com/datallboy/nzbweaver/internal/domain"
	"github.com/datallboy/nzbweaver/internal/repair"
)

var (
	ErrRepairFailed     = errors.New("par2 verification/repair failed")
	ErrExtractionFailed = errors.New("archive extraction failed")
)

// Repairer defines the behavior for verifying and fixing downloads.
// Both calls run inside dir against the index parity file.
type Repairer interface {
	Verify(ctx context.Context, dir, index string) (repair.VerifyResult, error)
	Repair(ctx context.Context, dir, index string) error
}

// Processor runs everything that happens after the last segment was
// downloaded: naming, assembly, repair, extraction and cleanup.
type Processor struct {
	ctx        *app.Context
	repairer   Repairer // nil when par2 is not installed
	extractors *Manager
}

func New(ctx *app.Context, repairer Repairer, extractors *Manager) *Processor {
	if extractors == nil {
		extractors = &Manager{}
	}
	return &Processor{ctx: ctx, repairer: repairer, extractors: extractors}
}

// NewFromConfig wires the external tools found on this machine.
func NewFromConfig(ctx *app.Context) *Processor {
	var repairer Repairer
	if par2, err := repair.NewCLIPar2(ctx.Config.Download.Par2Bin); err == nil {
		repairer = par2
	} else {
		ctx.Logger.Debug("Repair disabled: %v", err)
	}

	return New(ctx, repairer, NewManager(ctx.Config.Download))
}

// PostProcess turns the downloaded segments of rel into final files.
func (p *Processor) PostProcess(ctx context.Context, rel *domain.Release, src app.SegmentSource) error {
	index, parsed := p.ResolveNames(rel, src)
	p.ctx.Logger.Debug("Rename policy for %s: %s", rel.Name, rel.Policy())

	if err := p.Assemble(ctx, rel, src); err != nil {
		return err
	}

	if index != nil && parsed && rel.FinalName(index) != "" {
		if err := p.handleRepair(ctx, rel, rel.FinalName(index)); err != nil {
			p.ctx.Logger.Error("%v", err)
			return err
		}
	} else if damaged := damagedFiles(rel); damaged > 0 {
		p.ctx.Logger.Warn("%d file(s) are incomplete and cannot be repaired", damaged)
	}

	if err := p.extract(ctx, rel); err != nil {
		p.ctx.Logger.Error("%v", err)
		return err
	}

	p.cleanup(rel)
	p.ctx.Logger.Info("Post-processing of %s finished", rel.Name)
	return nil
}

func (p *Processor) handleRepair(ctx context.Context, rel *domain.Release, index string) error {
	if p.repairer == nil {
		p.ctx.Logger.Info("par2 binary not available. Skipping verification of %s", index)
		return nil
	}

	p.ctx.Logger.Debug("PAR2 Index found: %s. Verifying...", index)

	result, err := p.repairer.Verify(ctx, rel.Destination, index)
	switch result {
	case repair.VerifyClean:
		p.ctx.Logger.Info("All files verified healthy via PAR2.")
		return nil

	case repair.VerifyRepairable:
		p.ctx.Logger.Warn("Files are damaged. Attempting repair...")
		if err := p.repairer.Repair(ctx, rel.Destination, index); err != nil {
			return fmt.Errorf("%w: %w", ErrRepairFailed, err)
		}
		p.ctx.Logger.Info("Repair complete.")
		return nil

	default:
		if err == nil {
			err = errors.New("not repairable")
		}
		return fmt.Errorf("%w: %w", ErrRepairFailed, err)
	}
}

func damagedFiles(rel *domain.Release) int {
	n := 0
	for _, f := range rel.Files {
		if !f.Intact() {
			n++
		}
	}
	return n
}
