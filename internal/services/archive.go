package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"

	"blocklab-backend/internal/models"
)

// ArchiveService reconstructs a downloadable project archive for any point of
// a session. It is read-only and deterministic: the max event id is captured
// once when a plan is built and every query is bounded by it, so an assembly
// always sees a consistent prefix of the log even while events are being
// appended.
type ArchiveService struct {
	events      EventStore
	experiments ExperimentStore
	merger      ProjectMerger
}

func NewArchiveService(events EventStore, experiments ExperimentStore, merger ProjectMerger) *ArchiveService {
	return &ArchiveService{events: events, experiments: experiments, merger: merger}
}

func ArchiveFilename(sel models.Selection) string {
	return fmt.Sprintf("zip_user%d_experiment%d.zip", sel.UserID, sel.ExperimentID)
}

type planMode int

const (
	modeClientZip planMode = iota
	modeLatestBlock
	modeInitialOnly
	modeSteps
)

// ArchivePlan is a resolved selection. Building the plan performs all
// existence and range checks so the handler can fail before committing to a
// response; WriteTo then streams the archive incrementally.
type ArchivePlan struct {
	svc   *ArchiveService
	sel   models.Selection
	exp   *models.Experiment
	maxID int64
	mode  planMode

	clientZip []byte
	latest    *models.Event
	steps     []int
	multi     bool
}

// Plan resolves the selection against the current log prefix.
func (s *ArchiveService) Plan(ctx context.Context, sel models.Selection) (*ArchivePlan, error) {
	exp, err := s.experiments.Get(ctx, sel.ExperimentID)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, &NotFoundError{Message: "experiment not found"}
	}

	maxID, err := s.events.MaxID(ctx, sel.ExperimentID, sel.UserID)
	if err != nil {
		return nil, err
	}

	p := &ArchivePlan{svc: s, sel: sel, exp: exp, maxID: maxID}

	switch {
	case sel.Step != nil:
		count, err := s.events.CountBlocks(ctx, sel.ExperimentID, sel.UserID, maxID)
		if err != nil {
			return nil, err
		}
		if *sel.Step >= count {
			return nil, &ValidationError{Fields: map[string]string{"step": "out of range"}}
		}
		p.mode = modeSteps
		p.steps = []int{*sel.Step}

	case sel.Start != nil:
		if *sel.Start > *sel.End {
			return nil, &ValidationError{Fields: map[string]string{"start": "must not exceed end"}}
		}
		hi := *sel.End
		if sel.IncludeEnd {
			hi++
		}
		count, err := s.events.CountBlocks(ctx, sel.ExperimentID, sel.UserID, maxID)
		if err != nil {
			return nil, err
		}
		if *sel.Start >= count {
			return nil, &ValidationError{Fields: map[string]string{"start": "out of range"}}
		}
		if hi > count {
			hi = count
		}
		p.mode = modeSteps
		p.multi = true
		for n := *sel.Start; n < hi; n++ {
			p.steps = append(p.steps, n)
		}

	default:
		// Latest: a client-packaged ZIP snapshot is fully authoritative; a
		// BLOCK snapshot is merged with resources over the initial project;
		// the bare initial project is the last resort.
		zipEv, err := s.events.LatestZip(ctx, sel.ExperimentID, sel.UserID, maxID)
		if err != nil {
			return nil, err
		}
		if zipEv != nil {
			p.mode = modeClientZip
			p.clientZip = zipEv.Blob
			break
		}
		blk, err := s.events.LatestBlock(ctx, sel.ExperimentID, sel.UserID, maxID)
		if err != nil {
			return nil, err
		}
		if blk != nil {
			p.mode = modeLatestBlock
			p.latest = blk
			break
		}
		if len(exp.InitialProject) > 0 {
			p.mode = modeInitialOnly
			break
		}
		return nil, &NotFoundError{Message: "no project data for session"}
	}

	return p, nil
}

func (p *ArchivePlan) Filename() string {
	return ArchiveFilename(p.sel)
}

// WriteTo streams the planned archive. Per-step payloads are loaded one at a
// time so a long range never materializes the whole history in memory.
func (p *ArchivePlan) WriteTo(ctx context.Context, w io.Writer) error {
	switch p.mode {
	case modeClientZip:
		_, err := w.Write(p.clientZip)
		return err

	case modeInitialOnly:
		_, err := w.Write(p.exp.InitialProject)
		return err

	case modeLatestBlock:
		return p.mergeBlock(ctx, w, p.latest)

	case modeSteps:
		if !p.multi {
			ev, err := p.svc.events.BlockAt(ctx, p.sel.ExperimentID, p.sel.UserID, p.maxID, p.steps[0])
			if err != nil {
				return err
			}
			if ev == nil {
				return &NotFoundError{Message: "snapshot missing"}
			}
			return p.mergeBlock(ctx, w, ev)
		}

		zw := zip.NewWriter(w)
		for _, n := range p.steps {
			ev, err := p.svc.events.BlockAt(ctx, p.sel.ExperimentID, p.sel.UserID, p.maxID, n)
			if err != nil {
				return err
			}
			if ev == nil {
				continue
			}
			fw, err := zw.CreateHeader(&zip.FileHeader{
				Name:     fmt.Sprintf("step%d.zip", n),
				Method:   zip.Deflate,
				Modified: archiveEpoch,
			})
			if err != nil {
				return err
			}
			if err := p.mergeBlock(ctx, fw, ev); err != nil {
				return err
			}
		}
		return zw.Close()
	}
	return nil
}

func (p *ArchivePlan) mergeBlock(ctx context.Context, w io.Writer, ev *models.Event) error {
	resources, err := p.svc.events.ResourcesAt(ctx, p.sel.ExperimentID, p.sel.UserID, p.maxID, ev.OccurredAt, ev.ID)
	if err != nil {
		// Resources are best-effort; the snapshot itself still ships.
		resources = nil
	}
	return p.svc.merger.Merge(w, ev.Project, resources, p.exp.InitialProject)
}
