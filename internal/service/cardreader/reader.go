package cardreader

import (
	"context"
	"fmt"
	"sync"

	"github.com/oshokin/building-safety/internal/api/grpc/twin"
	"github.com/oshokin/building-safety/internal/cell"
	"github.com/oshokin/building-safety/internal/domain/access"
)

// record is the card reader's shared cell payload.
type record struct {
	// Code is the scanned card code; empty while idle.
	Code string
	// Verdict is the latest published verdict.
	Verdict access.Verdict
	// Scans counts codes written by the twin.
	Scans uint64
	// Answered is the latest scan a verdict was published for.
	Answered uint64
}

// pending reports whether a scan awaits its verdict.
func (r record) pending() bool {
	return r.Code != "" && r.Answered < r.Scans
}

// Reader is the card reader's cell together with its twin adapter.
type Reader struct {
	cell *cell.Cell[record]
	// scanMu admits one twin scan at a time so each caller reads its own verdict.
	scanMu sync.Mutex
}

// NewReader returns an idle reader.
func NewReader() *Reader {
	return &Reader{cell: cell.New(record{})}
}

// Scan writes code into the cell and waits for its verdict.
func (r *Reader) Scan(ctx context.Context, code string) (string, error) {
	if err := access.ValidateCode(code); err != nil {
		return "", fmt.Errorf("%w: %w", twin.ErrInvalidArgument, err)
	}

	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	var scan uint64

	_, err := r.cell.Do(ctx, func(v *record) (bool, bool) {
		if v.Code != "" {
			return false, false
		}

		v.Code = code
		v.Scans++
		scan = v.Scans

		return true, true
	})
	if err != nil {
		return "", err
	}

	v, err := r.cell.Wait(ctx, func(v record) bool { return v.Answered >= scan })
	if err != nil {
		return "", err
	}

	return v.Verdict.String(), nil
}

// Snapshot returns the cell contents for the twin.
func (r *Reader) Snapshot(context.Context) map[string]any {
	v := r.cell.Load()

	return map[string]any{
		"scanned":  v.Code,
		"verdict":  v.Verdict.String(),
		"scans":    v.Scans,
		"answered": v.Answered,
	}
}

// next blocks until a scan is pending and returns its code and number.
func (r *Reader) next(ctx context.Context) (string, uint64, error) {
	v, err := r.cell.Wait(ctx, record.pending)
	if err != nil {
		return "", 0, err
	}

	return v.Code, v.Scans, nil
}

// publish stores the verdict of scan, then clears the code.
func (r *Reader) publish(scan uint64, verdict access.Verdict) {
	r.cell.Update(func(v *record) bool {
		v.Verdict = verdict
		v.Answered = scan

		return true
	})

	r.cell.Update(func(v *record) bool {
		v.Code = ""

		return true
	})
}
