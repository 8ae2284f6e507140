// Package pipeline wires the harvest driver's per-record callback to
// a worker pool, and drains the pool's results into a sink, per
// spec.md § C8. It is the only place that touches both the harvest
// and worker-pool halves of the system.
package pipeline

import (
	"github.com/mshroom/RecordManager/internal/harvest"
	"github.com/mshroom/RecordManager/internal/pool"
	"github.com/mshroom/RecordManager/internal/record"
)

// Sink is the consumer of a processed record. n is the number of
// documents indexed as a result — the return contract of spec.md § 6
// ("Callback contract"), added into the driver's ChangedRecords or
// DeletedRecords counter depending on env.Deleted.
type Sink interface {
	Apply(env record.Envelope) (n int, err error)
}

// Run drains one full harvest through pool, applying every result to
// sink and keeping session's counters current. Soft cancellation is
// simply not calling Run again; hard cancellation is pool.Destroy.
func Run(driver *harvest.Driver, p *pool.Pool[record.Envelope, record.Envelope], sink Sink) error {
	driver.OnRecord = func(env record.Envelope) error {
		return p.AddRequest(env)
	}

	if err := driver.Run(); err != nil {
		return err
	}

	if err := p.WaitUntilDone(); err != nil {
		return err
	}

	for _, env := range p.Results() {
		n, err := sink.Apply(env)
		if err != nil {
			return err
		}
		if env.Deleted {
			driver.Session.DeletedRecords += n
		} else {
			driver.Session.ChangedRecords += n
		}
	}

	return nil
}

// NewPool builds the record-processing pool spec.md § 4.2 describes,
// running each envelope through process (typically enrichment) before
// it's hand off to Run's sink drain.
func NewPool(id string, workers, queueBound int, process func(record.Envelope) record.Envelope) *pool.Pool[record.Envelope, record.Envelope] {
	return pool.New[record.Envelope, record.Envelope](id, workers, queueBound, process, nil)
}
