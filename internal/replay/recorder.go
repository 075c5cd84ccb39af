package replay

import (
	"bufio"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"pxfeed/internal/model"
	"pxfeed/internal/model/enum"
	"pxfeed/internal/pxdata"
	"pxfeed/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	defaultRecorderQueueSize  = 4096
	defaultRecorderBufferSize = 64 * 1024
)

var _ pxdata.Callbacks = (*Recorder)(nil)

// RecorderConfig controls feed recording.
type RecorderConfig struct {
	QueueSize     int
	BufferSize    int
	FlushInterval time.Duration
}

func (c RecorderConfig) withDefaults() RecorderConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultRecorderQueueSize
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultRecorderBufferSize
	}
	return c
}

// Recorder forwards provider callbacks to next and appends each one to dst as
// a feed line that Play can read back. Lines carry explicit ids.
type Recorder struct {
	cfg   RecorderConfig
	next  pxdata.Callbacks
	dst   io.Writer
	ch    chan []byte
	wg    sync.WaitGroup
	err   atomic.Value
	start time.Time
	now   func() time.Time

	started uint32

	// mu orders sends on ch against close(ch).
	mu     sync.RWMutex
	closed bool
}

// NewRecorder creates a recorder. next may be nil to only record.
func NewRecorder(dst io.Writer, next pxdata.Callbacks, cfg RecorderConfig) (*Recorder, error) {
	if dst == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "recorder writer")
	}
	cfg = cfg.withDefaults()
	return &Recorder{
		cfg:  cfg,
		next: next,
		dst:  dst,
		ch:   make(chan []byte, cfg.QueueSize),
		now:  time.Now,
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (r *Recorder) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&r.started, 0, 1) {
		return exception.ErrRecorderStarted
	}
	r.start = r.now()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
	return nil
}

// Close stops the writer and flushes any buffered lines.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
	return r.Err()
}

// Err returns the first error observed by the writer, if any.
func (r *Recorder) Err() error {
	if v := r.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (r *Recorder) OnContractResolved(id model.RequestID, contract model.Contract) {
	if r.next != nil {
		r.next.OnContractResolved(id, contract)
	}
	r.append(Line{Kind: KindContract, ID: lineID(id), Contract: &contract})
}

func (r *Recorder) OnHistoricalBar(id model.RequestID, bar model.Bar) {
	if r.next != nil {
		r.next.OnHistoricalBar(id, bar)
	}
	r.append(Line{Kind: KindBar, ID: lineID(id), Bar: NewLineBar(bar)})
}

func (r *Recorder) OnHistoricalBarEnd(id model.RequestID, start, end string) {
	if r.next != nil {
		r.next.OnHistoricalBarEnd(id, start, end)
	}
	r.append(Line{Kind: KindBarEnd, ID: lineID(id), Start: start, End: end})
}

func (r *Recorder) OnHistoricalBarUpdate(id model.RequestID, bar model.Bar) {
	if r.next != nil {
		r.next.OnHistoricalBarUpdate(id, bar)
	}
	r.append(Line{Kind: KindBarUpdate, ID: lineID(id), Bar: NewLineBar(bar)})
}

func (r *Recorder) OnTick(id model.RequestID, kind enum.TickKind, price float64, attrib pxdata.TickAttrib) {
	if r.next != nil {
		r.next.OnTick(id, kind, price, attrib)
	}
	tickType := uint16(kind)
	r.append(Line{Kind: KindTick, ID: lineID(id), TickType: &tickType, Price: FormatPrice(price), Attrib: &attrib})
}

// append enqueues a line without blocking the ingestion goroutine.
func (r *Recorder) append(line Line) {
	if err := r.tryAppend(line); err != nil {
		logs.Warnf("recorder: drop %s line of %d, err: %+v", line.Kind, *line.ID, err)
	}
}

func (r *Recorder) tryAppend(line Line) error {
	if atomic.LoadUint32(&r.started) == 0 {
		return exception.ErrRecorderNotStarted
	}
	if err := r.Err(); err != nil {
		return err
	}

	line.OffsetMs = r.now().Sub(r.start).Milliseconds()
	buf, err := line.Marshal()
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return exception.ErrRecorderClosed
	}
	select {
	case r.ch <- buf:
		return nil
	default:
		return exception.ErrRecorderQueueFull
	}
}

func (r *Recorder) run(ctx context.Context) {
	var (
		w           = bufio.NewWriterSize(r.dst, r.cfg.BufferSize)
		flushC      <-chan time.Time
		flushTicker *time.Ticker
	)
	if r.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(r.cfg.FlushInterval)
		flushC = flushTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if err := w.Flush(); err != nil {
			r.setErr(errors.Wrap(err, "flush feed"))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.drainNonBlocking(w)
			return
		case buf, ok := <-r.ch:
			if !ok {
				return
			}
			if _, err := w.Write(buf); err != nil {
				r.setErr(errors.Wrap(err, "write feed line"))
				return
			}
		case <-flushC:
			if err := w.Flush(); err != nil {
				r.setErr(errors.Wrap(err, "flush feed"))
				return
			}
		}
	}
}

func (r *Recorder) drainNonBlocking(w *bufio.Writer) {
	for {
		select {
		case buf, ok := <-r.ch:
			if !ok {
				return
			}
			if _, err := w.Write(buf); err != nil {
				r.setErr(errors.Wrap(err, "write feed line"))
				return
			}
		default:
			return
		}
	}
}

func (r *Recorder) setErr(err error) {
	if err == nil || r.err.Load() != nil {
		return
	}
	r.err.Store(err)
}

func lineID(id model.RequestID) *int64 {
	v := int64(id)
	return &v
}
