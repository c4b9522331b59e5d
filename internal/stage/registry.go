package stage

import (
	"context"
	"sync"

	"github.com/verid-io/verid/internal/domain"
)

// Status is the readiness report for one stage.
type Status struct {
	Loaded bool    `json:"loaded"`
	Name   string  `json:"name"`
	Error  *string `json:"error"`
}

// Builders supplies the registry with one constructor per stage. Each is
// invoked at most once; its name identifies the backend in readiness output.
type Builders struct {
	DetectorName string
	Detector     func() (Detector, error)
	MatcherName  string
	Matcher      func() (Matcher, error)
	OCRName      string
	OCR          func() (OCRExtractor, error)
	LivenessName string
	Liveness     func() (LivenessEvaluator, error)
}

// slot is a per-stage initialization latch: concurrent callers share one
// construction, and a failed construction is remembered rather than retried.
type slot[T any] struct {
	name  string
	build func() (T, error)

	mu    sync.Mutex
	built bool
	val   T
	err   error
}

func (s *slot[T]) get() (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.built {
		s.val, s.err = s.build()
		s.built = true
	}
	return s.val, s.err
}

func (s *slot[T]) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Name: s.name}
	if s.built && s.err == nil {
		st.Loaded = true
	}
	if s.err != nil {
		msg := s.err.Error()
		st.Error = &msg
	}
	return st
}

// Registry lazily constructs and owns the four inference stages. A stage
// whose construction fails is reported not-loaded; the registry stays usable
// for the stages that did load.
type Registry struct {
	detector slot[Detector]
	matcher  slot[Matcher]
	ocr      slot[OCRExtractor]
	liveness slot[LivenessEvaluator]
}

func NewRegistry(b Builders) *Registry {
	return &Registry{
		detector: slot[Detector]{name: b.DetectorName, build: b.Detector},
		matcher:  slot[Matcher]{name: b.MatcherName, build: b.Matcher},
		ocr:      slot[OCRExtractor]{name: b.OCRName, build: b.OCR},
		liveness: slot[LivenessEvaluator]{name: b.LivenessName, build: b.Liveness},
	}
}

// Detector returns the detector stage, constructing it on first use.
func (r *Registry) Detector() (Detector, error) {
	d, err := r.detector.get()
	if err != nil {
		return nil, domain.ErrNotReady.WithError(err)
	}
	return d, nil
}

// Matcher returns the matcher stage, constructing it on first use.
func (r *Registry) Matcher() (Matcher, error) {
	m, err := r.matcher.get()
	if err != nil {
		return nil, domain.ErrNotReady.WithError(err)
	}
	return m, nil
}

// OCR returns the OCR stage, constructing it on first use.
func (r *Registry) OCR() (OCRExtractor, error) {
	o, err := r.ocr.get()
	if err != nil {
		return nil, domain.ErrNotReady.WithError(err)
	}
	return o, nil
}

// Liveness returns the liveness stage, constructing it on first use.
func (r *Registry) Liveness() (LivenessEvaluator, error) {
	l, err := r.liveness.get()
	if err != nil {
		return nil, domain.ErrNotReady.WithError(err)
	}
	return l, nil
}

// Warmup forces construction of every stage so /health is truthful before
// the first request. Returns the first construction error, if any.
func (r *Registry) Warmup(ctx context.Context) error {
	var firstErr error
	if _, err := r.detector.get(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.matcher.get(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.ocr.get(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.liveness.get(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Readiness reports per-stage status keyed by stage role.
func (r *Registry) Readiness() map[string]Status {
	return map[string]Status{
		"detector": r.detector.status(),
		"matcher":  r.matcher.status(),
		"ocr":      r.ocr.status(),
		"liveness": r.liveness.status(),
	}
}

// Healthy reports whether all four stages loaded.
func (r *Registry) Healthy() bool {
	for _, st := range r.Readiness() {
		if !st.Loaded {
			return false
		}
	}
	return true
}
