package inference

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pixora/internal/imaging"
	"pixora/internal/services"
)

type staticModels struct {
	err   error
	calls atomic.Int32
}

func (s *staticModels) Ensure(context.Context) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "/models/test.onnx", nil
}

type fakeRuntime struct {
	mu        sync.Mutex
	loads     int
	failFirst int
	delay     time.Duration
	rank      int
	lastInput Tensor
	closed    atomic.Int32
}

func (f *fakeRuntime) Load(string) (Session, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loads <= f.failFirst {
		return nil, errors.New("runtime unavailable")
	}
	return &fakeSession{rt: f}, nil
}

type fakeSession struct{ rt *fakeRuntime }

// Run returns a mask that is opaque on the left half and clear on the right.
func (s *fakeSession) Run(in Tensor) (Tensor, error) {
	s.rt.mu.Lock()
	s.rt.lastInput = in
	rank := s.rt.rank
	s.rt.mu.Unlock()

	h, w := in.Shape[2], in.Shape[3]
	data := make([]float32, h*w)
	for y := int64(0); y < h; y++ {
		for x := int64(0); x < w; x++ {
			if x < w/2 {
				data[y*w+x] = 1.5
			} else {
				data[y*w+x] = -0.2
			}
		}
	}
	switch rank {
	case 3:
		return Tensor{Shape: []int64{1, h, w}, Data: data}, nil
	case 2:
		return Tensor{Shape: []int64{h, w}, Data: data}, nil
	default:
		return Tensor{Shape: []int64{1, 1, h, w}, Data: data}, nil
	}
}

func (s *fakeSession) Close() error {
	s.rt.closed.Add(1)
	return nil
}

func testRaster(w, h int) *imaging.Raster {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 128, G: 0, B: 255, A: 255})
		}
	}
	return imaging.FromImage(img)
}

func newTestEngine(rt Runtime, models ModelSource) *Engine {
	return NewEngine(Options{Runtime: rt, Models: models, Resolution: 16})
}

func TestRemoveBackgroundAppliesMask(t *testing.T) {
	for _, rank := range []int{3, 4} {
		rt := &fakeRuntime{rank: rank}
		e := newTestEngine(rt, &staticModels{})

		out, err := e.RemoveBackground(context.Background(), testRaster(64, 32))
		if err != nil {
			t.Fatalf("rank %d: RemoveBackground: %v", rank, err)
		}
		if out.Width() != 64 || out.Height() != 32 {
			t.Fatalf("rank %d: unexpected dims %dx%d", rank, out.Width(), out.Height())
		}
		if out.Layout != imaging.LayoutRGBA {
			t.Fatalf("rank %d: expected RGBA layout", rank)
		}
		if a := out.Pixels.NRGBAAt(1, 16).A; a != 255 {
			t.Fatalf("rank %d: expected opaque left edge, got alpha %d", rank, a)
		}
		if a := out.Pixels.NRGBAAt(62, 16).A; a != 0 {
			t.Fatalf("rank %d: expected clear right edge, got alpha %d", rank, a)
		}
		if e.State() != StateReady {
			t.Fatalf("rank %d: expected ready state, got %s", rank, e.State())
		}
	}
}

func TestInputTensorNormalization(t *testing.T) {
	rt := &fakeRuntime{}
	e := newTestEngine(rt, &staticModels{})
	if _, err := e.RemoveBackground(context.Background(), testRaster(16, 16)); err != nil {
		t.Fatalf("RemoveBackground: %v", err)
	}
	in := rt.lastInput
	if len(in.Shape) != 4 || in.Shape[0] != 1 || in.Shape[1] != 3 || in.Shape[2] != 16 || in.Shape[3] != 16 {
		t.Fatalf("unexpected input shape %v", in.Shape)
	}
	plane := 16 * 16
	if in.Data[0] != 0 {
		t.Fatalf("red channel: got %v, want 0", in.Data[0])
	}
	if in.Data[plane] != -0.5 {
		t.Fatalf("green channel: got %v, want -0.5", in.Data[plane])
	}
	if want := float32(127.0 / 256.0); in.Data[2*plane] != want {
		t.Fatalf("blue channel: got %v, want %v", in.Data[2*plane], want)
	}
}

func TestUnsupportedMaskRankIsInferenceError(t *testing.T) {
	e := newTestEngine(&fakeRuntime{rank: 2}, &staticModels{})
	_, err := e.RemoveBackground(context.Background(), testRaster(8, 8))
	if !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if e.State() != StateReady {
		t.Fatalf("a failed run must not reset the session, state=%s", e.State())
	}
}

func TestConcurrentFirstCallersLoadOnce(t *testing.T) {
	rt := &fakeRuntime{delay: 20 * time.Millisecond}
	models := &staticModels{}
	e := newTestEngine(rt, models)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.RemoveBackground(context.Background(), testRaster(8, 8))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RemoveBackground: %v", err)
		}
	}
	if rt.loads != 1 || e.Loads() != 1 {
		t.Fatalf("expected exactly one load, runtime=%d engine=%d", rt.loads, e.Loads())
	}
	if models.calls.Load() != 1 {
		t.Fatalf("expected one provisioning call, got %d", models.calls.Load())
	}
	if e.InFlight() != 0 {
		t.Fatalf("expected no in-flight runs, got %d", e.InFlight())
	}
}

func TestFailedCreationRetriesOnNextCall(t *testing.T) {
	rt := &fakeRuntime{failFirst: 1}
	e := newTestEngine(rt, &staticModels{})

	_, err := e.RemoveBackground(context.Background(), testRaster(8, 8))
	if !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if e.State() != StateUninitialized {
		t.Fatalf("expected uninitialized after failure, got %s", e.State())
	}
	if _, err := e.RemoveBackground(context.Background(), testRaster(8, 8)); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if rt.loads != 2 || e.State() != StateReady {
		t.Fatalf("expected retry to load, loads=%d state=%s", rt.loads, e.State())
	}
}

func TestProvisioningErrorKeepsMarker(t *testing.T) {
	integrity := services.Wrap(services.ErrIntegrity, "modelstore", "download", "size mismatch", nil)
	e := newTestEngine(&fakeRuntime{}, &staticModels{err: integrity})
	_, err := e.RemoveBackground(context.Background(), testRaster(8, 8))
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if e.State() != StateUninitialized {
		t.Fatalf("expected uninitialized, got %s", e.State())
	}
}

func TestCloseReleasesSession(t *testing.T) {
	rt := &fakeRuntime{}
	e := newTestEngine(rt, &staticModels{})
	if err := e.Warm(context.Background()); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if rt.closed.Load() != 1 {
		t.Fatalf("expected session close, got %d", rt.closed.Load())
	}
	if _, err := e.RemoveBackground(context.Background(), testRaster(8, 8)); !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected inference error after close, got %v", err)
	}
	if e.State() != StateClosed {
		t.Fatalf("expected closed state, got %s", e.State())
	}
}

func TestAlphaFromMaskClamps(t *testing.T) {
	cases := map[float32]uint8{-1: 0, 0: 0, 0.5: 127, 1: 255, 7: 255}
	for in, want := range cases {
		if got := alphaFromMask(in); got != want {
			t.Fatalf("alphaFromMask(%v) = %d, want %d", in, got, want)
		}
	}
}
