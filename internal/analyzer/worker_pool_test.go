package analyzer

import (
	"bytes"
	"image"
	"image/png"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestNewWorkerPool_DefaultsToCPUCount(t *testing.T) {
	if got := NewWorkerPool(0).workers; got != runtime.NumCPU() {
		t.Errorf("Expected %d workers, got %d", runtime.NumCPU(), got)
	}
	if got := NewWorkerPool(-3).workers; got != runtime.NumCPU() {
		t.Errorf("Expected %d workers for a negative count, got %d", runtime.NumCPU(), got)
	}
	if got := NewWorkerPool(3).workers; got != 3 {
		t.Errorf("Expected 3 workers, got %d", got)
	}
}

// Frames decoded on the pool land in their submission slot whatever order
// the workers finish in.
func TestWorkerPool_DecodesFramesIntoSubmissionSlots(t *testing.T) {
	var encoded [][]byte
	for i := 0; i < 12; i++ {
		var buf bytes.Buffer
		if err := png.Encode(&buf, uniformFrame(8+i, 4, uint8(i*20))); err != nil {
			t.Fatalf("encode frame %d: %v", i, err)
		}
		encoded = append(encoded, buf.Bytes())
	}

	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Close()

	frames := make([]*image.Gray, len(encoded))
	errs := make([]error, len(encoded))
	for i, data := range encoded {
		if !pool.Submit(func() {
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				errs[i] = err
				return
			}
			frames[i] = ToGray(img)
		}) {
			t.Fatalf("Submit %d rejected by an open pool", i)
		}
	}
	pool.Wait()

	for i, frame := range frames {
		if errs[i] != nil {
			t.Fatalf("frame %d: %v", i, errs[i])
		}
		if frame.Bounds().Dx() != 8+i {
			t.Errorf("slot %d holds a %d px wide frame", i, frame.Bounds().Dx())
		}
		if frame.Pix[0] != uint8(i*20) {
			t.Errorf("slot %d holds value %d, want %d", i, frame.Pix[0], i*20)
		}
	}
}

func TestWorkerPool_FirstErrorBySlot(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Close()

	inputs := [][]byte{[]byte("junk-0"), nil, []byte("junk-2"), nil}
	var buf bytes.Buffer
	if err := png.Encode(&buf, uniformFrame(2, 2, 9)); err != nil {
		t.Fatal(err)
	}
	inputs[1], inputs[3] = buf.Bytes(), buf.Bytes()

	errs := make([]error, len(inputs))
	for i, data := range inputs {
		pool.Submit(func() {
			_, errs[i] = png.Decode(bytes.NewReader(data))
		})
	}
	pool.Wait()

	first := -1
	for i, err := range errs {
		if err != nil {
			first = i
			break
		}
	}
	if first != 0 {
		t.Errorf("Expected the first failing slot to be 0, got %d", first)
	}
	if errs[1] != nil || errs[3] != nil {
		t.Errorf("valid slots reported errors: %v, %v", errs[1], errs[3])
	}
	if errs[2] == nil {
		t.Error("Expected slot 2 to fail")
	}
}

func TestWorkerPool_WaitCanBeReused(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	var done atomic.Int64
	for round := 1; round <= 3; round++ {
		for i := 0; i < 5; i++ {
			pool.Submit(func() { done.Add(1) })
		}
		pool.Wait()
		if got := done.Load(); got != int64(round*5) {
			t.Fatalf("round %d: %d jobs done, want %d", round, got, round*5)
		}
	}
}

func TestWorkerPool_StartIsIdempotent(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Start()
	defer pool.Close()

	block := make(chan struct{})
	var running atomic.Int64
	for i := 0; i < 4; i++ {
		pool.Submit(func() {
			running.Add(1)
			<-block
		})
	}
	for runtime.Gosched(); running.Load() < 2; runtime.Gosched() {
	}
	if got := pool.GetStats().ActiveWorkers; got > 2 {
		t.Errorf("Expected at most 2 active workers after a double Start, got %d", got)
	}
	close(block)
	pool.Wait()
}

func TestWorkerPool_Stats(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	for i := 0; i < 7; i++ {
		pool.Submit(func() {})
	}
	pool.Wait()

	want := PoolStats{TotalJobs: 7, CompletedJobs: 7, ActiveWorkers: 0}
	if got := pool.GetStats(); got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	pool.Close()
	pool.Close()

	ran := false
	if pool.Submit(func() { ran = true }) {
		t.Error("Expected Submit to report false on a closed pool")
	}
	pool.Wait()
	if ran {
		t.Error("job ran after Close")
	}
	if got := pool.GetStats().TotalJobs; got != 0 {
		t.Errorf("Expected rejected jobs to stay uncounted, got %d", got)
	}
}

func TestWorkerPool_CloseDrainsQueuedJobs(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()

	var done atomic.Int64
	for i := 0; i < 3; i++ {
		pool.Submit(func() { done.Add(1) })
	}
	pool.Close()
	pool.Wait()

	if got := done.Load(); got != 3 {
		t.Errorf("Expected queued jobs to finish after Close, got %d of 3", got)
	}
}
