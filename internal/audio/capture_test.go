package audio

import (
	"encoding/base64"
	"sync"
	"testing"
)

type recordingSink struct {
	mu     sync.Mutex
	accept bool
	frames []Frame
}

func (s *recordingSink) TrySendFrame(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept {
		return false
	}
	s.frames = append(s.frames, f)
	return true
}

func TestCaptureEncoder_DropsWithoutSink(t *testing.T) {
	enc := NewCaptureEncoder(CaptureConfig{})

	if enc.Process(make([]float32, DefaultFrameSize)) {
		t.Error("Expected frame to be dropped while no sink is attached")
	}
}

func TestCaptureEncoder_EmitsWireFrames(t *testing.T) {
	sink := &recordingSink{accept: true}
	enc := NewCaptureEncoder(CaptureConfig{FrameSize: 4, InputRate: 16000, WireRate: 16000})
	enc.Attach(sink)

	if !enc.Process([]float32{0, 0.5, -0.5, 1}) {
		t.Fatal("Expected frame to be accepted")
	}
	if !enc.Process([]float32{0, 0, 0, 0}) {
		t.Fatal("Expected second frame to be accepted")
	}

	if len(sink.frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(sink.frames))
	}
	first := sink.frames[0]
	if first.Seq != 1 || sink.frames[1].Seq != 2 {
		t.Errorf("Expected sequence 1,2 in capture order, got %d,%d", first.Seq, sink.frames[1].Seq)
	}
	if len(first.PCM) != 8 {
		t.Errorf("Expected 8 PCM bytes for 4 samples, got %d", len(first.PCM))
	}
	decoded, err := base64.StdEncoding.DecodeString(first.Data)
	if err != nil {
		t.Fatalf("Frame data is not base64: %v", err)
	}
	if string(decoded) != string(first.PCM) {
		t.Error("Expected base64 data to encode the PCM bytes")
	}
	if first.MIMEType() != "audio/pcm;rate=16000" {
		t.Errorf("Expected 16kHz MIME type, got '%s'", first.MIMEType())
	}
}

func TestCaptureEncoder_RefusedFrameIsDropped(t *testing.T) {
	sink := &recordingSink{accept: false}
	enc := NewCaptureEncoder(CaptureConfig{})
	enc.Attach(sink)

	if enc.Process([]float32{0.1, 0.2}) {
		t.Error("Expected refused frame to report false")
	}

	// capture resumes on the next tick
	sink.accept = true
	if !enc.Process([]float32{0.1, 0.2}) {
		t.Error("Expected next tick to be accepted")
	}
}

func TestCaptureEncoder_Detach(t *testing.T) {
	sink := &recordingSink{accept: true}
	enc := NewCaptureEncoder(CaptureConfig{})
	enc.Attach(sink)
	enc.Detach()

	if enc.Process([]float32{0.1}) {
		t.Error("Expected frame to be dropped after detach")
	}
	if len(sink.frames) != 0 {
		t.Errorf("Expected no frames after detach, got %d", len(sink.frames))
	}
}

func TestCaptureEncoder_ResamplesToWireRate(t *testing.T) {
	sink := &recordingSink{accept: true}
	enc := NewCaptureEncoder(CaptureConfig{FrameSize: 4800, InputRate: 48000, WireRate: 16000})
	enc.Attach(sink)

	enc.Process(make([]float32, 4800))

	if len(sink.frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(sink.frames))
	}
	if got := len(sink.frames[0].PCM) / 2; got != 1600 {
		t.Errorf("Expected 1600 samples at 16kHz, got %d", got)
	}
}

func TestCaptureEncoder_EmptyTick(t *testing.T) {
	sink := &recordingSink{accept: true}
	enc := NewCaptureEncoder(CaptureConfig{})
	enc.Attach(sink)

	if enc.Process(nil) {
		t.Error("Expected empty tick to be ignored")
	}
}
