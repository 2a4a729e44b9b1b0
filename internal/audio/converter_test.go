package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"silence", 0, 0},
		{"half", 0.5, 16384},
		{"negative half", -0.5, -16384},
		{"full scale clamps", 1.0, 32767},
		{"negative full scale", -1.0, -32768},
		{"over range clamps", 1.7, 32767},
		{"under range clamps", -3, -32768},
		{"truncates toward zero", 0.00005, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := FloatToPCM16([]float32{tt.sample})
			if len(pcm) != 2 {
				t.Fatalf("Expected 2 bytes, got %d", len(pcm))
			}
			got := int16(binary.LittleEndian.Uint16(pcm))
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestFloatToPCM16_NaN(t *testing.T) {
	pcm := FloatToPCM16([]float32{float32(math.NaN())})
	if got := int16(binary.LittleEndian.Uint16(pcm)); got != 0 {
		t.Errorf("Expected NaN to quantize to 0, got %d", got)
	}
}

func TestPCM16ToFloat(t *testing.T) {
	pcm := SamplesToBytes([]int16{0, 16384, -32768})
	samples, err := PCM16ToFloat(pcm)
	if err != nil {
		t.Fatalf("PCM16ToFloat failed: %v", err)
	}
	want := []float32{0, 0.5, -1}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("Expected %f at index %d, got %f", want[i], i, samples[i])
		}
	}
}

func TestPCM16ToFloat_Invalid(t *testing.T) {
	if _, err := PCM16ToFloat(nil); err == nil {
		t.Error("Expected error for empty data")
	}
	if _, err := PCM16ToFloat([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for odd length data")
	}
}

func TestBytesToSamples(t *testing.T) {
	bytes := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	samples, err := BytesToSamples(bytes)
	if err != nil {
		t.Fatalf("BytesToSamples failed: %v", err)
	}

	expected := []int16{0, 32767, -32768}
	if len(samples) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(samples))
	}
	for i, exp := range expected {
		if samples[i] != exp {
			t.Errorf("Expected sample %d at index %d, got %d", exp, i, samples[i])
		}
	}
}

func TestSamplesToBytes(t *testing.T) {
	bytes := SamplesToBytes([]int16{0, 32767, -32768})

	expected := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	if len(bytes) != len(expected) {
		t.Fatalf("Expected %d bytes, got %d", len(expected), len(bytes))
	}
	for i, exp := range expected {
		if bytes[i] != exp {
			t.Errorf("Expected byte %d at index %d, got %d", exp, i, bytes[i])
		}
	}
}

func TestDecodeFloat32LE(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(-1))

	samples, err := DecodeFloat32LE(data)
	if err != nil {
		t.Fatalf("DecodeFloat32LE failed: %v", err)
	}
	if len(samples) != 2 || samples[0] != 0.25 || samples[1] != -1 {
		t.Errorf("Unexpected samples: %v", samples)
	}

	if _, err := DecodeFloat32LE([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated float data")
	}
}

func TestBase64RoundTrip(t *testing.T) {
	pcm := SamplesToBytes([]int16{1, -1, 1000})
	decoded, err := DecodeBase64(EncodeBase64(pcm))
	if err != nil {
		t.Fatalf("DecodeBase64 failed: %v", err)
	}
	if string(decoded) != string(pcm) {
		t.Error("Expected decoded payload to match original PCM")
	}

	if _, err := DecodeBase64("%%%not-base64"); err == nil {
		t.Error("Expected error for invalid base64")
	}
}

func TestResample(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = float32(i) / 100
	}

	// 8kHz to 16kHz should double
	resampled := Resample(samples, 8000, 16000)
	if len(resampled) < 180 || len(resampled) > 220 {
		t.Errorf("Expected resampled length around 200, got %d", len(resampled))
	}

	// 48kHz to 16kHz should third
	resampled2 := Resample(samples, 48000, 16000)
	if len(resampled2) != 33 {
		t.Errorf("Expected resampled length 33, got %d", len(resampled2))
	}

	// Same rate should return unchanged
	resampled3 := Resample(samples, 16000, 16000)
	if len(resampled3) != len(samples) {
		t.Errorf("Expected unchanged length %d, got %d", len(samples), len(resampled3))
	}
}

func TestCaptureMIMEType(t *testing.T) {
	if got := CaptureMIMEType(16000); got != "audio/pcm;rate=16000" {
		t.Errorf("Expected 'audio/pcm;rate=16000', got '%s'", got)
	}
}

func TestCalculateRMS(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.5, -0.5}
	rms := CalculateRMS(samples)
	if math.Abs(rms-0.5) > 1e-9 {
		t.Errorf("Expected RMS 0.5, got %f", rms)
	}
}

func TestCalculateRMS_Empty(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0.0 {
		t.Errorf("Expected RMS 0.0 for empty slice, got %.2f", rms)
	}
}
