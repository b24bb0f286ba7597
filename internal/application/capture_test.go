package application_test

import (
	"errors"
	"testing"

	"voice-call/internal/application"
	"voice-call/internal/domain"
)

func TestCaptureSession_OpenWriteClose(t *testing.T) {
	dev := newFakeDevice(nil)
	session := application.NewCaptureSession(dev, pcmEncoder{}, false, discardLogger())

	if prev, err := session.Open(t0); err != nil || prev != nil {
		t.Fatalf("Open: prev=%v err=%v", prev, err)
	}
	if _, _, recording := dev.counts(); !recording {
		t.Fatal("device not recording after Open")
	}

	for range 3 {
		if err := session.Write(frameAt(0.1, 100)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	u, err := session.Close(t0.Add(tick))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if u == nil {
		t.Fatal("Close returned no utterance")
	}
	if u.Size() != 600 {
		t.Errorf("size: got %d, want 600", u.Size())
	}
	if u.Samples != 300 {
		t.Errorf("samples: got %d, want 300", u.Samples)
	}
	if u.ID == "" {
		t.Error("utterance has no id")
	}
	if u.Duration() != tick {
		t.Errorf("duration: got %v, want %v", u.Duration(), tick)
	}
	if _, _, recording := dev.counts(); recording {
		t.Error("device still recording after Close")
	}
}

func TestCaptureSession_CloseIsIdempotent(t *testing.T) {
	dev := newFakeDevice(nil)
	session := application.NewCaptureSession(dev, pcmEncoder{}, false, discardLogger())

	if _, err := session.Open(t0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = session.Write(frameAt(0.1, 10))

	first, err := session.Close(t0)
	if err != nil || first == nil {
		t.Fatalf("first Close: u=%v err=%v", first, err)
	}
	second, err := session.Close(t0)
	if err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if second != nil {
		t.Error("second Close produced another utterance")
	}

	if _, stops, _ := dev.counts(); stops != 1 {
		t.Errorf("device stops: got %d, want 1", stops)
	}
}

func TestCaptureSession_CloseWithoutOpen(t *testing.T) {
	dev := newFakeDevice(nil)
	session := application.NewCaptureSession(dev, pcmEncoder{}, false, discardLogger())

	u, err := session.Close(t0)
	if u != nil || err != nil {
		t.Errorf("Close on idle session: u=%v err=%v", u, err)
	}
	if err := session.Discard(); err != nil {
		t.Errorf("Discard on idle session: %v", err)
	}
	if _, stops, _ := dev.counts(); stops != 0 {
		t.Errorf("device stops: got %d, want 0", stops)
	}
}

func TestCaptureSession_WriteWhenClosed(t *testing.T) {
	session := application.NewCaptureSession(newFakeDevice(nil), pcmEncoder{}, false, discardLogger())

	if err := session.Write(frameAt(0.1, 10)); !errors.Is(err, domain.ErrSessionNotOpen) {
		t.Errorf("got %v, want ErrSessionNotOpen", err)
	}
}

func TestCaptureSession_ReopenSealsPrevious(t *testing.T) {
	dev := newFakeDevice(nil)
	session := application.NewCaptureSession(dev, pcmEncoder{}, false, discardLogger())

	if _, err := session.Open(t0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = session.Write(frameAt(0.1, 50))

	prev, err := session.Open(t0.Add(tick))
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if prev == nil || prev.Size() != 100 {
		t.Fatalf("previous buffer not sealed intact: %v", prev)
	}

	_ = session.Write(frameAt(0.1, 20))
	u, err := session.Close(t0.Add(2 * tick))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if u.Size() != 40 {
		t.Errorf("new buffer size: got %d, want 40", u.Size())
	}
	if prev.ID == u.ID {
		t.Error("utterances share an id")
	}
}

func TestCaptureSession_StrictReopenFails(t *testing.T) {
	dev := newFakeDevice(nil)
	session := application.NewCaptureSession(dev, pcmEncoder{}, true, discardLogger())

	if _, err := session.Open(t0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := session.Open(t0); !errors.Is(err, domain.ErrConcurrentOpen) {
		t.Fatalf("got %v, want ErrConcurrentOpen", err)
	}
	if !session.IsOpen() {
		t.Error("first session lost after rejected Open")
	}
}

func TestCaptureSession_DeviceStartFailure(t *testing.T) {
	dev := newFakeDevice(nil)
	dev.startRecErr = errBoom
	session := application.NewCaptureSession(dev, pcmEncoder{}, false, discardLogger())

	if _, err := session.Open(t0); !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want device error", err)
	}
	if session.IsOpen() {
		t.Error("session open after failed start")
	}
}

func TestUtteranceBuffer_SealedIsImmutable(t *testing.T) {
	buf := domain.NewUtteranceBuffer(t0)
	_ = buf.Append([]int16{1, 2, 3})

	if _, err := buf.Seal(pcmEncoder{}, t0); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := buf.Append([]int16{4}); !errors.Is(err, domain.ErrBufferSealed) {
		t.Errorf("Append after seal: got %v, want ErrBufferSealed", err)
	}
	if _, err := buf.Seal(pcmEncoder{}, t0); !errors.Is(err, domain.ErrBufferSealed) {
		t.Errorf("second Seal: got %v, want ErrBufferSealed", err)
	}
}
