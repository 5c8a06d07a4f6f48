package speechgen

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/obinnaokechukwu/speechgen/engine"
	"github.com/obinnaokechukwu/speechgen/engine/enginetest"
	"github.com/obinnaokechukwu/speechgen/internal/handles"
)

func newTestBridge(t *testing.T) (*Bridge, *enginetest.SpeechEngine, *enginetest.Phonemizer) {
	t.Helper()
	se := &enginetest.SpeechEngine{}
	ph := &enginetest.Phonemizer{VoiceNames: []string{"en-us", "de"}}
	b := NewBridge(se, ph)
	t.Cleanup(func() { _ = b.Close() })
	return b, se, ph
}

func expectKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Kind != want {
		t.Fatalf("kind: got %s want %s (%v)", e.Kind, want, err)
	}
	return e
}

func TestGenerateSpeech(t *testing.T) {
	b, se, _ := newTestBridge(t)

	h, err := b.InitSpeechGeneration("model.bin")
	if err != nil {
		t.Fatalf("InitSpeechGeneration failed: %v", err)
	}
	if h == handles.Invalid || b.Len() != 1 {
		t.Fatalf("expected one live handle, got h=%s len=%d", h, b.Len())
	}

	audio, err := b.GenerateSpeech(h, "Hello")
	if err != nil {
		t.Fatalf("GenerateSpeech failed: %v", err)
	}
	if len(audio)%BytesPerSample != 0 {
		t.Fatalf("audio length %d is not a multiple of 4", len(audio))
	}
	samples, err := DecodeAudio(audio)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != len("Hello") {
		t.Fatalf("got %d samples, want %d", len(samples), len("Hello"))
	}
	if want := se.Contexts()[0].Voice; samples[0] != want {
		t.Errorf("sample: got %v want %v", samples[0], want)
	}

	rate, err := b.SampleRate(h)
	if err != nil || rate != enginetest.SampleRate {
		t.Errorf("SampleRate = %d, %v", rate, err)
	}
}

func TestGenerationParams(t *testing.T) {
	b, se, _ := newTestBridge(t)

	if _, err := b.InitSpeechGeneration("default.bin"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.InitSpeechGeneration("custom.bin", WithTemperature(0.2), WithSeed(42), WithThreads(1)); err != nil {
		t.Fatal(err)
	}

	ctxs := se.Contexts()
	if got := ctxs[0].Params; got != engine.DefaultParams() {
		t.Errorf("default params: got %+v", got)
	}
	got := ctxs[1].Params
	if got.Temperature != 0.2 || got.Seed != 42 || got.Threads != 1 {
		t.Errorf("custom params: got %+v", got)
	}
}

func TestGenerateSpeechNoAudio(t *testing.T) {
	se := &enginetest.SpeechEngine{Silent: map[string]bool{"...": true}}
	b := NewBridge(se, nil)
	defer b.Close()

	h, _ := b.InitSpeechGeneration("m")
	audio, err := b.GenerateSpeech(h, "...")
	if err != nil {
		t.Fatalf("no audio should not be an error: %v", err)
	}
	if audio == nil || len(audio) != 0 {
		t.Errorf("expected empty non-nil buffer, got %v", audio)
	}
}

func TestGenerateSpeechInconsistentOutput(t *testing.T) {
	se := &enginetest.SpeechEngine{Inconsistent: true}
	b := NewBridge(se, nil)
	defer b.Close()

	h, _ := b.InitSpeechGeneration("m")
	audio, err := b.GenerateSpeech(h, "hi")
	e := expectKind(t, err, KindEngineOperation)
	if !strings.Contains(e.Message, "invalid audio data or size") {
		t.Errorf("message: %q", e.Message)
	}
	if audio != nil {
		t.Error("no partial result may escape")
	}
}

func TestGenerateSpeechPanicIsRecovered(t *testing.T) {
	se := &enginetest.SpeechEngine{PanicOn: "crash"}
	b := NewBridge(se, nil)
	defer b.Close()

	h, _ := b.InitSpeechGeneration("m")
	_, err := b.GenerateSpeech(h, "crash")
	expectKind(t, err, KindEngineOperation)

	// The handle survives and the registry is not poisoned.
	if _, err := b.GenerateSpeech(h, "fine"); err != nil {
		t.Fatalf("generate after panic: %v", err)
	}
	if err := b.ReleaseSpeechGeneration(h); err != nil {
		t.Fatal(err)
	}
}

func TestInitSpeechGenerationEmptyPath(t *testing.T) {
	b, se, _ := newTestBridge(t)

	_, err := b.InitSpeechGeneration("")
	e := expectKind(t, err, KindInvalidInput)
	if e.Message != "model path should not be empty" {
		t.Errorf("message: %q", e.Message)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is should match ErrInvalidInput")
	}
	if b.Len() != 0 || se.Loads() != 0 {
		t.Errorf("registry must be unchanged: len=%d loads=%d", b.Len(), se.Loads())
	}
}

func TestInitSpeechGenerationLoadFailure(t *testing.T) {
	se := &enginetest.SpeechEngine{FailPaths: map[string]bool{"missing.bin": true}}
	b := NewBridge(se, nil)
	defer b.Close()

	_, err := b.InitSpeechGeneration("missing.bin")
	e := expectKind(t, err, KindEngineInit)
	if !errors.Is(err, engine.ErrLoadFailed) {
		t.Errorf("cause should be preserved, got %v", e.Err)
	}
	if b.Len() != 0 {
		t.Errorf("failed load must not register a handle, len=%d", b.Len())
	}
}

func TestInitSpeechGenerationFreesPartialContext(t *testing.T) {
	se := &enginetest.SpeechEngine{PartialPaths: map[string]bool{"half.bin": true}}
	b := NewBridge(se, nil)
	defer b.Close()

	_, err := b.InitSpeechGeneration("half.bin")
	expectKind(t, err, KindEngineInit)
	ctxs := se.Contexts()
	if len(ctxs) != 1 || ctxs[0].FreeCount() != 1 {
		t.Fatalf("context built by a failed load must be freed once, contexts=%d", len(ctxs))
	}
	if b.Len() != 0 || se.Live() != 0 {
		t.Errorf("nothing may stay alive: registry=%d engine=%d", b.Len(), se.Live())
	}
}

func TestNULByteIsInvalidInput(t *testing.T) {
	b, _, _ := newTestBridge(t)

	_, err := b.InitSpeechGeneration("model\x00.bin")
	expectKind(t, err, KindInvalidInput)

	h, _ := b.InitSpeechGeneration("model.bin")
	_, err = b.GenerateSpeech(h, "hel\x00lo")
	expectKind(t, err, KindInvalidInput)

	_ = b.InitPhonemizer("/data")
	_, err = b.Phonemize("en-us", "a\x00b")
	expectKind(t, err, KindInvalidInput)
}

func TestReleaseSpeechGeneration(t *testing.T) {
	b, se, _ := newTestBridge(t)

	h, _ := b.InitSpeechGeneration("model.bin")
	if err := b.ReleaseSpeechGeneration(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	ctx := se.Contexts()[0]
	if ctx.FreeCount() != 1 {
		t.Errorf("context freed %d times, want 1", ctx.FreeCount())
	}

	_, err := b.GenerateSpeech(h, "hi")
	expectKind(t, err, KindInvalidHandle)
	if ctx.Generates() != 0 {
		t.Error("generate must not reach a released context")
	}

	err = b.ReleaseSpeechGeneration(h)
	e := expectKind(t, err, KindInvalidHandle)
	if !strings.Contains(e.Message, "unable to free native pointer") {
		t.Errorf("message: %q", e.Message)
	}
	if ctx.FreeCount() != 1 {
		t.Errorf("double release must not free again, count=%d", ctx.FreeCount())
	}
}

func TestUnknownHandle(t *testing.T) {
	b, _, _ := newTestBridge(t)

	for _, h := range []Handle{0, -7, 12345} {
		if _, err := b.GenerateSpeech(h, "x"); KindOf(err) != KindInvalidHandle {
			t.Errorf("GenerateSpeech(%d): %v", h, err)
		}
		if err := b.ReleaseSpeechGeneration(h); KindOf(err) != KindInvalidHandle {
			t.Errorf("Release(%d): %v", h, err)
		}
	}
}

func TestConcurrentGenerationDistinctHandles(t *testing.T) {
	b, se, _ := newTestBridge(t)

	const n = 8
	hs := make([]Handle, n)
	for i := range hs {
		h, err := b.InitSpeechGeneration(fmt.Sprintf("model-%d.bin", i))
		if err != nil {
			t.Fatal(err)
		}
		hs[i] = h
	}
	ctxs := se.Contexts()

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				audio, err := b.GenerateSpeech(hs[i], "concurrent text")
				if err != nil {
					t.Errorf("handle %d: %v", i, err)
					return
				}
				samples, _ := DecodeAudio(audio)
				for _, s := range samples {
					if s != ctxs[i].Voice {
						t.Errorf("handle %d received audio from another context", i)
						return
					}
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestConcurrentReleaseAndGenerate(t *testing.T) {
	b, se, _ := newTestBridge(t)
	h, _ := b.InitSpeechGeneration("model.bin")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := b.GenerateSpeech(h, "text")
			if err != nil && KindOf(err) != KindInvalidHandle {
				t.Errorf("unexpected error: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		_ = b.ReleaseSpeechGeneration(h)
	}()
	wg.Wait()

	// Generate on a freed fake context returns ErrClosed; reaching it would
	// surface as KindEngineOperation above.
	if se.Contexts()[0].FreeCount() != 1 {
		t.Error("context should be freed exactly once")
	}
}

func TestInitPhonemizerIdempotent(t *testing.T) {
	b, _, ph := newTestBridge(t)

	if err := b.InitPhonemizer("/data"); err != nil {
		t.Fatal(err)
	}
	if err := b.InitPhonemizer("/other"); err != nil {
		t.Fatal(err)
	}
	if ph.InitCalls() != 1 {
		t.Errorf("engine initialized %d times, want 1", ph.InitCalls())
	}
	if !b.PhonemizerReady() {
		t.Error("PhonemizerReady should be true")
	}
}

func TestInitPhonemizerFailure(t *testing.T) {
	ph := &enginetest.Phonemizer{FailInit: true}
	b := NewBridge(nil, ph)
	defer b.Close()

	expectKind(t, b.InitPhonemizer("/data"), KindEngineInit)
	if b.PhonemizerReady() {
		t.Error("failed init must leave the phonemizer down")
	}

	ph.FailInit = false
	if err := b.InitPhonemizer("/data"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestPhonemizeBeforeInit(t *testing.T) {
	b, _, _ := newTestBridge(t)

	_, err := b.Phonemize("en-us", "Hello.")
	e := expectKind(t, err, KindSubsystemNotReady)
	if e.Message != "phonemizer is not initialized" {
		t.Errorf("message: %q", e.Message)
	}
	if !errors.Is(err, ErrSubsystemNotReady) {
		t.Error("errors.Is should match ErrSubsystemNotReady")
	}
}

func TestPhonemize(t *testing.T) {
	b, _, _ := newTestBridge(t)
	if err := b.InitPhonemizer("/data"); err != nil {
		t.Fatal(err)
	}

	got, err := b.Phonemize("en-us", "Hello, world.")
	if err != nil {
		t.Fatal(err)
	}
	want := [3]string{"world.", "en-us:hello", fmt.Sprint(engine.ClauseComma)}
	if got != want {
		t.Errorf("Phonemize = %q, want %q", got, want)
	}

	c, err := DecodePhonemization(got)
	if err != nil {
		t.Fatal(err)
	}
	if c.Punctuation() != ',' {
		t.Errorf("punctuation: %q", c.Punctuation())
	}
}

func TestPhonemizeEmptyText(t *testing.T) {
	b, _, _ := newTestBridge(t)
	_ = b.InitPhonemizer("/data")

	got, err := b.Phonemize("en-us", "")
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "" || got[1] != "" {
		t.Errorf("empty text should produce empty remaining and phonemes, got %q", got)
	}
	c, _ := DecodePhonemization(got)
	if !c.EndOfInput() {
		t.Errorf("terminator %q should mark end of input", got[2])
	}
}

func TestPhonemizeUnknownVoice(t *testing.T) {
	b, _, _ := newTestBridge(t)
	_ = b.InitPhonemizer("/data")

	_, err := b.Phonemize("xx-nope", "Hello.")
	e := expectKind(t, err, KindEngineOperation)
	if e.Message != "failed to set voice" {
		t.Errorf("message: %q", e.Message)
	}
	if !errors.Is(err, engine.ErrVoiceNotFound) {
		t.Error("cause should wrap engine.ErrVoiceNotFound")
	}
}

func TestConcurrentPhonemizeWithDifferentVoices(t *testing.T) {
	b, _, _ := newTestBridge(t)
	_ = b.InitPhonemizer("/data")

	var wg sync.WaitGroup
	for _, voice := range []string{"en-us", "de"} {
		wg.Add(1)
		go func(voice string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				got, err := b.Phonemize(voice, "Text")
				if err != nil {
					t.Errorf("%s: %v", voice, err)
					return
				}
				if !strings.HasPrefix(got[1], voice+":") {
					t.Errorf("voice %s produced %q", voice, got[1])
					return
				}
			}
		}(voice)
	}
	wg.Wait()
}

func TestVoices(t *testing.T) {
	b, _, _ := newTestBridge(t)

	_, err := b.Voices()
	expectKind(t, err, KindSubsystemNotReady)

	_ = b.InitPhonemizer("/data")
	voices, err := b.Voices()
	if err != nil {
		t.Fatal(err)
	}
	if len(voices) != 2 || voices[1].Name != "de" {
		t.Errorf("Voices = %+v", voices)
	}
}

func TestMissingEngines(t *testing.T) {
	b := NewBridge(nil, nil)

	_, err := b.InitSpeechGeneration("m")
	expectKind(t, err, KindEngineInit)
	expectKind(t, b.InitPhonemizer("/data"), KindEngineInit)
	_, err = b.Phonemize("en-us", "x")
	expectKind(t, err, KindEngineInit)
	_, err = b.Voices()
	if e := expectKind(t, err, KindEngineInit); e.Message != "phonemizer not configured" {
		t.Errorf("Voices message: %q", e.Message)
	}
	if b.PhonemizerReady() {
		t.Error("a bridge without a phonemizer is never ready")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBridgesShareGlobalPhonemizer(t *testing.T) {
	ph := &enginetest.Phonemizer{VoiceNames: []string{"en-us", "de"}}
	a := NewBridge(nil, ph)
	b := NewBridge(nil, ph)
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })

	if err := a.InitPhonemizer("/data"); err != nil {
		t.Fatal(err)
	}
	if !b.PhonemizerReady() {
		t.Error("the engine is process-wide: b should see it initialized")
	}
	if err := b.InitPhonemizer("/data"); err != nil {
		t.Fatal(err)
	}
	if ph.InitCalls() != 1 {
		t.Errorf("engine initialized %d times, want 1", ph.InitCalls())
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if ph.TerminateCalls() != 0 {
		t.Fatal("engine terminated while another bridge still holds it")
	}
	if _, err := b.Phonemize("en-us", "hello"); err != nil {
		t.Fatalf("phonemize after the other bridge closed: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if ph.TerminateCalls() != 1 {
		t.Errorf("last owner should terminate the engine once, got %d", ph.TerminateCalls())
	}
	if a.PhonemizerReady() || b.PhonemizerReady() {
		t.Error("no bridge may report ready after the engine is terminated")
	}
	if _, err := a.Phonemize("en-us", "hello"); KindOf(err) != KindSubsystemNotReady {
		t.Errorf("phonemize after teardown: %v", err)
	}
}

func TestBridgesSerializeSharedPhonemizer(t *testing.T) {
	ph := &enginetest.Phonemizer{VoiceNames: []string{"en-us", "de"}}
	bridges := []*Bridge{NewBridge(nil, ph), NewBridge(nil, ph)}
	for _, b := range bridges {
		b := b
		t.Cleanup(func() { _ = b.Close() })
		if err := b.InitPhonemizer("/data"); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i, voice := range []string{"en-us", "de"} {
		wg.Add(1)
		go func(b *Bridge, voice string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := b.Phonemize(voice, "Text")
				if err != nil {
					t.Errorf("%s: %v", voice, err)
					return
				}
				if !strings.HasPrefix(got[1], voice+":") {
					t.Errorf("voice %s produced %q", voice, got[1])
					return
				}
			}
		}(bridges[i], voice)
	}
	wg.Wait()
}

func TestCloseWithoutInitLeavesEngineUp(t *testing.T) {
	ph := &enginetest.Phonemizer{}
	owner := NewBridge(nil, ph)
	bystander := NewBridge(nil, ph)
	t.Cleanup(func() { _ = owner.Close() })

	if err := owner.InitPhonemizer("/data"); err != nil {
		t.Fatal(err)
	}
	if err := bystander.Close(); err != nil {
		t.Fatal(err)
	}
	if ph.TerminateCalls() != 0 || !owner.PhonemizerReady() {
		t.Error("a bridge that never initialized the engine must not shut it down")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	se := &enginetest.SpeechEngine{}
	ph := &enginetest.Phonemizer{}
	b := NewBridge(se, ph, WithLogger(zap.New(core)))

	for i := 0; i < 3; i++ {
		if _, err := b.InitSpeechGeneration(fmt.Sprintf("m%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	_ = b.InitPhonemizer("/data")

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if se.Live() != 0 || b.Len() != 0 {
		t.Errorf("live contexts after Close: engine=%d registry=%d", se.Live(), b.Len())
	}
	if ph.TerminateCalls() != 1 {
		t.Errorf("Terminate called %d times", ph.TerminateCalls())
	}
	if logs.FilterMessage("released leaked speech contexts at teardown").Len() != 1 {
		t.Error("expected a leak warning")
	}

	// The bridge can be used again after teardown.
	if _, err := b.Phonemize("en-us", "x"); KindOf(err) != KindSubsystemNotReady {
		t.Errorf("phonemize after Close: %v", err)
	}
	if err := b.InitPhonemizer("/data"); err != nil {
		t.Fatal(err)
	}
	if ph.InitCalls() != 2 {
		t.Errorf("re-init after Close should reach the engine, calls=%d", ph.InitCalls())
	}
	if _, err := b.InitSpeechGeneration("again"); err != nil {
		t.Fatal(err)
	}
	_ = b.Close()
}

func TestVoicesFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := NewBridge(nil, nil, WithLogger(zap.New(core)))

	_, _ = b.Voices()
	entries := logs.FilterMessage("operation failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["op"] != "list voices" {
		t.Fatalf("expected one list voices failure entry, got %d", len(entries))
	}
}

func TestFailuresAreLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewBridge(&enginetest.SpeechEngine{}, nil, WithLogger(zap.New(core)))
	defer b.Close()

	_, _ = b.InitSpeechGeneration("")

	entries := logs.FilterMessage("operation failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["op"] != "init speech generation" || fields["kind"] != "invalid input" {
		t.Errorf("fields: %v", fields)
	}
	if fields["bridge"] != b.ID() {
		t.Errorf("bridge field %v, want %s", fields["bridge"], b.ID())
	}
}
