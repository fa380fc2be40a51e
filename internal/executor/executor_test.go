package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"promptpilot/internal/clipboard"
	"promptpilot/internal/config"
	"promptpilot/internal/history"
	"promptpilot/internal/llm"
	"promptpilot/internal/preset"
)

// fakeGateway - буфер обмена в памяти с управляемыми отказами.
type fakeGateway struct {
	mu         sync.Mutex
	text       string
	reads      int
	writes     int
	failReads  int
	failWrites int
}

func (g *fakeGateway) Read() (clipboard.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reads++
	if g.failReads > 0 {
		g.failReads--
		return clipboard.Snapshot{}, clipboard.ErrUnavailable
	}
	return clipboard.Snapshot{Text: g.text, CapturedAt: time.Now()}, nil
}

func (g *fakeGateway) Write(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWrites > 0 {
		g.failWrites--
		return clipboard.ErrUnavailable
	}
	g.writes++
	g.text = text
	return nil
}

func (g *fakeGateway) Text() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.text
}

func (g *fakeGateway) SetText(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.text = text
}

func (g *fakeGateway) Reads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reads
}

// stubClient - LLM-клиент с фиксированным ответом и счётчиком вызовов.
type stubClient struct {
	mu       sync.Mutex
	response llm.Response
	err      error
	calls    int
	lastReq  llm.Request
	started  chan struct{} // закрывается при первом вызове
	release  chan struct{} // nil - не блокировать
}

func newStubClient(text string) *stubClient {
	return &stubClient{
		response: llm.Response{Text: text, InputTokens: 10, OutputTokens: 5, Elapsed: 100 * time.Millisecond},
		started:  make(chan struct{}),
	}
}

func (s *stubClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	s.calls++
	s.lastReq = req
	if s.calls == 1 {
		close(s.started)
	}
	release := s.release
	s.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return llm.Response{}, ctx.Err()
		}
	}
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return s.response, nil
}

func (s *stubClient) Provider() string { return "openai" }

func (s *stubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubClient) LastRequest() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

// chanSink доставляет события в канал для синхронизации теста.
type chanSink struct {
	events chan Event
}

func newChanSink() *chanSink {
	return &chanSink{events: make(chan Event, 16)}
}

func (s *chanSink) Notify(ev Event) {
	s.events <- ev
}

func (s *chanSink) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("событие не пришло за 5с")
		return Event{}
	}
}

func (s *chanSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-s.events:
		t.Fatalf("неожиданное событие: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// memRecorder - журнал в памяти.
type memRecorder struct {
	mu      sync.Mutex
	records []history.Record
}

func (r *memRecorder) Append(rec history.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) Records() []history.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]history.Record, len(r.records))
	copy(out, r.records)
	return out
}

func spanishChord() config.Chord {
	return config.Chord{Modifiers: []config.Modifier{config.ModCtrl, config.ModShift}, Key: config.KeyS}
}

func spanishPreset() preset.Preset {
	return preset.Preset{
		ID:          "preset-spanish",
		Name:        "Spanish",
		Chord:       spanishChord(),
		Provider:    "openai",
		Model:       "gpt-4",
		Prompt:      "Translate to Spanish: {text}",
		Temperature: 0.3,
		MaxTokens:   512,
	}
}

func newTestCoordinator(presets []preset.Preset, client llm.Client) (*Coordinator, *fakeGateway, *chanSink) {
	registry := preset.NewRegistry()
	registry.Load(presets)

	gateway := &fakeGateway{}
	sink := newChanSink()

	coord := New(registry, gateway, func(provider string) (llm.Client, error) {
		return client, nil
	}, sink)
	return coord, gateway, sink
}

func TestShortcutSuccessScenario(t *testing.T) {
	client := newStubClient("Hola mundo")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello world")

	coord.TriggerChord(spanishChord())

	ev := sink.next(t)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, "Spanish", ev.PresetName)
	assert.Equal(t, len("Hola mundo"), ev.OutputLen)
	assert.Equal(t, "Hola mundo", gateway.Text())
	assert.Equal(t, 1, client.Calls())
	assert.Equal(t, "Translate to Spanish: Hello world", client.LastRequest().Prompt)
	assert.Equal(t, "gpt-4", client.LastRequest().Model)
}

func TestEmptyClipboardNoLLMCall(t *testing.T) {
	client := newStubClient("Hola mundo")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("")

	coord.TriggerChord(spanishChord())

	ev := sink.next(t)
	assert.Equal(t, OutcomeFailure, ev.Outcome)
	assert.Equal(t, FailEmptyInput, ev.Kind)
	assert.Equal(t, 0, client.Calls(), "пустой вход не должен тратить токены")
	assert.Equal(t, "", gateway.Text(), "буфер не изменяется при отказе")
}

func TestWhitespaceOnlyClipboardIsEmpty(t *testing.T) {
	client := newStubClient("x")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("   \n\t ")

	coord.TriggerChord(spanishChord())

	ev := sink.next(t)
	assert.Equal(t, FailEmptyInput, ev.Kind)
	assert.Equal(t, 0, client.Calls())
}

func TestAtMostOneInFlight(t *testing.T) {
	client := newStubClient("Hola mundo")
	client.release = make(chan struct{})
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello world")

	// Первый триггер зависает в сетевом вызове
	coord.TriggerChord(spanishChord())
	<-client.started

	// Второй отклоняется, не ставится в очередь
	coord.TriggerChord(spanishChord())
	rejected := sink.next(t)
	assert.Equal(t, OutcomeRejected, rejected.Outcome)
	assert.Equal(t, FailAlreadyRunning, rejected.Kind)

	// Ровно один терминальный переход
	close(client.release)
	terminal := sink.next(t)
	assert.Equal(t, OutcomeSuccess, terminal.Outcome)
	sink.expectNone(t)

	assert.Equal(t, 1, client.Calls())
	assert.Equal(t, "Hola mundo", gateway.Text())
}

func TestBusyFlagResetsAfterEveryTerminal(t *testing.T) {
	client := newStubClient("out")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)

	// N последовательных триггеров: каждый должен быть допущен
	const n = 5
	for i := 0; i < n; i++ {
		gateway.SetText("input")
		coord.TriggerChord(spanishChord())
		ev := sink.next(t)
		require.Equal(t, OutcomeSuccess, ev.Outcome, "триггер %d должен быть допущен", i+1)
		require.Equal(t, uint64(i+1), ev.Seq, "номера должны быть монотонны и без пропусков")
	}
	assert.Equal(t, n, client.Calls())
}

func TestBusyFlagResetsAfterFailure(t *testing.T) {
	client := newStubClient("")
	client.err = &llm.RequestError{Provider: "openai", Kind: llm.KindTimeout, Err: errors.New("deadline")}
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello")

	coord.TriggerChord(spanishChord())
	ev := sink.next(t)
	require.Equal(t, OutcomeFailure, ev.Outcome)

	// После отказа координатор снова свободен
	client.err = nil
	client.response = llm.Response{Text: "ok"}
	gateway.SetText("Hello")
	coord.TriggerChord(spanishChord())
	ev = sink.next(t)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
}

func TestLLMFailureLeavesClipboardUntouched(t *testing.T) {
	kinds := []llm.ErrorKind{llm.KindTimeout, llm.KindAuth, llm.KindRateLimited}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			client := newStubClient("")
			client.err = &llm.RequestError{Provider: "openai", Kind: kind, Err: errors.New("simulated")}
			coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
			gateway.SetText("original content")

			coord.TriggerChord(spanishChord())

			ev := sink.next(t)
			assert.Equal(t, OutcomeFailure, ev.Outcome)
			assert.Equal(t, FailLLMRequest, ev.Kind)

			var reqErr *llm.RequestError
			require.ErrorAs(t, ev.Err, &reqErr)
			assert.Equal(t, kind, reqErr.Kind)
			assert.Equal(t, "original content", gateway.Text(), "буфер не должен меняться при отказе LLM")
		})
	}
}

func TestConcurrentClipboardChangeStillWrites(t *testing.T) {
	client := newStubClient("Hola mundo")
	client.release = make(chan struct{})
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello world")

	coord.TriggerChord(spanishChord())
	<-client.started

	// Пользователь скопировал другой текст пока шёл запрос
	gateway.SetText("something else entirely")
	close(client.release)

	ev := sink.next(t)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	// Контракт: результат доставляется байт-в-байт несмотря на чужую запись
	assert.Equal(t, "Hola mundo", gateway.Text())
}

func TestCrossResolution(t *testing.T) {
	other := spanishPreset()
	other.ID = "preset-summary"
	other.Name = "Summary"
	other.Model = "gpt-3.5-turbo"
	other.Chord = config.Chord{Modifiers: []config.Modifier{config.ModCtrl, config.ModShift}, Key: config.KeyR}
	other.Prompt = "Summarize: {text}"

	client := newStubClient("out")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset(), other}, client)

	gateway.SetText("text one")
	coord.TriggerChord(spanishChord())
	ev := sink.next(t)
	require.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, "Spanish", ev.PresetName)
	assert.Equal(t, "gpt-4", client.LastRequest().Model)

	gateway.SetText("text two")
	coord.TriggerChord(other.Chord)
	ev = sink.next(t)
	require.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, "Summary", ev.PresetName)
	assert.Equal(t, "gpt-3.5-turbo", client.LastRequest().Model)
	assert.Equal(t, "Summarize: text two", client.LastRequest().Prompt)
}

func TestPresetNotFound(t *testing.T) {
	client := newStubClient("out")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello")

	unbound := config.Chord{Modifiers: []config.Modifier{config.ModCtrl}, Key: config.KeyX}
	coord.TriggerChord(unbound)

	ev := sink.next(t)
	assert.Equal(t, OutcomeFailure, ev.Outcome)
	assert.Equal(t, FailPresetNotFound, ev.Kind)
	assert.Equal(t, 0, client.Calls())
}

func TestTriggerManualNameUnknown(t *testing.T) {
	client := newStubClient("out")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello")

	coord.TriggerManualName("Nope")

	ev := sink.next(t)
	assert.Equal(t, OutcomeFailure, ev.Outcome)
	assert.Equal(t, FailPresetNotFound, ev.Kind)
}

func TestTriggerManualByID(t *testing.T) {
	client := newStubClient("Hola mundo")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello world")

	coord.TriggerManual("preset-spanish")

	ev := sink.next(t)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, "Spanish", ev.PresetName)
}

func TestRunManualTextSkipsClipboardRead(t *testing.T) {
	client := newStubClient("Hola mundo")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("unrelated clipboard content")

	coord.RunManualText("preset-spanish", "dummy test input")

	ev := sink.next(t)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, 0, gateway.Reads(), "источник текста задан явно, буфер не читается")
	assert.Equal(t, "Translate to Spanish: dummy test input", client.LastRequest().Prompt)
	assert.Equal(t, "Hola mundo", gateway.Text())
}

func TestRunManualTextEmpty(t *testing.T) {
	client := newStubClient("out")
	coord, _, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)

	coord.RunManualText("preset-spanish", "")

	ev := sink.next(t)
	assert.Equal(t, FailEmptyInput, ev.Kind)
	assert.Equal(t, 0, client.Calls())
}

func TestClipboardReadRetriesOnce(t *testing.T) {
	client := newStubClient("Hola mundo")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello world")
	gateway.failReads = 1 // первый Read падает, повтор успешен

	coord.TriggerChord(spanishChord())

	ev := sink.next(t)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, "Hola mundo", gateway.Text())
}

func TestClipboardPersistentlyUnavailable(t *testing.T) {
	client := newStubClient("out")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	gateway.SetText("Hello")
	gateway.failReads = 2 // и первый Read, и повтор

	coord.TriggerChord(spanishChord())

	ev := sink.next(t)
	assert.Equal(t, OutcomeFailure, ev.Outcome)
	assert.Equal(t, FailClipboardUnavailable, ev.Kind)
	assert.Equal(t, 0, client.Calls())
}

func TestRecorderReceivesTerminalOutcomes(t *testing.T) {
	client := newStubClient("Hola mundo")
	client.release = make(chan struct{})
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	rec := &memRecorder{}
	coord.SetRecorder(rec)
	gateway.SetText("Hello world")

	coord.TriggerChord(spanishChord())
	<-client.started

	// Отклонённый триггер в журнал не попадает
	coord.TriggerChord(spanishChord())
	_ = sink.next(t) // rejected

	close(client.release)
	_ = sink.next(t) // success

	records := rec.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Spanish", records[0].PresetName)
	assert.Equal(t, "shortcut", records[0].Origin)
	assert.True(t, records[0].Success)
	assert.Equal(t, 10, records[0].InputTokens)
	assert.Equal(t, 5, records[0].OutputTokens)
	assert.Empty(t, records[0].ErrorKind)
}

func TestRecorderKeepsTokensOnWriteFailure(t *testing.T) {
	// Ответ провайдера уже оплачен: отказ записи в буфер не должен
	// терять счётчики токенов в журнале
	client := newStubClient("Hola mundo")
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	rec := &memRecorder{}
	coord.SetRecorder(rec)
	gateway.SetText("Hello world")
	gateway.failWrites = 2 // и запись, и повтор

	coord.TriggerChord(spanishChord())

	ev := sink.next(t)
	require.Equal(t, OutcomeFailure, ev.Outcome)
	require.Equal(t, FailClipboardUnavailable, ev.Kind)

	records := rec.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "clipboard_unavailable", records[0].ErrorKind)
	assert.Equal(t, 10, records[0].InputTokens)
	assert.Equal(t, 5, records[0].OutputTokens)
}

func TestRecorderReceivesFailureKind(t *testing.T) {
	client := newStubClient("")
	client.err = &llm.RequestError{Provider: "openai", Kind: llm.KindAuth, Err: errors.New("bad key")}
	coord, gateway, sink := newTestCoordinator([]preset.Preset{spanishPreset()}, client)
	rec := &memRecorder{}
	coord.SetRecorder(rec)
	gateway.SetText("Hello")

	coord.TriggerChord(spanishChord())
	_ = sink.next(t)

	records := rec.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "llm_request", records[0].ErrorKind)
}

func TestClientFactoryErrorFailsRequest(t *testing.T) {
	registry := preset.NewRegistry()
	registry.Load([]preset.Preset{spanishPreset()})
	gateway := &fakeGateway{text: "Hello"}
	sink := newChanSink()

	coord := New(registry, gateway, func(provider string) (llm.Client, error) {
		return nil, errors.New("учётные данные провайдера не настроены")
	}, sink)

	coord.TriggerChord(spanishChord())

	ev := sink.next(t)
	assert.Equal(t, OutcomeFailure, ev.Outcome)
	assert.Equal(t, FailLLMRequest, ev.Kind)
	assert.Equal(t, "Hello", gateway.Text())
}
