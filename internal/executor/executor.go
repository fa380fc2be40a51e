// Package executor содержит координатор выполнения: превращает одно
// срабатывание триггера в одно завершённое преобразование буфера обмена.
package executor

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"promptpilot/internal/clipboard"
	"promptpilot/internal/config"
	"promptpilot/internal/history"
	"promptpilot/internal/llm"
	"promptpilot/internal/preset"
)

// Origin - источник триггера.
type Origin int

const (
	OriginShortcut Origin = iota
	OriginManual
)

// String возвращает машинное имя источника.
func (o Origin) String() string {
	if o == OriginManual {
		return "manual"
	}
	return "shortcut"
}

// State - состояние запроса на выполнение.
type State int

const (
	StatePending State = iota
	StateReading
	StateDispatched
	StateWriting
	StateCompleted
	StateFailed
)

// Outcome - исход, доставляемый получателю уведомлений.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeRejected
)

// FailureKind классифицирует отказ для пользовательского сообщения.
type FailureKind int

const (
	FailNone FailureKind = iota
	FailEmptyInput
	FailPresetNotFound
	FailClipboardUnavailable
	FailLLMRequest
	FailAlreadyRunning
)

// String возвращает машинное имя класса отказа.
func (k FailureKind) String() string {
	switch k {
	case FailEmptyInput:
		return "empty_input"
	case FailPresetNotFound:
		return "preset_not_found"
	case FailClipboardUnavailable:
		return "clipboard_unavailable"
	case FailLLMRequest:
		return "llm_request"
	case FailAlreadyRunning:
		return "already_running"
	default:
		return "none"
	}
}

// Event - уведомление об исходе одного триггера. Каждый триггер,
// включая отклонённый, порождает ровно одно событие.
type Event struct {
	Outcome    Outcome
	Kind       FailureKind
	PresetName string
	Elapsed    time.Duration
	OutputLen  int
	Seq        uint64
	Err        error
}

// Sink получает события координатора.
type Sink interface {
	Notify(Event)
}

// Recorder пишет завершённые выполнения в журнал.
type Recorder interface {
	Append(history.Record) error
}

// ClientFactory возвращает LLM-клиент для провайдера пресета.
type ClientFactory func(provider string) (llm.Client, error)

// clipboardRetryDelay - пауза перед единственным повтором операции
// с буфером обмена.
const clipboardRetryDelay = 150 * time.Millisecond

// Coordinator выполняет запросы строго по одному: второй триггер во
// время выполнения отклоняется, не ставится в очередь.
type Coordinator struct {
	registry *preset.Registry
	gateway  clipboard.Gateway
	clients  ClientFactory
	sink     Sink

	busy     atomic.Bool
	seq      atomic.Uint64
	timeout  time.Duration
	recorder Recorder // nil если журнал выключен
}

// New создаёт координатор выполнения.
func New(registry *preset.Registry, gateway clipboard.Gateway, clients ClientFactory, sink Sink) *Coordinator {
	return &Coordinator{
		registry: registry,
		gateway:  gateway,
		clients:  clients,
		sink:     sink,
		timeout:  config.DefaultRequestTimeout,
	}
}

// SetTimeout устанавливает таймаут одного LLM-запроса.
func (c *Coordinator) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SetRecorder подключает журнал выполнений.
func (c *Coordinator) SetRecorder(r Recorder) {
	c.recorder = r
}

// request - эфемерный запрос на выполнение. Живёт от допуска триггера
// до доставки исхода.
type request struct {
	seq     uint64
	origin  Origin
	chord   config.Chord
	id      string
	text    string // подставленный текст вместо чтения буфера
	hasText bool
	state   State
	started time.Time
}

// TriggerChord обрабатывает срабатывание горячей клавиши.
func (c *Coordinator) TriggerChord(chord config.Chord) {
	c.admit(&request{origin: OriginShortcut, chord: chord})
}

// TriggerManual обрабатывает ручной запуск по идентификатору пресета.
func (c *Coordinator) TriggerManual(presetID string) {
	c.admit(&request{origin: OriginManual, id: presetID})
}

// TriggerManualName обрабатывает ручной запуск по имени пресета
// (меню трея).
func (c *Coordinator) TriggerManualName(name string) {
	p, ok := c.registry.ResolveByName(name)
	if !ok {
		// Сознательно проходим через общий путь: получим одно
		// событие с PresetNotFound
		c.admit(&request{origin: OriginManual, id: name})
		return
	}
	c.admit(&request{origin: OriginManual, id: p.ID})
}

// RunManualText запускает машину состояний с подставленным текстом
// вместо чтения буфера (кнопка "Test" в редакторе).
func (c *Coordinator) RunManualText(presetID, text string) {
	c.admit(&request{origin: OriginManual, id: presetID, text: text, hasText: true})
}

// admit - допуск триггера: единственная атомарная проверка-установка
// флага занятости. При занятом координаторе триггер отклоняется.
func (c *Coordinator) admit(req *request) {
	if !c.busy.CompareAndSwap(false, true) {
		log.Printf("Координатор занят, триггер %s отклонён", req.origin)
		c.sink.Notify(Event{
			Outcome:    OutcomeRejected,
			Kind:       FailAlreadyRunning,
			PresetName: c.presetNameFor(req),
		})
		return
	}

	req.seq = c.seq.Add(1)
	req.state = StatePending
	req.started = time.Now()

	// Сетевой вызов уходит с пути обработки ввода: хук и GUI не ждут
	go c.run(req)
}

// presetNameFor - имя пресета для события, без побочных эффектов.
func (c *Coordinator) presetNameFor(req *request) string {
	if req.origin == OriginShortcut {
		if p, ok := c.registry.Resolve(req.chord); ok {
			return p.Name
		}
		return req.chord.String()
	}
	if p, ok := c.registry.ResolveByID(req.id); ok {
		return p.Name
	}
	return req.id
}

// run проводит запрос через Reading -> Dispatched -> Writing.
// Любой отказ завершается ровно одним событием, буфер обмена при
// отказе не изменяется.
func (c *Coordinator) run(req *request) {
	defer c.busy.Store(false)

	// Reading: снимок буфера или подставленный текст
	req.state = StateReading
	var snap clipboard.Snapshot
	fromClipboard := !req.hasText
	if req.hasText {
		snap = clipboard.Snapshot{Text: req.text, CapturedAt: time.Now()}
	} else {
		var err error
		snap, err = c.readWithRetry()
		if err != nil {
			c.fail(req, preset.Preset{}, FailClipboardUnavailable, llm.Response{}, err)
			return
		}
	}

	// Пустой вход отсекается до любого сетевого вызова
	if strings.TrimSpace(snap.Text) == "" {
		c.fail(req, preset.Preset{}, FailEmptyInput, llm.Response{}, errors.New("пустой входной текст"))
		return
	}

	// Resolution
	var p preset.Preset
	var ok bool
	if req.origin == OriginShortcut {
		p, ok = c.registry.Resolve(req.chord)
	} else {
		p, ok = c.registry.ResolveByID(req.id)
	}
	if !ok {
		c.fail(req, preset.Preset{}, FailPresetNotFound, llm.Response{}, errors.New("пресет не найден, перезагрузите реестр"))
		return
	}

	// Dispatched: единственная точка ожидания в системе
	req.state = StateDispatched
	client, err := c.clients(p.Provider)
	if err != nil {
		c.fail(req, p, FailLLMRequest, llm.Response{}, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	resp, err := client.Complete(ctx, llm.Request{
		Model:       p.Model,
		Prompt:      p.BuildPrompt(snap.Text),
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		c.fail(req, p, FailLLMRequest, llm.Response{}, err)
		return
	}

	// Writing: сверяем буфер со снимком для диагностики, но пишем в
	// любом случае - контракт "доставить результат", а не "сохранить
	// параллельные правки буфера"
	req.state = StateWriting
	changed := false
	if fromClipboard {
		if cur, err := c.gateway.Read(); err == nil && cur.Text != snap.Text {
			changed = true
			log.Printf("Буфер обмена изменился за время запроса (пресет %q), пишу результат поверх", p.Name)
		}
	}

	if err := c.writeWithRetry(resp.Text); err != nil {
		// Запрос уже оплачен: токены попадают в журнал несмотря на отказ
		c.fail(req, p, FailClipboardUnavailable, resp, err)
		return
	}

	req.state = StateCompleted
	elapsed := time.Since(req.started)
	log.Printf("Выполнение #%d завершено: пресет %q, %d байт за %v", req.seq, p.Name, len(resp.Text), elapsed.Round(time.Millisecond))

	c.record(req, p, OutcomeSuccess, FailNone, resp, changed)
	c.sink.Notify(Event{
		Outcome:    OutcomeSuccess,
		PresetName: p.Name,
		Elapsed:    elapsed,
		OutputLen:  len(resp.Text),
		Seq:        req.seq,
	})
}

// fail переводит запрос в терминальное состояние Failed с одним событием.
// resp не пустой только когда сбой случился после ответа провайдера.
func (c *Coordinator) fail(req *request, p preset.Preset, kind FailureKind, resp llm.Response, err error) {
	req.state = StateFailed
	elapsed := time.Since(req.started)

	name := p.Name
	if name == "" {
		name = c.presetNameFor(req)
	}
	log.Printf("Выполнение #%d не удалось (%s): %v", req.seq, kind, err)

	c.record(req, p, OutcomeFailure, kind, resp, false)
	c.sink.Notify(Event{
		Outcome:    OutcomeFailure,
		Kind:       kind,
		PresetName: name,
		Elapsed:    elapsed,
		Seq:        req.seq,
		Err:        err,
	})
}

// record пишет терминальный исход в журнал если он подключён.
func (c *Coordinator) record(req *request, p preset.Preset, outcome Outcome, kind FailureKind, resp llm.Response, changed bool) {
	if c.recorder == nil {
		return
	}
	rec := history.Record{
		PresetName:       p.Name,
		Provider:         p.Provider,
		Model:            p.Model,
		Origin:           req.origin.String(),
		Success:          outcome == OutcomeSuccess,
		InputTokens:      resp.InputTokens,
		OutputTokens:     resp.OutputTokens,
		ElapsedMs:        time.Since(req.started).Milliseconds(),
		ClipboardChanged: changed,
	}
	if outcome != OutcomeSuccess {
		rec.ErrorKind = kind.String()
	}
	if err := c.recorder.Append(rec); err != nil {
		// Журнал не должен ронять выполнение
		log.Printf("Ошибка записи в журнал: %v", err)
	}
}

// readWithRetry читает буфер с одним повтором после короткой паузы.
func (c *Coordinator) readWithRetry() (clipboard.Snapshot, error) {
	snap, err := c.gateway.Read()
	if err == nil || !errors.Is(err, clipboard.ErrUnavailable) {
		return snap, err
	}
	time.Sleep(clipboardRetryDelay)
	return c.gateway.Read()
}

// writeWithRetry пишет в буфер с одним повтором после короткой паузы.
func (c *Coordinator) writeWithRetry(text string) error {
	err := c.gateway.Write(text)
	if err == nil || !errors.Is(err, clipboard.ErrUnavailable) {
		return err
	}
	time.Sleep(clipboardRetryDelay)
	return c.gateway.Write(text)
}
