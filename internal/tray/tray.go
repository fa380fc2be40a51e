// Package tray предоставляет системный трей с меню.
package tray

import (
	"sync"

	"promptpilot/embedded"
	"promptpilot/internal/i18n"

	"github.com/getlantern/systray"
)

// State представляет состояние приложения для отображения в трее.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// maxPresetSlots - ёмкость меню пресетов. systray не умеет удалять
// пункты, поэтому слоты создаются заранее и скрываются.
const maxPresetSlots = 16

// Callbacks содержит обработчики событий меню.
type Callbacks struct {
	OnPresetRun           func(name string)
	OnReload              func()
	OnNotificationsToggle func() bool
	OnLanguageSelect      func(lang string)
	OnQuit                func()
}

// Tray управляет иконкой в системном трее.
type Tray struct {
	callbacks Callbacks

	status      *systray.MenuItem
	statsLine   *systray.MenuItem
	presetsMenu *systray.MenuItem
	slots       []*systray.MenuItem
	reloadBtn   *systray.MenuItem
	notifyOn    *systray.MenuItem
	langMenu    *systray.MenuItem
	langRu      *systray.MenuItem
	langEn      *systray.MenuItem
	quitBtn     *systray.MenuItem

	// slotNames пишется из SetPresets (перечитка пресетов) и читается
	// из горутин слотов по клику
	slotMu    sync.Mutex
	slotNames []string

	notifyEnabled bool
}

// New создаёт новый Tray.
func New(callbacks Callbacks, notifyEnabled bool) *Tray {
	return &Tray{
		callbacks:     callbacks,
		notifyEnabled: notifyEnabled,
		slotNames:     make([]string, maxPresetSlots),
	}
}

// slotName возвращает имя пресета в слоте меню.
func (t *Tray) slotName(i int) string {
	t.slotMu.Lock()
	defer t.slotMu.Unlock()
	return t.slotNames[i]
}

// setSlotName записывает имя пресета в слот меню.
func (t *Tray) setSlotName(i int, name string) {
	t.slotMu.Lock()
	defer t.slotMu.Unlock()
	t.slotNames[i] = name
}

// Run запускает системный трей. Блокирующая функция.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		t.onReady()
		if onReady != nil {
			onReady()
		}
	}, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(embedded.IconIdle)
	systray.SetTitle("PromptPilot")
	systray.SetTooltip(i18n.T("app_tooltip"))

	// Статус
	t.status = systray.AddMenuItem(i18n.T("tray_ready"), "")
	t.status.Disable()

	// Статистика за день
	t.statsLine = systray.AddMenuItem(i18n.T("tray_stats_none"), "")
	t.statsLine.Disable()

	systray.AddSeparator()

	// Пресеты: ручной запуск на текущем буфере
	t.presetsMenu = systray.AddMenuItem(i18n.T("tray_presets"), i18n.T("tray_presets_hint"))
	t.slots = make([]*systray.MenuItem, maxPresetSlots)
	for i := range t.slots {
		t.slots[i] = t.presetsMenu.AddSubMenuItem("", "")
		t.slots[i].Hide()
	}

	// Перечитать presets.json
	t.reloadBtn = systray.AddMenuItem(i18n.T("tray_reload"), i18n.T("tray_reload_hint"))

	systray.AddSeparator()

	// Уведомления
	t.notifyOn = systray.AddMenuItemCheckbox(i18n.T("tray_notifications"), i18n.T("tray_notifications_hint"), t.notifyEnabled)

	// Язык интерфейса
	t.langMenu = systray.AddMenuItem(i18n.T("tray_language"), "")
	t.langRu = t.langMenu.AddSubMenuItem(i18n.T("tray_lang_ru"), "")
	t.langEn = t.langMenu.AddSubMenuItem(i18n.T("tray_lang_en"), "")

	systray.AddSeparator()

	// Выход
	t.quitBtn = systray.AddMenuItem(i18n.T("tray_quit"), i18n.T("tray_quit_hint"))

	// Обработка событий меню
	go t.handleMenuEvents()
	for i := range t.slots {
		go t.handleSlotEvents(i)
	}
}

func (t *Tray) handleMenuEvents() {
	for {
		select {
		// Перечитать пресеты
		case <-t.reloadBtn.ClickedCh:
			if t.callbacks.OnReload != nil {
				t.callbacks.OnReload()
			}

		// Уведомления
		case <-t.notifyOn.ClickedCh:
			if t.callbacks.OnNotificationsToggle != nil {
				enabled := t.callbacks.OnNotificationsToggle()
				if enabled {
					t.notifyOn.Check()
				} else {
					t.notifyOn.Uncheck()
				}
			}

		// Язык интерфейса
		case <-t.langRu.ClickedCh:
			t.selectLanguage("ru")
		case <-t.langEn.ClickedCh:
			t.selectLanguage("en")

		// Выход
		case <-t.quitBtn.ClickedCh:
			if t.callbacks.OnQuit != nil {
				t.callbacks.OnQuit()
			}
			systray.Quit()
		}
	}
}

func (t *Tray) selectLanguage(lang string) {
	if t.callbacks.OnLanguageSelect != nil {
		t.callbacks.OnLanguageSelect(lang)
	}
	t.RefreshUI()
}

func (t *Tray) handleSlotEvents(i int) {
	for range t.slots[i].ClickedCh {
		name := t.slotName(i)
		if name != "" && t.callbacks.OnPresetRun != nil {
			t.callbacks.OnPresetRun(name)
		}
	}
}

// SetPresets заполняет меню пресетов. Лишние имена за пределами
// ёмкости меню молча отбрасываются.
func (t *Tray) SetPresets(names []string) {
	if t.slots == nil {
		return
	}
	for i := range t.slots {
		if i < len(names) {
			t.setSlotName(i, names[i])
			t.slots[i].SetTitle(names[i])
			t.slots[i].Show()
		} else {
			t.setSlotName(i, "")
			t.slots[i].Hide()
		}
	}
}

// SetStats обновляет строку статистики за день.
func (t *Tray) SetStats(text string) {
	if t.statsLine == nil {
		return
	}
	if text == "" {
		text = i18n.T("tray_stats_none")
	}
	t.statsLine.SetTitle(text)
}

// SetState устанавливает состояние приложения и обновляет иконку.
func (t *Tray) SetState(state State) {
	switch state {
	case StateIdle:
		systray.SetIcon(embedded.IconIdle)
		systray.SetTooltip("PromptPilot - " + i18n.T("tray_ready"))
		if t.status != nil {
			t.status.SetTitle(i18n.T("tray_ready"))
		}
	case StateRunning:
		systray.SetIcon(embedded.IconRunning)
		systray.SetTooltip("PromptPilot - " + i18n.T("tray_running"))
		if t.status != nil {
			t.status.SetTitle(i18n.T("tray_running"))
		}
	case StateError:
		systray.SetIcon(embedded.IconError)
		systray.SetTooltip("PromptPilot - " + i18n.T("notify_error"))
		if t.status != nil {
			t.status.SetTitle(i18n.T("notify_error"))
		}
	}
}

func (t *Tray) onExit() {
	// Cleanup при выходе
}

// Quit закрывает системный трей.
func (t *Tray) Quit() {
	systray.Quit()
}

// RefreshUI обновляет все тексты меню на текущем языке.
func (t *Tray) RefreshUI() {
	systray.SetTooltip(i18n.T("app_tooltip"))

	if t.status != nil {
		t.status.SetTitle(i18n.T("tray_ready"))
	}
	if t.presetsMenu != nil {
		t.presetsMenu.SetTitle(i18n.T("tray_presets"))
		t.presetsMenu.SetTooltip(i18n.T("tray_presets_hint"))
	}
	if t.reloadBtn != nil {
		t.reloadBtn.SetTitle(i18n.T("tray_reload"))
		t.reloadBtn.SetTooltip(i18n.T("tray_reload_hint"))
	}
	if t.notifyOn != nil {
		t.notifyOn.SetTitle(i18n.T("tray_notifications"))
		t.notifyOn.SetTooltip(i18n.T("tray_notifications_hint"))
	}
	if t.langMenu != nil {
		t.langMenu.SetTitle(i18n.T("tray_language"))
	}
	if t.quitBtn != nil {
		t.quitBtn.SetTitle(i18n.T("tray_quit"))
		t.quitBtn.SetTooltip(i18n.T("tray_quit_hint"))
	}
}
