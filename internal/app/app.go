// Package app содержит основную логику приложения.
package app

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"promptpilot/internal/clipboard"
	"promptpilot/internal/config"
	"promptpilot/internal/credentials"
	"promptpilot/internal/dialog"
	"promptpilot/internal/executor"
	"promptpilot/internal/history"
	"promptpilot/internal/hotkey"
	"promptpilot/internal/i18n"
	"promptpilot/internal/llm"
	"promptpilot/internal/notify"
	"promptpilot/internal/preset"
	"promptpilot/internal/tray"
)

// App представляет главное приложение.
type App struct {
	mu          sync.Mutex
	config      *config.Config
	credentials *credentials.Store
	presets     *preset.Store
	registry    *preset.Registry
	listener    *hotkey.Listener
	notifier    *notify.Notifier
	coordinator *executor.Coordinator
	history     *history.Store // nil если журнал выключен
	tray        *tray.Tray

	permissionWarned bool // диалог о правах показываем один раз
}

// New создаёт новое приложение.
func New() (*App, error) {
	cfg := config.New()

	// Инициализируем язык интерфейса из конфига
	if uiLang := cfg.UILanguage(); uiLang != "" {
		i18n.SetLanguage(i18n.Language(uiLang))
	}

	app := &App{
		config:      cfg,
		credentials: credentials.NewStore(cfg.Dir()),
		presets:     preset.NewStore(cfg.Dir()),
		registry:    preset.NewRegistry(),
		listener:    hotkey.New(),
		notifier:    notify.New(cfg.NotificationsEnabled()),
	}

	presets, err := app.presets.Load()
	if err != nil {
		// Битый presets.json не должен мешать запуску: пресеты можно
		// поправить и перечитать из меню
		log.Printf("Ошибка загрузки пресетов: %v", err)
		app.notifier.Error(i18n.T("error_presets_load"))
	}
	app.registry.Load(presets)

	app.coordinator = executor.New(app.registry, clipboard.NewSystem(), app.clientFor, app)
	app.coordinator.SetTimeout(cfg.RequestTimeout())

	if cfg.HistoryEnabled() {
		hist, err := history.Open(cfg.Dir())
		if err != nil {
			log.Printf("Ошибка открытия журнала выполнений: %v", err)
		} else {
			app.history = hist
			app.coordinator.SetRecorder(hist)
		}
	}

	// Создаём системный трей с обработчиками
	app.tray = tray.New(tray.Callbacks{
		OnPresetRun: func(name string) {
			app.tray.SetState(tray.StateRunning)
			app.coordinator.TriggerManualName(name)
		},
		OnReload: app.reloadPresets,
		OnNotificationsToggle: func() bool {
			enabled := app.config.ToggleNotifications()
			app.notifier.SetEnabled(enabled)
			return enabled
		},
		OnLanguageSelect: func(lang string) {
			app.config.SetUILanguage(lang)
			i18n.SetLanguage(i18n.Language(lang))
		},
		OnQuit: func() {
			app.Close()
		},
	}, cfg.NotificationsEnabled())

	return app, nil
}

// clientFor возвращает LLM-клиент провайдера. Координатору передаётся
// только идентификатор провайдера: сырой ключ не покидает хранилище.
func (a *App) clientFor(provider string) (llm.Client, error) {
	b, err := a.credentials.Get(provider)
	if err != nil {
		return nil, err
	}
	return llm.New(provider, b, a.config.RequestTimeout())
}

// Run запускает приложение.
func (a *App) Run() {
	a.tray.Run(func() {
		// Хоткеи регистрируются после инициализации трея
		a.registerHotkeys()
		a.tray.SetPresets(a.presetNames())
		a.refreshStats()
		a.notifier.Ready()
	})
}

// Notify реализует executor.Sink: уведомление пользователю плюс
// обновление иконки в трее.
func (a *App) Notify(ev executor.Event) {
	a.notifier.Notify(ev)

	switch ev.Outcome {
	case executor.OutcomeSuccess:
		a.tray.SetState(tray.StateIdle)
		a.refreshStats()
	case executor.OutcomeFailure:
		a.tray.SetState(tray.StateError)
		a.refreshStats()
	case executor.OutcomeRejected:
		// Текущий запрос ещё выполняется, иконку не трогаем
	}
}

// onChord - обработчик срабатывания горячей клавиши.
func (a *App) onChord(chord config.Chord) {
	a.tray.SetState(tray.StateRunning)
	a.coordinator.TriggerChord(chord)
}

// registerHotkeys регистрирует аккорды всех пресетов из реестра.
// Отказ ОС в правах не роняет приложение: пресеты остаются доступными
// из меню в трее.
func (a *App) registerHotkeys() {
	for _, p := range a.registry.All() {
		if p.Chord.IsZero() {
			continue
		}
		err := a.listener.Register(p.Chord, a.onChord)
		switch {
		case err == nil:
		case errors.Is(err, hotkey.ErrPermissionDenied):
			log.Printf("Нет прав на глобальный хук для %q: %v", p.Name, err)
			a.mu.Lock()
			warned := a.permissionWarned
			a.permissionWarned = true
			a.mu.Unlock()
			if !warned {
				dialog.PermissionDenied()
			}
		case errors.Is(err, hotkey.ErrDuplicateChord):
			// Реестр уже разрешил конфликт last-write-wins, сюда
			// попадает только гонка с перечиткой
			log.Printf("Аккорд пресета %q уже занят: %v", p.Name, err)
		case errors.Is(err, hotkey.ErrRegisterFailed):
			// Комбинацию захватило другое приложение: пресет остаётся
			// доступен из меню в трее
			log.Printf("ОС отклонила аккорд пресета %q: %v", p.Name, err)
			a.notifier.Error(i18n.T("error_hotkey_register") + ": " + p.Name)
		default:
			log.Printf("Ошибка регистрации аккорда пресета %q: %v", p.Name, err)
			a.notifier.Error(i18n.T("error_hotkey_register") + ": " + p.Name)
		}
	}
}

// reloadPresets перечитывает presets.json и перерегистрирует аккорды.
func (a *App) reloadPresets() {
	presets, err := a.presets.Load()
	if err != nil {
		log.Printf("Ошибка перечитывания пресетов: %v", err)
		a.notifier.Error(i18n.T("error_presets_load"))
		return
	}

	a.registry.Load(presets)
	a.listener.Close()
	a.registerHotkeys()
	a.tray.SetPresets(a.presetNames())
	log.Printf("Пресеты перечитаны: %d шт.", len(presets))
}

func (a *App) presetNames() []string {
	all := a.registry.All()
	names := make([]string, 0, len(all))
	for _, p := range all {
		names = append(names, p.Name)
	}
	return names
}

// refreshStats обновляет строку статистики за день в меню трея.
func (a *App) refreshStats() {
	if a.history == nil {
		return
	}
	stats, err := a.history.Today()
	if err != nil {
		log.Printf("Ошибка чтения статистики: %v", err)
		return
	}
	if stats.Total == 0 {
		a.tray.SetStats("")
		return
	}
	a.tray.SetStats(fmt.Sprintf("%s: %d (ok %d, err %d), %d tok",
		i18n.T("tray_stats"), stats.Total, stats.SuccessCount, stats.FailureCount,
		stats.InputTokens+stats.OutputTokens))
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener != nil {
		a.listener.Close()
	}

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Printf("Ошибка закрытия журнала: %v", err)
		}
		a.history = nil
	}
}
