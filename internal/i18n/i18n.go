// Package i18n provides internationalization support.
package i18n

import "sync"

// Language represents a UI language.
type Language string

const (
	RU Language = "ru"
	EN Language = "en"
)

var (
	mu      sync.RWMutex
	current = RU // Default language
)

// Translations for all supported languages.
var translations = map[Language]map[string]string{
	RU: {
		// App
		"app_name":    "PromptPilot",
		"app_tooltip": "PromptPilot - LLM по горячей клавише",

		// Tray menu
		"tray_ready":              "Готов к работе",
		"tray_running":            "Выполняется запрос...",
		"tray_presets":            "Пресеты",
		"tray_presets_hint":       "Запустить пресет на текущем буфере обмена",
		"tray_reload":             "Перечитать пресеты",
		"tray_reload_hint":        "Загрузить presets.json заново",
		"tray_notifications":      "Уведомления",
		"tray_notifications_hint": "Показывать уведомления",
		"tray_language":           "Язык интерфейса",
		"tray_lang_ru":            "Русский",
		"tray_lang_en":            "English",
		"tray_stats":              "Сегодня",
		"tray_stats_none":         "Сегодня: запусков не было",
		"tray_quit":               "Выход",
		"tray_quit_hint":          "Закрыть приложение",

		// Notifications
		"notify_running":          "Выполняю...",
		"notify_running_hint":     "Запрос к модели отправлен",
		"notify_done":             "Готово",
		"notify_done_hint":        "Результат в буфере обмена",
		"notify_error":            "Ошибка",
		"notify_ready":            "PromptPilot готов к работе",
		"notify_empty_input":      "Буфер обмена пуст",
		"notify_empty_input_hint": "Скопируйте текст и нажмите сочетание ещё раз",
		"notify_busy":             "Запрос уже выполняется",
		"notify_busy_hint":        "Дождитесь завершения текущего запроса",

		// Errors
		"error_preset_not_found":   "Пресет для этого сочетания не найден",
		"error_clipboard":          "Буфер обмена недоступен",
		"error_llm_auth":           "Проверьте API-ключ провайдера",
		"error_llm_rate_limited":   "Превышен лимит запросов, попробуйте позже",
		"error_llm_timeout":        "Запрос к модели не уложился в таймаут",
		"error_llm_network":        "Нет соединения с провайдером",
		"error_llm_server":         "Ошибка на стороне провайдера",
		"error_llm_bad_request":    "Провайдер отклонил запрос",
		"error_credentials":        "Учётные данные провайдера не настроены",
		"error_hotkey_register":    "Не удалось зарегистрировать горячую клавишу",
		"error_hotkey_duplicate":   "Сочетание уже занято другим пресетом",
		"error_presets_load":       "Не удалось загрузить пресеты",

		// Dialogs
		"dialog_permission_title": "Нет доступа к горячим клавишам",
		"dialog_permission_text":  "Системе нужно разрешение на отслеживание клавиатуры. Выдайте его в настройках доступности и перезапустите приложение. Пресеты пока можно запускать из меню в трее.",
		"dialog_api_key_title":    "API-ключ",
		"dialog_api_key_prompt":   "Введите API-ключ провайдера",
	},

	EN: {
		// App
		"app_name":    "PromptPilot",
		"app_tooltip": "PromptPilot - hotkey-driven LLM",

		// Tray menu
		"tray_ready":              "Ready",
		"tray_running":            "Request in progress...",
		"tray_presets":            "Presets",
		"tray_presets_hint":       "Run a preset on the current clipboard",
		"tray_reload":             "Reload presets",
		"tray_reload_hint":        "Re-read presets.json",
		"tray_notifications":      "Notifications",
		"tray_notifications_hint": "Show notifications",
		"tray_language":           "Interface language",
		"tray_lang_ru":            "Русский",
		"tray_lang_en":            "English",
		"tray_stats":              "Today",
		"tray_stats_none":         "Today: no runs yet",
		"tray_quit":               "Quit",
		"tray_quit_hint":          "Close application",

		// Notifications
		"notify_running":          "Working...",
		"notify_running_hint":     "Request sent to the model",
		"notify_done":             "Done",
		"notify_done_hint":        "Result is in the clipboard",
		"notify_error":            "Error",
		"notify_ready":            "PromptPilot is ready",
		"notify_empty_input":      "Clipboard is empty",
		"notify_empty_input_hint": "Copy some text and press the shortcut again",
		"notify_busy":             "A request is already running",
		"notify_busy_hint":        "Wait for the current request to finish",

		// Errors
		"error_preset_not_found":   "No preset bound to this shortcut",
		"error_clipboard":          "Clipboard is unavailable",
		"error_llm_auth":           "Check the provider API key",
		"error_llm_rate_limited":   "Rate limit exceeded, try again later",
		"error_llm_timeout":        "Model request timed out",
		"error_llm_network":        "Cannot reach the provider",
		"error_llm_server":         "Provider-side error",
		"error_llm_bad_request":    "Provider rejected the request",
		"error_credentials":        "Provider credentials are not configured",
		"error_hotkey_register":    "Could not register hotkey",
		"error_hotkey_duplicate":   "Shortcut is already taken by another preset",
		"error_presets_load":       "Could not load presets",

		// Dialogs
		"dialog_permission_title": "No access to global hotkeys",
		"dialog_permission_text":  "The system needs permission to monitor the keyboard. Grant it in accessibility settings and restart the app. Meanwhile presets can be run from the tray menu.",
		"dialog_api_key_title":    "API key",
		"dialog_api_key_prompt":   "Enter the provider API key",
	},
}

// T returns the translation for the given key.
func T(key string) string {
	mu.RLock()
	defer mu.RUnlock()

	if strings, ok := translations[current]; ok {
		if s, ok := strings[key]; ok {
			return s
		}
	}
	// Fallback to key itself
	return key
}

// SetLanguage sets the current UI language.
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()
	current = lang
}

// GetLanguage returns the current UI language.
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// AvailableLanguages returns list of supported languages.
func AvailableLanguages() []Language {
	return []Language{RU, EN}
}

// LanguageName returns display name for a language.
func LanguageName(lang Language) string {
	switch lang {
	case RU:
		return "Русский"
	case EN:
		return "English"
	default:
		return string(lang)
	}
}
