// Package notify предоставляет системные уведомления.
package notify

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/beeep"
	"promptpilot/internal/executor"
	"promptpilot/internal/i18n"
	"promptpilot/internal/llm"
)

const appName = "PromptPilot"

// Notifier отправляет системные уведомления и реализует executor.Sink.
type Notifier struct {
	// переключается из горутины трея, читается из горутины выполнения
	enabled atomic.Bool
}

// New создаёт новый Notifier.
func New(enabled bool) *Notifier {
	n := &Notifier{}
	n.enabled.Store(enabled)
	return n
}

// SetEnabled включает/выключает уведомления.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// Ready показывает уведомление о готовности приложения.
func (n *Notifier) Ready() {
	n.notify("", i18n.T("notify_ready"))
}

// Error показывает уведомление об ошибке.
func (n *Notifier) Error(msg string) {
	n.notify(i18n.T("notify_error"), msg)
}

// Notify переводит исход выполнения в пользовательское уведомление.
func (n *Notifier) Notify(ev executor.Event) {
	switch ev.Outcome {
	case executor.OutcomeSuccess:
		n.notify(i18n.T("notify_done"), fmt.Sprintf("%s: %s", ev.PresetName, i18n.T("notify_done_hint")))
	case executor.OutcomeRejected:
		n.notify(i18n.T("notify_busy"), i18n.T("notify_busy_hint"))
	case executor.OutcomeFailure:
		n.failure(ev)
	}
}

func (n *Notifier) failure(ev executor.Event) {
	switch ev.Kind {
	case executor.FailEmptyInput:
		n.notify(i18n.T("notify_empty_input"), i18n.T("notify_empty_input_hint"))
	case executor.FailPresetNotFound:
		n.notify(i18n.T("notify_error"), i18n.T("error_preset_not_found"))
	case executor.FailClipboardUnavailable:
		n.notify(i18n.T("notify_error"), i18n.T("error_clipboard"))
	case executor.FailLLMRequest:
		n.notify(i18n.T("notify_error"), llmMessage(ev.Err))
	default:
		msg := i18n.T("notify_error")
		if ev.Err != nil {
			msg = truncate(ev.Err.Error())
		}
		n.notify(i18n.T("notify_error"), msg)
	}
}

// llmMessage подбирает действенное сообщение по классу ошибки провайдера.
func llmMessage(err error) string {
	var reqErr *llm.RequestError
	if !errors.As(err, &reqErr) {
		return i18n.T("error_credentials")
	}
	switch reqErr.Kind {
	case llm.KindAuth:
		return i18n.T("error_llm_auth")
	case llm.KindRateLimited:
		return i18n.T("error_llm_rate_limited")
	case llm.KindTimeout:
		return i18n.T("error_llm_timeout")
	case llm.KindNetwork:
		return i18n.T("error_llm_network")
	case llm.KindServer:
		return i18n.T("error_llm_server")
	default:
		return i18n.T("error_llm_bad_request")
	}
}

func truncate(s string) string {
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled.Load() {
		return
	}
	// Игнорируем ошибки уведомлений - они не критичны
	if title != "" {
		_ = beeep.Notify(appName+": "+title, message, "")
	} else {
		_ = beeep.Notify(appName, message, "")
	}
}
