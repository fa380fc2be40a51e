// Package dialog предоставляет GUI диалоги приложения.
package dialog

import (
	"github.com/ncruces/zenity"
	"promptpilot/internal/i18n"
)

// ShowInfo показывает информационное сообщение.
func ShowInfo(title, message string) {
	zenity.Info(message, zenity.Title(title))
}

// ShowError показывает сообщение об ошибке.
func ShowError(title, message string) {
	zenity.Error(message, zenity.Title(title))
}

// PermissionDenied объясняет пользователю, что системе нужно разрешение
// на глобальные горячие клавиши (Accessibility на macOS, X11-доступ на
// Linux), и что пресеты остаются доступными из меню в трее.
func PermissionDenied() {
	zenity.Error(
		i18n.T("dialog_permission_text"),
		zenity.Title(i18n.T("dialog_permission_title")),
	)
}

// AskAPIKey запрашивает API-ключ провайдера. Возвращает ошибку если
// пользователь отменил ввод.
func AskAPIKey(provider string) (string, error) {
	_, key, err := zenity.Password(
		zenity.Title(i18n.T("dialog_api_key_title") + " - " + provider),
	)
	if err != nil {
		return "", err
	}
	return key, nil
}
