// PromptPilot - кроссплатформенное приложение для LLM-преобразований
// текста в буфере обмена по горячим клавишам.
//
// Работает в системном трее. Каждый пресет привязан к своей комбинации:
// нажатие читает буфер, отправляет текст модели и кладёт результат
// обратно в буфер.
package main

import (
	"log"
	"os"

	"promptpilot/internal/app"
	"promptpilot/internal/hotkey"
)

// Version устанавливается при сборке через -ldflags.
var Version = "dev"

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)
	log.Printf("PromptPilot %s запускается...", Version)

	// Запускаем в главном потоке (требование для macOS и некоторых GUI)
	hotkey.RunOnMainThread(run)
}

func run() {
	application, err := app.New()
	if err != nil {
		log.Printf("Ошибка инициализации: %v", err)
		os.Exit(1)
	}

	log.Println("Приложение запущено. Пресеты доступны по горячим клавишам и из меню в трее.")
	application.Run()
}
