// Package clipboard предоставляет доступ к системному буферу обмена.
// Это единственный компонент, которому разрешено его трогать.
package clipboard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// ErrUnavailable - буфер обмена недоступен (например, захвачен другим
// процессом). Вызывающий может повторить операцию с небольшой паузой.
var ErrUnavailable = errors.New("буфер обмена недоступен")

// Snapshot - неизменяемый снимок текста буфера обмена.
type Snapshot struct {
	Text       string
	CapturedAt time.Time
}

// Gateway читает и пишет буфер обмена. Операции взаимно исключающие:
// чтение и запись одного выполнения никогда не перемешиваются с
// операциями другого.
type Gateway interface {
	Read() (Snapshot, error)
	Write(text string) error
}

// SystemGateway - реализация Gateway поверх системного буфера обмена.
type SystemGateway struct {
	mu sync.Mutex
}

// NewSystem создаёт шлюз к системному буферу обмена.
func NewSystem() *SystemGateway {
	return &SystemGateway{}
}

// Read захватывает текущий текст буфера и отметку времени.
func (g *SystemGateway) Read() (Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	text, err := clipboard.ReadAll()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Snapshot{Text: text, CapturedAt: time.Now()}, nil
}

// Write заменяет текст буфера обмена.
func (g *SystemGateway) Write(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
