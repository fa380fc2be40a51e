// Package embedded содержит встроенные ресурсы приложения.
package embedded

import (
	_ "embed"
)

// IconIdle - иконка в состоянии ожидания (серая).
//
//go:embed icon_idle.png
var IconIdle []byte

// IconRunning - иконка во время выполнения запроса (оранжевая).
//
//go:embed icon_running.png
var IconRunning []byte

// IconError - иконка после неудачного выполнения (красная).
//
//go:embed icon_error.png
var IconError []byte
