// Package utils предоставляет простой файловый логгер.
//
// Логгер создаёт .log файл в текущей директории с timestamp в имени.
// Thread-safe через sync.Mutex. Пока логгер не инициализирован, записи
// молча отбрасываются: так пакеты можно тестировать без файловой системы.
package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	logOut      io.Writer
	logFile     *os.File
	logMutex    sync.Mutex
	initialized bool
)

// InitLogger создает/открывает .log файл в текущей директории.
//
// Имя файла: {prefix}-YYYY-MM-DD-HH-MM.log (например, specmatch-2026-01-27-15-30.log)
func InitLogger(prefix string) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if initialized {
		return nil
	}
	if prefix == "" {
		prefix = "specmatch"
	}

	timestamp := time.Now().Format("2006-01-02-15-04")
	filename := fmt.Sprintf("%s-%s.log", prefix, timestamp)

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = f
	logOut = f
	initialized = true

	// Пишем напрямую без Info чтобы избежать deadlock (мьютекс уже захвачен)
	writeLine(formatLine("INFO", "Logger initialized", "file", filename))
	return nil
}

// SetOutput направляет лог в произвольный writer (stderr, буфер в тестах).
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()

	logOut = w
	initialized = w != nil
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	log("INFO", msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	log("ERROR", msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	log("DEBUG", msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	log("WARN", msg, keyvals...)
}

// log - внутренняя функция записи в лог.
func log(level, msg string, keyvals ...any) {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logOut == nil {
		return
	}
	writeLine(formatLine(level, msg, keyvals...))
}

// formatLine: [YYYY-MM-DD HH:MM:SS] LEVEL: message key1=value1 key2=value2
func formatLine(level, msg string, keyvals ...any) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("[%s] %s: %s", timestamp, level, msg)

	for i := 0; i+1 < len(keyvals); i += 2 {
		line += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}

	return line + "\n"
}

// writeLine пишет строку, при ошибке - fallback на stderr. Мьютекс захвачен.
func writeLine(line string) {
	if _, err := io.WriteString(logOut, line); err != nil {
		fmt.Fprint(os.Stderr, line)
		fmt.Fprintf(os.Stderr, "[LOGGER ERROR: WriteString failed: %v]\n", err)
		return
	}

	if logFile != nil && logOut == io.Writer(logFile) {
		if err := logFile.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Sync failed: %v]\n", err)
		}
	}
}

// Close закрывает лог-файл.
//
// Вызывается через defer в main().
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Close failed: %v]\n", err)
		}
		logFile = nil
	}
	logOut = nil
	initialized = false
}
