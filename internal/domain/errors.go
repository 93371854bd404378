package domain

import "errors"

var (
	// ErrTransport лента или сайт назначения недоступны либо ответили неуспешным статусом.
	ErrTransport = errors.New("transport error")
	// ErrDownload не удалось скачать вложение.
	ErrDownload = errors.New("download error")
	// ErrPublish сайт назначения отклонил создание или обновление поста.
	ErrPublish = errors.New("publish error")
	// ErrNotFound пост на стороне назначения не существует; сигнал к пересозданию.
	ErrNotFound = errors.New("destination post not found")
	// ErrPassInProgress предыдущий проход синхронизации ещё не завершён.
	ErrPassInProgress = errors.New("sync pass already in progress")
)
