package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"preclear_disk/internal/server"
)

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      server.NewServer(a, cfg, logger),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	// Установка обработчиков сигналов
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		logger.Log("INFO", "Запуск HTTP интерфейса", "listen", cfg.Server.Listen, "version", Version)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ошибка HTTP сервера: %w", err)
	case sig := <-sigChan:
		logger.Log("WARN", "Получен сигнал, начинаем graceful shutdown", "signal", sig.String())
	}

	// Ожидание подтверждения может держать запрос до confirm_timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetConfirmTimeout()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка остановки HTTP сервера: %w", err)
	}
	return nil
}
