package sync

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"punchclock/internal/app/client"
	"punchclock/internal/domain/queue"
)

var (
	syncStatus bool
	showDead   bool
	resolveArg string
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Управление синхронизацией",
	Long: `Отправка очереди отметок на сервер.

Без флагов выполняет одну синхронизацию. Отметки, которые сервер отклонил
или которые исчерпали попытки, показываются через --dead и разбираются
вручную через --resolve <id>=retry|discard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		switch {
		case syncStatus:
			return showSyncStatus(cmd.Context(), app)
		case showDead:
			return showUnsynced(cmd.Context(), app)
		case resolveArg != "":
			return resolve(cmd.Context(), app, resolveArg)
		}

		// Выполняем синхронизацию
		return runSync(cmd.Context(), app)
	},
}

func runSync(ctx context.Context, app *client.App) error {
	fmt.Println("=== Синхронизация отметок ===")

	result, err := app.SyncNow(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	color.Green("✅ Синхронизация завершена!")
	fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Отправлено:       %d\n", result.Submitted)
	fmt.Printf("Принято:          %d\n", result.Synced)
	if result.Deduplicated > 0 {
		fmt.Printf("Уже были на сервере: %d\n", result.Deduplicated)
	}
	if result.Recovered > 0 {
		fmt.Printf("Восстановлено после сбоя: %d\n", result.Recovered)
	}
	if result.Requeued > 0 {
		color.Yellow("Будут повторены позже: %d", result.Requeued)
	}
	if result.Failed > 0 || result.DeadLettered > 0 {
		color.Red("Требуют разбора: %d", result.Failed+result.DeadLettered)
		fmt.Println("   Используйте 'punchclock sync --dead' для просмотра")
	}

	return nil
}

func showSyncStatus(ctx context.Context, app *client.App) error {
	fmt.Println("=== Статус синхронизации ===")

	status, err := app.SyncStatus(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения статуса: %w", err)
	}

	fmt.Println("📊 Очередь:")
	fmt.Printf("  Ожидают отправки: %d\n", status.Queue.Pending)
	fmt.Printf("  Отправляются:     %d\n", status.Queue.Submitting)
	fmt.Printf("  Отправлены:       %d\n", status.Queue.Synced)
	fmt.Printf("  Отклонены:        %d\n", status.Queue.Failed)
	fmt.Printf("  Исчерпали попытки: %d\n", status.Queue.DeadLetter)

	if status.LastSync.IsZero() {
		fmt.Println("  Последняя синхронизация: никогда")
	} else {
		fmt.Printf("  Последняя синхронизация: %s\n", status.LastSync.Local().Format("2006-01-02 15:04:05"))
	}

	fmt.Println("📍 Курсоры:")
	for _, c := range status.Cursors {
		if c.LastActionID == "" {
			fmt.Printf("  %s: нет подтвержденных\n", c.Kind)
			continue
		}
		fmt.Printf("  %s: %s -> %s (%s)\n", c.Kind, c.LastActionID, c.LastServerID,
			c.LastCreatedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if status.Engine.LastError != "" {
		color.Yellow("  Последняя ошибка: %s", status.Engine.LastError)
	}
	return nil
}

func showUnsynced(ctx context.Context, app *client.App) error {
	actions, err := app.Unsynced(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения очереди: %w", err)
	}

	if len(actions) == 0 {
		color.Green("✓ Все отметки отправлены или ждут отправки")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tВИД\tСОСТОЯНИЕ\tПОПЫТОК\tОШИБКА")
	for _, a := range actions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", a.ID, a.Kind, a.State, a.Attempts, a.LastError)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Повторить:  punchclock sync --resolve <id>=retry")
	fmt.Println("Отказаться: punchclock sync --resolve <id>=discard")
	return nil
}

func resolve(ctx context.Context, app *client.App, arg string) error {
	id, action, ok := strings.Cut(arg, "=")
	if !ok || id == "" {
		return fmt.Errorf("ожидается формат <id>=retry|discard")
	}

	r := queue.Resolution(action)
	if r != queue.ResolveRetry && r != queue.ResolveDiscard {
		return fmt.Errorf("неизвестное решение: %s", action)
	}

	if err := app.Resolve(ctx, id, r); err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", id, err)
	}

	fmt.Printf("✅ %s: %s\n", id, r)
	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&showDead, "dead", false, "показать отметки, требующие разбора")
	SyncCmd.Flags().StringVar(&resolveArg, "resolve", "", "разобрать отметку: <id>=retry|discard")
}
