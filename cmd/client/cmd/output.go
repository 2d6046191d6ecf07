package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"punchclock/internal/app/client"
	"punchclock/internal/domain/verification"
)

func printError(err error) {
	var rejection *verification.Rejection
	var remote *client.RemoteError

	switch {
	case errors.As(err, &rejection):
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Отметка не принята: %s\n", rejection.Reason)
		fmt.Fprintf(os.Stderr, "  %s\n", rejection.Reason.Guidance())
		if rejection.Reason.Retryable() {
			fmt.Fprintln(os.Stderr, "  Можно повторить попытку.")
		}
	case errors.As(err, &remote):
		color.New(color.FgRed).Fprintf(os.Stderr, "Ошибка сервера: %v\n", remote)
	case errors.Is(err, client.ErrOffline):
		color.New(color.FgYellow).Fprintf(os.Stderr, "%v. Отметки сохранены и будут отправлены позже.\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
	}
}
