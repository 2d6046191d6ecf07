package employee

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"punchclock/internal/app/client"
)

var pinEmployeeID string

var SetPINCmd = &cobra.Command{
	Use:   "set-pin",
	Short: "Задать резервный PIN",
	Long:  `PIN используется для отметки через киоск и как замена проверке лица.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Print("Новый PIN: ")
		pin, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("ошибка чтения PIN: %w", err)
		}
		fmt.Println()

		fmt.Print("Повторите PIN: ")
		confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("ошибка чтения PIN: %w", err)
		}
		fmt.Println()

		if string(pin) != string(confirm) {
			return fmt.Errorf("PIN не совпадают")
		}

		if err := app.SetPIN(cmd.Context(), pinEmployeeID, string(pin)); err != nil {
			return fmt.Errorf("ошибка сохранения PIN: %w", err)
		}

		fmt.Println("✅ PIN сохранен")
		return nil
	},
}

func init() {
	SetPINCmd.Flags().StringVar(&pinEmployeeID, "id", "", "идентификатор сотрудника")
	_ = SetPINCmd.MarkFlagRequired("id")
}
