package device

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"punchclock/internal/app/client"
)

var enrollmentKey string

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать устройство",
	Long: `Регистрирует устройство на сервере по ключу подключения и сохраняет
выданный токен. Без токена сервер не принимает отметки.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		key := enrollmentKey
		if key == "" {
			fmt.Print("Ключ подключения: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			if err != nil {
				return fmt.Errorf("ошибка чтения ключа: %w", err)
			}
			fmt.Println()
			key = string(raw)
		}
		if key == "" {
			return fmt.Errorf("ключ подключения не может быть пустым")
		}

		deviceID, err := app.RegisterDevice(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		fmt.Println("✅ Устройство зарегистрировано")
		fmt.Printf("ID устройства: %s\n", deviceID)
		return nil
	},
}

func init() {
	RegisterCmd.Flags().StringVar(&enrollmentKey, "key", "", "ключ подключения (иначе будет запрошен)")
}
