package cmd

import (
	"github.com/spf13/cobra"
)

var metricsAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Запустить фоновую синхронизацию",
	Long: `Запускает агент, который следит за сетью и отправляет очередь отметок
на сервер. Работает до Ctrl+C.

С --metrics-addr (или METRICS_ADDRESS) агент отдает метрики Prometheus на /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if metricsAddr != "" {
			cfg.MetricsAddress = metricsAddr
		}
		if !app.IsRegistered() {
			log.Warn("Устройство не зарегистрировано, отправка начнется после device register")
		}
		return app.Run()
	},
}

func init() {
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "адрес для /metrics, например :9102")
}
