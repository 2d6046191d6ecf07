package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AppState хранит состояние устройства между запусками
type AppState struct {
	DeviceID     string    `json:"device_id"`
	Token        string    `json:"token,omitempty"`
	RegisteredAt time.Time `json:"registered_at,omitempty"`
	LastSync     time.Time `json:"last_sync,omitempty"`
}

// stateFile - AppState в JSON-файле. Служит и провайдером идентификатора устройства.
type stateFile struct {
	path  string
	mu    sync.Mutex
	state AppState
}

func loadStateFile(path string) (*stateFile, error) {
	f := &stateFile{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload перечитывает состояние с диска. Файл общий для всех процессов
// клиента: токен, записанный командой device register, должен увидеть и
// уже запущенный агент.
func (f *stateFile) Reload() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ошибка чтения состояния: %w", err)
	}

	var s AppState
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("ошибка разбора состояния: %w", err)
	}

	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	return nil
}

// Token возвращает токен устройства с диска. Если файл не читается,
// остается последний известный токен.
func (f *stateFile) Token() string {
	_ = f.Reload()
	return f.Get().Token
}

func (f *stateFile) Registered() bool {
	return f.Token() != ""
}

func (f *stateFile) Get() AppState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Update применяет fn и сохраняет состояние на диск.
func (f *stateFile) Update(fn func(s *AppState)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.state
	fn(&next)
	if err := f.write(next); err != nil {
		return err
	}
	f.state = next
	return nil
}

func (f *stateFile) write(s AppState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("ошибка сохранения состояния: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("ошибка сохранения состояния: %w", err)
	}
	return nil
}

// DeviceID возвращает идентификатор устройства, создавая его при первом вызове.
func (f *stateFile) DeviceID(_ context.Context) (string, error) {
	if id := f.Get().DeviceID; id != "" {
		return id, nil
	}

	var id string
	err := f.Update(func(s *AppState) {
		if s.DeviceID == "" {
			s.DeviceID = uuid.NewString()
		}
		id = s.DeviceID
	})
	return id, err
}
