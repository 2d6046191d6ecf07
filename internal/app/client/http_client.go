package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"punchclock/internal/app/client/config"
	"punchclock/internal/domain/punch"
)

// Remote - серверная сторона для SyncEngine.
type Remote interface {
	Submit(ctx context.Context, req punch.SubmitRequest) (*punch.SubmitResponse, error)
	HealthCheck(ctx context.Context) error
}

// RemoteError - ответ сервера со статусом >= 400.
type RemoteError struct {
	Status   int
	Message  string
	ServerID string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ошибка сервера (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("ошибка сервера: статус %d", e.Status)
}

// Permanent сообщает, что повтор запроса не поможет (4xx). Ошибки токена
// относятся к устройству, а не к отметке: после регистрации повтор пройдет.
func (e *RemoteError) Permanent() bool {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.Status >= 400 && e.Status < 500
}

// TokenSource отдает актуальный токен устройства перед каждым запросом.
type TokenSource interface {
	Token() string
}

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	token     string
	tokens    TokenSource
	userAgent string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*httpClient, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
		DisableKeepAlives:   false,
		MaxIdleConnsPerHost: 10,
	}

	if cfg.EnableTLS && cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения сертификата CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("сертификат CA не распознан: %s", cfg.CACertPath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return newHTTPClient(cfg.BaseURL(), &http.Client{Timeout: 30 * time.Second, Transport: transport}, log), nil
}

func newHTTPClient(baseURL string, client *http.Client, log *slog.Logger) *httpClient {
	return &httpClient{
		client:    client,
		log:       log.With("component", "http_client"),
		baseURL:   baseURL,
		userAgent: "PunchClock-Client/1.0",
	}
}

// SetToken устанавливает токен устройства
func (h *httpClient) SetToken(token string) {
	h.token = token
}

// SetTokenSource подключает источник токена. Его значение важнее SetToken.
func (h *httpClient) SetTokenSource(src TokenSource) {
	h.tokens = src
}

func (h *httpClient) currentToken() string {
	if h.tokens != nil {
		if token := h.tokens.Token(); token != "" {
			return token
		}
	}
	return h.token
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}

	return nil
}

// RegisterDevice регистрирует устройство по ключу подключения и возвращает токен
func (h *httpClient) RegisterDevice(ctx context.Context, deviceID, enrollmentKey string) (string, error) {
	body := struct {
		DeviceID      string `json:"device_id"`
		EnrollmentKey string `json:"enrollment_key"`
	}{DeviceID: deviceID, EnrollmentKey: enrollmentKey}

	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/devices/register", body, nil)
	if err != nil {
		return "", err
	}

	var regResp struct {
		Token string `json:"token"`
	}
	if err := h.parseResponse(resp, &regResp); err != nil {
		return "", err
	}

	h.SetToken(regResp.Token)
	return regResp.Token, nil
}

// Submit отправляет отметку. Ключ идемпотентности - клиентский id события.
func (h *httpClient) Submit(ctx context.Context, req punch.SubmitRequest) (*punch.SubmitResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/punches", req, map[string]string{
		"Idempotency-Key": req.ClientID,
	})
	if err != nil {
		return nil, err
	}

	var submitResp punch.SubmitResponse
	if err := h.parseResponse(resp, &submitResp); err != nil {
		return nil, err
	}
	if submitResp.ServerID == "" {
		return nil, errors.New("сервер не вернул server_id")
	}

	return &submitResp, nil
}

// ListPunches возвращает отметки сотрудника, сохраненные на сервере
func (h *httpClient) ListPunches(ctx context.Context, employeeID string) ([]punch.Punch, error) {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/punches?employee_id="+url.QueryEscape(employeeID), nil, nil)
	if err != nil {
		return nil, err
	}

	var listResp punch.ListResponse
	if err := h.parseResponse(resp, &listResp); err != nil {
		return nil, err
	}

	return listResp.Punches, nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	// Добавляем заголовки
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if token := h.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}

	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"body", string(body),
	)

	if resp.StatusCode >= 400 {
		return decodeRemoteError(resp.StatusCode, body)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}

// decodeRemoteError разбирает тело ошибки: problem+json сервера или {"error": "..."}.
func decodeRemoteError(status int, body []byte) *RemoteError {
	var errResp struct {
		Error    string `json:"error"`
		Title    string `json:"title"`
		Detail   string `json:"detail"`
		ServerID string `json:"server_id"`
		Errors   []struct {
			Location string `json:"location"`
			Value    any    `json:"value"`
		} `json:"errors"`
	}

	re := &RemoteError{Status: status}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return re
	}

	switch {
	case errResp.Detail != "":
		re.Message = errResp.Detail
	case errResp.Error != "":
		re.Message = errResp.Error
	default:
		re.Message = errResp.Title
	}

	re.ServerID = errResp.ServerID
	for _, d := range errResp.Errors {
		if v, ok := d.Value.(string); ok && d.Location == "server_id" && re.ServerID == "" {
			re.ServerID = v
		}
	}
	return re
}
