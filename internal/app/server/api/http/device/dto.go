package device

type registerInput struct {
	Body registerRequest
}

type registerRequest struct {
	DeviceID      string `json:"device_id" doc:"Идентификатор устройства" minLength:"1" maxLength:"128"`
	EnrollmentKey string `json:"enrollment_key" doc:"Ключ подключения, выданный администратором" minLength:"1"`
}

type registerOutput struct {
	Body registerResponse
}

type registerResponse struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token" doc:"Bearer-токен устройства"`
}
