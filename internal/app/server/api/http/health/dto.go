package health

import "time"

type healthInput struct{}

type healthOutput struct {
	Body Status
}

type Status struct {
	Status             string    `json:"status" example:"OK"`
	Storage            string    `json:"storage" example:"postgres" doc:"Хранилище отметок: postgres или memory"`
	DedupWindowSeconds int       `json:"dedup_window_seconds" doc:"Окно дедупликации отметок"`
	Time               time.Time `json:"time"`
}
