package models

import "github.com/google/uuid"

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WSMessage is the envelope pushed to clients over the websocket hub.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// GenerationUpdate reports orchestrator progress for one generation run.
type GenerationUpdate struct {
	Page     int    `json:"page"`
	Step     int    `json:"step"`
	StepName string `json:"step_name"`
	Model    string `json:"model,omitempty"`
	Attempt  int    `json:"attempt,omitempty"`
	Cards    int    `json:"cards,omitempty"`
	Error    string `json:"error,omitempty"`
}

// GenerationJob is the payload queued for the generation worker. The
// rendered page raster arrives from the UI with the request; the extracted
// text half of the capture is resolved server-side.
type GenerationJob struct {
	ID          uuid.UUID `json:"id"`
	Project     string    `json:"project"`
	Page        int       `json:"page"`
	ImageBase64 string    `json:"image_base64"`
}
