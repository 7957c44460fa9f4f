package transport

import (
	"encoding/json"
	"net/http"
)

// Response is the JSON envelope every endpoint returns. Code carries a
// stable machine-readable error identifier on failures.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, message string, data interface{}) {
	write(w, status, Response{
		Success: status < 400,
		Message: message,
		Data:    data,
	})
}

func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Response{Success: false, Message: message})
}

func ErrorCode(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Response{Success: false, Message: message, Code: code})
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
