package model

// ErrorResponse is the failure half of the response envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Success flattens fields into a success envelope.
func Success(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["success"] = true
	return out
}

// Error returns a failure envelope.
func Error(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}
