package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DetailResponse is the single-message error body the backend returns
type DetailResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// MessageResponse acknowledges an action
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with data as the body
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created response with data as the body
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteMessage writes a 200 OK {"message": ...} acknowledgement
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteFieldErrors writes a 400 Bad Request with a field to messages map
func WriteFieldErrors(w http.ResponseWriter, fields map[string][]string) error {
	return WriteJSON(w, http.StatusBadRequest, fields)
}

// WriteBadRequest writes a 400 Bad Request response with a non-field error
func WriteBadRequest(w http.ResponseWriter, message string) error {
	return WriteFieldErrors(w, map[string][]string{"non_field_errors": {message}})
}

// WriteUnauthorized writes a 401 Unauthorized response
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Authentication credentials were not provided."
	}
	return WriteJSON(w, http.StatusUnauthorized, DetailResponse{
		Detail: message,
		Code:   "not_authenticated",
	})
}

// WriteTokenNotValid writes the 401 returned for expired or tampered tokens
func WriteTokenNotValid(w http.ResponseWriter) error {
	return WriteJSON(w, http.StatusUnauthorized, DetailResponse{
		Detail: "Given token not valid for any token type",
		Code:   "token_not_valid",
	})
}

// WriteForbidden writes a 403 Forbidden response
func WriteForbidden(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "You do not have permission to perform this action."
	}
	return WriteJSON(w, http.StatusForbidden, DetailResponse{Detail: message})
}

// WriteNotFound writes a 404 Not Found response
func WriteNotFound(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Not found."
	}
	return WriteJSON(w, http.StatusNotFound, DetailResponse{Detail: message})
}

// WriteInternalServerError writes a 500 Internal Server Error response
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	if message == "" {
		message = "Internal server error"
	}
	return WriteJSON(w, http.StatusInternalServerError, DetailResponse{Detail: message})
}

// DecodeJSON reads a JSON body into v, rejecting bodies over 1 MiB
func DecodeJSON(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// ReadForm reads a request body sent as JSON, urlencoded or multipart form.
// Text values come back in fields; uploaded files come back as field to
// filename. JSON values that are not strings are kept in their JSON text.
func ReadForm(r *http.Request) (fields map[string]string, files map[string]string, err error) {
	fields = make(map[string]string)
	files = make(map[string]string)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			return nil, nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		for k, v := range r.MultipartForm.File {
			if len(v) > 0 {
				files[k] = v[0].Filename
			}
		}
	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, nil, fmt.Errorf("invalid form body: %w", err)
		}
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
	default:
		raw := map[string]json.RawMessage{}
		if err := DecodeJSON(r, &raw); err != nil {
			if errors.Is(err, io.EOF) {
				return fields, files, nil
			}
			return nil, nil, err
		}
		for k, v := range raw {
			var s string
			if json.Unmarshal(v, &s) == nil {
				fields[k] = s
				continue
			}
			fields[k] = string(v)
		}
	}
	return fields, files, nil
}
