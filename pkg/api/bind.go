package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// maxBodySize caps request bodies at 1 MiB.
const maxBodySize = 1 << 20

// decodeJSON reads the request body into v. An empty body leaves v
// untouched when optional is true.
func decodeJSON(r *http.Request, v any, optional bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return fmt.Errorf("%w: failed to read request body: %v", ErrInvalidRequest, err)
	}
	if len(body) > maxBodySize {
		return fmt.Errorf("%w: request body too large (max %d bytes)", ErrInvalidRequest, maxBodySize)
	}
	if len(body) == 0 {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: empty body", ErrInvalidRequest)
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: unsupported content type %q, expected application/json", ErrInvalidRequest, ct)
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("%w: malformed JSON at offset %d", ErrInvalidRequest, syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return fmt.Errorf("%w: field %q must be %s", ErrInvalidRequest, typeErr.Field, typeErr.Type)
		default:
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}
