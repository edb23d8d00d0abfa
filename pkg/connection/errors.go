package connection

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/buger/jsonparser"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/constants"
)

// APIError is a non-2xx response of the content API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == constants.ErrNotFound && e.Status == http.StatusNotFound
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return errors.Is(err, constants.ErrNotFound)
}

// parseAPIError decodes the {"errors":[{"code","message"}]} envelope.
// Unparseable bodies are reported verbatim.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	first, dataType, _, err := jsonparser.Get(body, "errors", "[0]")
	if err != nil || dataType != jsonparser.Object {
		apiErr.Message = string(body)
		return apiErr
	}

	apiErr.Code, _ = jsonparser.GetString(first, "code")
	apiErr.Message, err = jsonparser.GetString(first, "message")
	if err != nil {
		apiErr.Message = string(first)
	}
	return apiErr
}
