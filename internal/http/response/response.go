package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Status string   `json:"status"`
	Error  APIError `json:"error"`
}

// RespondError maps an error chain onto the envelope, deriving the HTTP
// status from the error kind.
func RespondError(c *gin.Context, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(apierr.StatusOf(err), ErrorEnvelope{
		Status: "error",
		Error: APIError{
			Message: msg,
			Kind:    string(apierr.KindOf(err)),
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
