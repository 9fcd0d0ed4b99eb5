// Package apierr shapes request-validation failures into JSON bodies.
package apierr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// Fields extracts per-field failures from a validator error. Other errors
// (malformed JSON, bad integers) yield nil.
func Fields(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: toSnake(fe.Field()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// Unprocessable writes a 422 with the error text and any field details.
func Unprocessable(c *gin.Context, err error) {
	body := gin.H{"error": "invalid request"}
	if fields := Fields(err); len(fields) > 0 {
		body["fields"] = fields
	} else if err != nil {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, body)
}

func toSnake(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if isUpper(r) {
			if i > 0 && (!isUpper(rs[i-1]) || (i+1 < len(rs) && !isUpper(rs[i+1]))) {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
