package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

const dateLayout = "2006-01-02"

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.SetAliasTag("schema")
	return d
}

// decodeJSON reads a JSON body into dst, bounded by the configured limit,
// and validates its struct tags.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := io.Reader(r.Body)
	if s.config.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	}

	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusBadRequest, CodeValidation,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), nil)
			return false
		}
		s.writeError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body: "+err.Error(), nil)
		return false
	}

	return s.validateStruct(w, dst)
}

// decodeQuery fills dst from the URL query and validates it.
func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := s.decoder.Decode(dst, r.URL.Query()); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeValidation, "invalid query parameters", queryErrorDetails(err))
		return false
	}
	return s.validateStruct(w, dst)
}

func (s *Server) validateStruct(w http.ResponseWriter, dst any) bool {
	err := s.validate.Struct(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		s.writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return false
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Field:      trimNamespace(fe.Namespace()),
			Constraint: constraint(fe),
			Value:      fe.Value(),
		})
	}
	s.writeError(w, http.StatusBadRequest, CodeValidation, "request validation failed", details)
	return false
}

// trimNamespace drops the root struct name from a validator namespace.
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func queryErrorDetails(err error) []FieldError {
	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return []FieldError{{Message: err.Error()}}
	}
	details := make([]FieldError, 0, len(multi))
	for field, ferr := range multi {
		details = append(details, FieldError{Field: field, Message: ferr.Error()})
	}
	return details
}

// parseDate accepts YYYY-MM-DD or RFC3339. Empty input yields nil.
func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD or RFC3339", field)
	}
	return &t, nil
}
