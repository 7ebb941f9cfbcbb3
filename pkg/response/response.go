// Package response defines the JSON envelope shared by all API handlers.
package response

import "github.com/go-playground/validator/v10"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Message: "Invalid request body.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Message: "The requested resource was not found.",
}

var URLExpiredResponse = Response{
	Status:  StatusError,
	Message: "The requested URL has expired.",
}

var InvalidURLResponse = Response{
	Status:  StatusError,
	Message: "Only absolute HTTP and HTTPS URLs can be shortened.",
}

var InvalidShortCodeResponse = Response{
	Status:  StatusError,
	Message: "The custom short code doesn't match the required format.",
}

var ShortCodeTakenResponse = Response{
	Status:  StatusError,
	Message: "The requested short code is already taken.",
}

var RateLimitedResponse = Response{
	Status:  StatusError,
	Message: "Too many requests from this IP, please try again later.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Message: "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

type validationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse constructs an error Response carrying one detail
// entry per failed field.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Message: "Validation error.",
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return resp
	}

	for _, e := range errs {
		resp.Details = append(resp.Details, validationDetail{
			Field:   e.Field(),
			Message: messageForTag(e.Tag()),
		})
	}

	return resp
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "gt":
		return "must be greater than zero"
	case "lte":
		return "exceeds the maximum allowed value"
	default:
		return "invalid value"
	}
}
